package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/eventlog"
)

var tailRaw bool

var tailCmd = &cobra.Command{
	Use:   "tail [job_id]",
	Short: "Print a job's events until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return followJob(cmd, args[0])
	},
}

func init() {
	tailCmd.Flags().BoolVar(&tailRaw, "raw", false, "Print the JSON log lines unchanged")
	rootCmd.AddCommand(tailCmd)
}

func followJob(cmd *cobra.Command, jobID string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := eventlog.New(cfg.Paths.Events)
	if err != nil {
		return err
	}

	var final domain.EventRecord
	err = events.Tail(ctx, jobID, eventlog.TailOptions{
		PollInterval: cfg.Stream.PollInterval,
		Timeout:      cfg.Stream.Timeout,
	}, func(line []byte, rec domain.EventRecord) error {
		out := cmd.OutOrStdout()
		if tailRaw || rec.Event == "" {
			fmt.Fprintln(out, string(line))
		} else {
			fmt.Fprintf(out, "%-8s %-14s %s\n", rec.Severity, rec.Event, rec.Message)
		}
		final = rec
		return nil
	})
	switch {
	case errors.Is(err, eventlog.ErrTailTimeout):
		return fmt.Errorf("job %s did not finish within %s", jobID, cfg.Stream.Timeout)
	case err != nil:
		return err
	}

	if final.Event == domain.EventJobFailed {
		return fmt.Errorf("job %s failed: %s", jobID, final.Message)
	}
	return nil
}
