package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/timmy/zip2text/internal/queue"
	"github.com/timmy/zip2text/internal/repository"
	"github.com/timmy/zip2text/internal/service"
)

var submitFollow bool

var submitCmd = &cobra.Command{
	Use:   "submit [archive.zip]",
	Short: "Queue a ZIP archive for text extraction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer f.Close()

		jobQueue, err := queue.New(cfg.Paths.Queue)
		if err != nil {
			return err
		}

		var history service.HistoryCreator
		if cfg.Database.Enabled {
			db, err := repository.InitDB(&cfg.Database)
			if err != nil {
				return err
			}
			history = repository.NewJobRepository(db)
		}

		submission, err := service.NewSubmissionService(jobQueue, history, &service.SubmissionConfig{
			UploadDir: cfg.Paths.Uploads,
			MaxBytes:  cfg.Server.MaxUploadMB << 20,
		})
		if err != nil {
			return err
		}

		jobID, err := submission.Submit(cmd.Context(), filepath.Base(path), f)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), jobID)

		if submitFollow {
			return followJob(cmd, jobID)
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().BoolVarP(&submitFollow, "follow", "f", false, "Follow the job's events after submitting")
	rootCmd.AddCommand(submitCmd)
}
