package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/timmy/zip2text/internal/domain"
	"github.com/timmy/zip2text/internal/repository"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Show job history",
	Long: `Show one job's history row, or the most recent jobs when no id is given.
Requires database.enabled.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Database.Enabled {
			return errors.New("job history is disabled (database.enabled=false)")
		}
		db, err := repository.InitDB(&cfg.Database)
		if err != nil {
			return err
		}
		repo := repository.NewJobRepository(db)

		var records []domain.JobRecord
		if len(args) == 1 {
			rec, err := repo.GetByID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			records = append(records, *rec)
		} else {
			records, err = repo.ListRecent(cmd.Context(), statusLimit)
			if err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		defer w.Flush()
		fmt.Fprintln(w, "JOB ID\tFILE\tSTATUS\tIMAGES\tFAILED\tSUBMITTED")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n", r.ID, r.OriginalFilename, r.Status,
				r.ImageCount, r.FailedCount, r.SubmittedAt.Local().Format(time.DateTime))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 20, "Number of recent jobs to list")
	rootCmd.AddCommand(statusCmd)
}
