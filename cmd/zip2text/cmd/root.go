package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/timmy/zip2text/internal/config"
	"github.com/timmy/zip2text/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "zip2text",
	Short: "zip2text submits ZIP archives of images for OCR and follows their progress",
	Long: `zip2text works directly against the local data directory shared with the
worker: submitted archives are written to the file queue and progress is read
from the per-job event log.

Common workflows:

  Submit an archive:
    zip2text submit scans.zip

  Follow a job until it finishes:
    zip2text tail <job-id>

  Submit and follow in one step:
    zip2text submit scans.zip --follow

  List recent jobs (requires job history):
    zip2text status

Configuration is read from ./configs/config.yaml or --config, with
environment overrides such as PATHS_DATA_DIR.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Keep stdout for command output
		logger.SetDefaultLogger(logger.New(&logger.Config{
			Level:       "warn",
			Format:      "text",
			Output:      os.Stderr,
			ServiceName: "zip2text-cli",
		}))

		loaded, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
}
