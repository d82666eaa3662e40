package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/config"
)

// cfg is loaded once per invocation before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "leadgen",
	Short:        "B2B lead generation pipeline",
	Long:         "Searches the web for companies matching an industry and province, extracts their contact data, drafts a personalized sales email for each and stores the results as leads.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadRuntime()
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		_ = zap.L().Sync()
	},
}

// loadRuntime reads the configuration and installs the global logger.
func loadRuntime() error {
	c, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "leadgen: load config")
	}
	if err := config.InitLogger(c.Log); err != nil {
		return eris.Wrap(err, "leadgen: init logger")
	}
	cfg = c
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		zap.L().Error("leadgen: command failed", zap.Error(err))
		os.Exit(1)
	}
}
