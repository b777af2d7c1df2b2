package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iot-ota/edge-agent/internal/config"
	"github.com/iot-ota/edge-agent/internal/logger"
	"github.com/iot-ota/edge-agent/internal/service/agent"
	"github.com/iot-ota/edge-agent/internal/version"
)

var (
	// configPath to the settings YAML file.
	configPath string
	// logLevel overrides the default logging level.
	logLevel string

	// rootCmd represents the base command of the OTA agent.
	rootCmd = &cobra.Command{
		Use:   "ota-agent",
		Short: "Keep a single-host edge device on the latest signed application build",
		Long: `The OTA agent keeps one containerized workload on an edge device current.

Each invocation runs exactly one update cycle: fetch the published version
manifest, verify its signature, compare it against the installed version and,
when a newer build is available, download the signed image bundle and swap the
running workload over to it. The agent is meant to be invoked on a schedule,
for example from cron or a systemd timer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// checkCmd runs one update cycle and maps its outcome onto the
	// process exit status.
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Run one update cycle",
		Long: `Runs one update cycle and exits with a status describing its outcome:

  0   already up to date (or another cycle holds the lock)
  10  a newer build was installed and is serving
  20  the remote check could not complete
  30  a signature did not verify
  40  a container runtime operation failed
  50  local state could not be read or written`,
		Args: cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}

			outcome, _ := agent.Run(ctx, &agent.Options{ConfigPath: configPath})

			stop()
			os.Exit(outcome.ExitCode())
		},
	}
)

// Execute runs the ota-agent CLI.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	checkCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	checkCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "logging level (debug, info, warn, error)")

	rootCmd.AddCommand(checkCmd)
}
