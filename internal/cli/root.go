package cli

import "github.com/spf13/cobra"

// Version is set at build time with -ldflags "-X .../internal/cli.Version=..."
var Version = "dev"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "summaryd",
		Short:         "Multi-tenant incident summary service",
		Long:          "summaryd transcribes short audio recordings per system, keeps a running incident summary for each system with an LLM, pushes every update to a webhook and clears summaries after a period of inactivity.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the config file (default: $CONFIG_FILE or ./config.toml)")

	rootCmd.AddCommand(
		newServeCmd(&configPath),
		newGenConfigCmd(),
		newMigrateCmd(&configPath),
		newVersionCmd(),
	)

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(Version + "\n"))
			return err
		},
	}
}
