package main

import (
	"session-tracker/internal/config"
	"session-tracker/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Fatal("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:          "session-tracker",
		Short:        "Real-time session presence tracker",
		Long:         "session-tracker keeps track of who is in which collaborative terminal session and fans presence events out over WebSocket.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().Int("port", 0, "HTTP listen port")
	// Flags only override config and environment when set explicitly.
	v.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	v.BindPFlag("server.port", rootCmd.PersistentFlags().Lookup("port"))

	rootCmd.AddCommand(
		newServeCmd(v),
		newTokenCmd(v),
	)
	return rootCmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}
}
