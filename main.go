package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"chat-client/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chatclient",
		Short:         "Chat client core: session, cached reads and mutations against the chat backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newServeCmd(), newWhoamiCmd(), newProbeCmd())
	return root
}

func loadConfig() (*config.Config, *logrus.Logger) {
	bootstrap := config.NewLogger(os.Getenv("LOG_LEVEL"))
	cfg := config.Load(bootstrap)
	return cfg, config.NewLogger(cfg.LogLevel)
}
