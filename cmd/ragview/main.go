package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootFlags struct {
	store    string
	logLevel string
}

var rootCmd = &cobra.Command{
	Use:           "ragview",
	Short:         "Chat with a RAG service and keep the conversation history locally",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlags.store, "store", "", "history backend: bolt, redis, sql or memory (default from STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&rootFlags.logLevel, "log-level", "", "log level (default from LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
