// Package cmd implements the chatbot command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatbot",
	Short: "Scripted conversational chat service",
	Long: `chatbot is a small HTTP service that walks each caller through a
scripted conversation (hello, then name, then favorite song) and persists the
progress per phone number in PostgreSQL.

Running chatbot with no arguments starts the server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
