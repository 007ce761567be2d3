package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "upravdom",
	Short: "Консультант по жилищно-коммунальным вопросам",
	Long: `upravdom answers housing-and-utilities questions in Russian,
grounded in a local corpus of normative acts and case practice.

Run "upravdom serve" to start the HTTP and MCP server, or
"upravdom ask <вопрос>" for a one-shot answer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the upravdom version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("upravdom version %s\n", version)
	},
}
