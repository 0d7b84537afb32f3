package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "dispensary",
		Short:         "Clinic appointment booking client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("DISPENSARY_CONFIG"), "Path to config.yaml")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(appointmentsCmd())
	rootCmd.AddCommand(bookCmd())
	rootCmd.AddCommand(editCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(queueCmd())
	rootCmd.AddCommand(cancelDayCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.Execute(); err != nil {
		var reported errReported
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

// open builds the app from the root persistent flags.
func open(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	return newApp(path, verbose)
}
