// Command rxctl is the operator CLI: schema migrations, offline refill
// plans, slot lookups, dev tokens and an event tail.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/rx-scheduler/internal/config"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "rxctl",
		Short:         "Operate the prescription and appointment scheduler",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "path to config.yml")

	root.AddCommand(migrateCmd())
	root.AddCommand(planCmd())
	root.AddCommand(slotsCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(eventsCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.LoadConfig(path)
}
