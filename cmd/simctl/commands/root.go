package commands

import (
	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCommand builds simctl's root command and wires its subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "simctl",
		Short:   "Run and inspect home-equity fund Monte Carlo simulations",
		Version: version,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newResultsCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newScenariosCommand())
	return root
}
