package source

import (
	"github.com/ValentinKolb/jstore/cmd/util"
	"github.com/ValentinKolb/jstore/rest/client"
	"github.com/spf13/cobra"
)

var (
	restClient *client.Client

	// SourceCommands represents the source command group
	SourceCommands = &cobra.Command{
		Use:               "source",
		Short:             "Manage sources (create, open, close, remove, sidecars)",
		PersistentPreRunE: setupClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the client flags to the source command
	util.SetupClientFlags(SourceCommands)

	// Add subcommands
	SourceCommands.AddCommand(listCmd)
	SourceCommands.AddCommand(createCmd)
	SourceCommands.AddCommand(openCmd)
	SourceCommands.AddCommand(closeCmd)
	SourceCommands.AddCommand(removeCmd)
	SourceCommands.AddCommand(flushCmd)
	SourceCommands.AddCommand(syncCmd)
	SourceCommands.AddCommand(infoCmd)
	SourceCommands.AddCommand(schemaCmd)
	SourceCommands.AddCommand(configCmd)
}

// setupClient initializes the REST client
func setupClient(cmd *cobra.Command, _ []string) error {
	var err error
	restClient, err = util.NewClient(cmd)
	return err
}
