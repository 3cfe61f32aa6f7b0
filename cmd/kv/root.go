package kv

import (
	"github.com/ValentinKolb/jstore/cmd/util"
	"github.com/ValentinKolb/jstore/rest/client"
	"github.com/spf13/cobra"
)

var (
	restClient *client.Client

	// KeyValueCommands represents the document command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform document operations on a source",
		PersistentPreRunE: setupKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add the client flags to the KV command
	util.SetupClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(mgetCmd)
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(patchCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the REST client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	var err error
	restClient, err = util.NewClient(cmd)
	return err
}
