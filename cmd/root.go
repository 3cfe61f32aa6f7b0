package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/jstore/cmd/kv"
	"github.com/ValentinKolb/jstore/cmd/serve"
	"github.com/ValentinKolb/jstore/cmd/source"
	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "jstore",
		Short: "embedded JSON document store",
		Long: fmt.Sprintf(`jstore (v%s)

A JSON document store written in Go. Documents are organized in named
sources, each backed by its own compressed key-value engine in a
subdirectory of the home directory.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of jstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("jstore v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(source.SourceCommands)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
