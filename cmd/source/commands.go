package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ValentinKolb/jstore/cmd/util"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the registered sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := restClient.Sources()
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(sources, "\n"))
			return nil
		},
	}
	createCmd = &cobra.Command{
		Use:   "create [source]",
		Short: "Creates a source (no-op if it exists)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := restClient.Create(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("source=%s, created=%t\n", args[0], created)
			return nil
		},
	}
	openCmd = &cobra.Command{
		Use:   "open [source]",
		Short: "Opens a closed source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFound(args[0], "opened")(restClient.Open(args[0]))
		},
	}
	closeCmd = &cobra.Command{
		Use:   "close [source]",
		Short: "Closes a source, its data stays on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFound(args[0], "closed")(restClient.CloseSource(args[0]))
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [source]",
		Short: "Removes a source and deletes all of its data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFound(args[0], "removed")(restClient.Remove(args[0]))
		},
	}
	flushCmd = &cobra.Command{
		Use:   "flush [source]",
		Short: "Writes the pending writes of a source to its engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := restClient.Flush(args[0]); err != nil {
				return err
			}
			fmt.Println("flushed successfully")
			return nil
		},
	}
	syncCmd = &cobra.Command{
		Use:   "sync [source]",
		Short: "Makes all writes to a source durable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := restClient.Sync(args[0]); err != nil {
				return err
			}
			fmt.Println("synced successfully")
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info [source]",
		Short: "Prints the statistics of an open source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := restClient.Info(args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	schemaCmd = &cobra.Command{
		Use:   "schema [source] [file]",
		Short: "Prints the schema of a source, or replaces it with the content of file",
		Long:  "Prints the schema of a source. If a file is given its content becomes the new schema (use - for stdin). With --remove the schema is deleted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			if remove, _ := cmd.Flags().GetBool("remove"); remove {
				return printSidecar(restClient.RemoveSchema(source))
			}
			if len(args) == 1 {
				return printSidecar(restClient.GetSchema(source))
			}
			text, err := util.ReadInput(args[1])
			if err != nil {
				return err
			}
			if err := restClient.PutSchema(source, text); err != nil {
				return err
			}
			fmt.Println("schema updated successfully")
			return nil
		},
	}
	configCmd = &cobra.Command{
		Use:   "config [source] [file]",
		Short: "Prints the config of a source, or replaces it with the content of file",
		Long:  "Prints the config of a source. If a file is given its content becomes the new config (use - for stdin), missing fields are filled with the defaults. The config is applied the next time the source is opened. With --remove the config is deleted.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := args[0]
			if remove, _ := cmd.Flags().GetBool("remove"); remove {
				return printSidecar(restClient.RemoveConfig(source))
			}
			if len(args) == 1 {
				return printSidecar(restClient.GetConfig(source))
			}
			text, err := util.ReadInput(args[1])
			if err != nil {
				return err
			}
			cfg, err := restClient.PutConfig(source, text)
			if err != nil {
				return err
			}
			fmt.Print(string(cfg.Marshal()))
			return nil
		},
	}
)

func init() {
	schemaCmd.Flags().Bool("remove", false, "Remove the schema")
	configCmd.Flags().Bool("remove", false, "Remove the config")
}

// printFound returns a printer for operations that report whether the source exists
func printFound(source, action string) func(bool, error) error {
	return func(found bool, err error) error {
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("source %q not found", source)
		}
		fmt.Printf("source=%s, %s successfully\n", source, action)
		return nil
	}
}

func printSidecar(text []byte, found bool, err error) error {
	if err != nil {
		return err
	}
	if !found {
		fmt.Println("not found")
		return nil
	}
	fmt.Println(string(text))
	return nil
}
