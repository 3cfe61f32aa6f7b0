package kv

import (
	"fmt"

	"github.com/ValentinKolb/jstore/cmd/util"
	"github.com/ValentinKolb/jstore/lib/store"
	"github.com/spf13/cobra"
)

var (
	getCmd = &cobra.Command{
		Use:   "get [source] [key]",
		Short: "Reads the document stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, key := args[0], args[1]
			if doc, ok, err := restClient.Get(source, key); err != nil {
				return err
			} else {
				fmt.Printf("key=%s, found=%v, doc=%s\n", key, ok, doc)
			}
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [source] [key...]",
		Short: "Reads the documents of several keys, missing keys are left out",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, keys := args[0], args[1:]
			docs, err := restClient.GetMany(source, keys)
			if err != nil {
				return err
			}
			for _, key := range keys {
				if doc, ok := docs[key]; ok {
					fmt.Printf("key=%s, doc=%s\n", key, doc)
				}
			}
			return nil
		},
	}
	putCmd = &cobra.Command{
		Use:   "put [source] [key] [document]",
		Short: "Stores a JSON document under a key",
		Long:  "Stores a JSON document under a key. With --file the document is read from a file (use - for stdin) instead of the third argument.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := documentArg(cmd, args, 2)
			if err != nil {
				return err
			}
			doc, err := store.ParseDocument(text)
			if err != nil {
				return err
			}
			prev, replaced, err := restClient.Put(args[0], args[1], doc)
			if err != nil {
				return err
			}
			if replaced {
				fmt.Printf("put successfully, previous=%s\n", prev)
			} else {
				fmt.Println("put successfully")
			}
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [source] [key]",
		Short: "Deletes the document stored under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prev, found, err := restClient.Delete(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, doc=%s\n", args[1], found, prev)
			return nil
		},
	}
	patchCmd = &cobra.Command{
		Use:   "patch [source] [key] [patch]",
		Short: "Applies a merge patch (or with --json-patch a JSON patch) to a document",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := documentArg(cmd, args, 2)
			if err != nil {
				return err
			}
			var doc store.Document
			if jsonPatch, _ := cmd.Flags().GetBool("json-patch"); jsonPatch {
				doc, err = restClient.JSONPatch(args[0], args[1], patch)
			} else {
				doc, err = restClient.MergePatch(args[0], args[1], patch)
			}
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, doc=%s\n", args[1], doc)
			return nil
		},
	}
)

func init() {
	putCmd.Flags().String("file", "", util.WrapString("Read the document from this file (- for stdin)"))
	patchCmd.Flags().String("file", "", util.WrapString("Read the patch from this file (- for stdin)"))
	patchCmd.Flags().Bool("json-patch", false, util.WrapString("Interpret the patch as an RFC 6902 JSON patch instead of a merge patch"))
}

// documentArg returns the JSON argument at index i or the content of --file
func documentArg(cmd *cobra.Command, args []string, i int) ([]byte, error) {
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		return util.ReadInput(file)
	}
	if len(args) <= i {
		return nil, fmt.Errorf("missing JSON argument (or --file)")
	}
	return []byte(args[i]), nil
}
