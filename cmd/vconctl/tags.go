package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	tagsCmd := &cobra.Command{Use: "tags", Short: "Tag operations"}

	getCmd := &cobra.Command{
		Use:   "get UUID",
		Short: "List a record's tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(newClient().R(), "GET", "/api/vcons/"+args[0]+"/tags")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	tagsCmd.AddCommand(getCmd)

	setCmd := &cobra.Command{
		Use:   "set UUID KEY VALUE",
		Short: "Set one tag",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(newClient().R().SetBody(map[string]string{"value": args[2]}),
				"PUT", "/api/vcons/"+args[0]+"/tags/"+args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	tagsCmd.AddCommand(setCmd)

	rmCmd := &cobra.Command{
		Use:   "rm UUID KEY",
		Short: "Remove one tag",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := call(newClient().R(), "DELETE", "/api/vcons/"+args[0]+"/tags/"+args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "removed")
			return nil
		},
	}
	tagsCmd.AddCommand(rmCmd)

	rootCmd.AddCommand(tagsCmd)
}
