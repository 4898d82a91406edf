package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// readDocument loads a JSON document from --file, or stdin when the flag
// is "-" or empty.
func readDocument(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func init() {
	vconsCmd := &cobra.Command{Use: "vcons", Short: "Conversation record operations"}

	var createFile string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a record from a JSON file or stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(createFile)
			if err != nil {
				return err
			}
			if !json.Valid(doc) {
				return fmt.Errorf("input is not valid JSON")
			}
			out, err := call(newClient().R().SetBody(doc), "POST", "/api/vcons")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	createCmd.Flags().StringVarP(&createFile, "file", "f", "", "JSON file with the record ('-' for stdin)")
	vconsCmd.AddCommand(createCmd)

	var batchFile string
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Create records in bulk from a JSON array file",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(batchFile)
			if err != nil {
				return err
			}
			var docs []json.RawMessage
			if err := json.Unmarshal(doc, &docs); err != nil {
				return fmt.Errorf("input must be a JSON array of records: %w", err)
			}
			out, err := call(newClient().R().SetBody(map[string]interface{}{"vcons": docs}), "POST", "/api/vcons/batch")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	batchCmd.Flags().StringVarP(&batchFile, "file", "f", "", "JSON file with an array of records ('-' for stdin)")
	vconsCmd.AddCommand(batchCmd)

	getCmd := &cobra.Command{
		Use:   "get UUID",
		Short: "Fetch a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(newClient().R(), "GET", "/api/vcons/"+args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	vconsCmd.AddCommand(getCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete UUID",
		Short: "Delete a record by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := call(newClient().R(), "DELETE", "/api/vcons/"+args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, "deleted")
			return nil
		},
	}
	vconsCmd.AddCommand(deleteCmd)

	var subject string
	subjectCmd := &cobra.Command{
		Use:   "subject UUID",
		Short: "Update a record's subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(newClient().R().SetBody(map[string]string{"subject": subject}),
				"PUT", "/api/vcons/"+args[0]+"/subject")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	subjectCmd.Flags().StringVarP(&subject, "subject", "s", "", "New subject")
	_ = subjectCmd.MarkFlagRequired("subject")
	vconsCmd.AddCommand(subjectCmd)

	var childFile string
	for _, child := range []struct {
		use, short, path string
	}{
		{"add-dialog UUID", "Append a dialog entry", "dialog"},
		{"add-analysis UUID", "Append an analysis entry", "analysis"},
		{"add-attachment UUID", "Append an attachment", "attachments"},
	} {
		child := child
		cmd := &cobra.Command{
			Use:   child.use,
			Short: child.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				doc, err := readDocument(childFile)
				if err != nil {
					return err
				}
				out, err := call(newClient().R().SetBody(doc),
					"POST", "/api/vcons/"+args[0]+"/"+child.path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, string(out))
				return nil
			},
		}
		cmd.Flags().StringVarP(&childFile, "file", "f", "", "JSON file with the entry ('-' for stdin)")
		vconsCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(vconsCmd)
}
