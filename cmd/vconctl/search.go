package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// parseTagFlags turns repeated key=value flags into a map.
func parseTagFlags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("tag filter %q must be key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func init() {
	var (
		subject  string
		party    string
		tagPairs []string
		limit    int
		format   string
	)
	searchCmd := &cobra.Command{
		Use:   "search",
		Short: "Structured search over subject, party and tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			tags, err := parseTagFlags(tagPairs)
			if err != nil {
				return err
			}
			payload := map[string]interface{}{
				"subject": subject,
				"party":   party,
				"limit":   limit,
				"format":  format,
			}
			if tags != nil {
				payload["tags"] = tags
			}
			out, err := call(newClient().R().SetBody(payload), "POST", "/api/search")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	searchCmd.PersistentFlags().StringVarP(&format, "format", "o", "", "Response format: full|metadata|snippets|ids_only")
	searchCmd.PersistentFlags().IntVarP(&limit, "limit", "l", 0, "Result limit (0 = server default)")
	searchCmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject substring filter")
	searchCmd.Flags().StringVarP(&party, "party", "p", "", "Party identifier filter")
	searchCmd.Flags().StringArrayVarP(&tagPairs, "tag", "t", nil, "Tag filter key=value (repeatable, AND)")

	var query string
	weight := float32(-1)
	for _, ranked := range []struct {
		use, short, path string
	}{
		{"keyword", "BM25 keyword search", "/api/search/keyword"},
		{"semantic", "Vector similarity search", "/api/search/semantic"},
		{"hybrid", "Blended keyword+vector search", "/api/search/hybrid"},
	} {
		ranked := ranked
		cmd := &cobra.Command{
			Use:   ranked.use,
			Short: ranked.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if query == "" {
					return fmt.Errorf("--query required")
				}
				tags, err := parseTagFlags(tagPairs)
				if err != nil {
					return err
				}
				payload := map[string]interface{}{
					"query":  query,
					"limit":  limit,
					"format": format,
				}
				if tags != nil {
					payload["tags"] = tags
				}
				if weight >= 0 {
					payload["weight"] = weight
				}
				out, err := call(newClient().R().SetBody(payload), "POST", ranked.path)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(os.Stdout, string(out))
				return nil
			},
		}
		cmd.Flags().StringVarP(&query, "query", "q", "", "Query text (required)")
		cmd.Flags().StringArrayVarP(&tagPairs, "tag", "t", nil, "Tag filter key=value (repeatable, AND)")
		if ranked.use == "hybrid" {
			cmd.Flags().Float32VarP(&weight, "weight", "w", -1, "Vector share 0..1 (omit for server default)")
		}
		searchCmd.AddCommand(cmd)
	}

	sizingCmd := &cobra.Command{
		Use:   "sizing",
		Short: "Corpus scale and recommended request sizing",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := call(newClient().R(), "GET", "/api/search/sizing")
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(os.Stdout, string(out))
			return nil
		},
	}
	searchCmd.AddCommand(sizingCmd)

	rootCmd.AddCommand(searchCmd)
}
