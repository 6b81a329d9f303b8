package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/aeqet/ucp"
)

func newManifestCmd() *cobra.Command {
	var endpoint string
	cmd := &cobra.Command{
		Use:   "manifest",
		Short: "Print the discovery manifest as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL := os.Getenv("UCP_BASE_URL")
			db, manager, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			gen, err := ucp.NewManifestGenerator(ucp.ManifestConfig{
				BaseURL:     baseURL,
				APIEndpoint: endpoint,
			}, manager)
			if err != nil {
				return err
			}
			doc, err := gen.Generate(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(doc)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "checkout endpoint path (default: /ucp/v1/checkout_sessions)")
	return cmd
}
