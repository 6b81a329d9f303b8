package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage webhook signing keys",
	}
	cmd.AddCommand(newKeysGenerateCmd(), newKeysListCmd(), newKeysDeactivateCmd(), newKeysDeleteCmd())
	return cmd
}

func newKeysGenerateCmd() *cobra.Command {
	var (
		kid       string
		expiresIn time.Duration
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new active signing key",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, manager, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			var expiresAt *time.Time
			if expiresIn > 0 {
				ts := time.Now().UTC().Add(expiresIn)
				expiresAt = &ts
			}
			rec, err := manager.GenerateKey(cmd.Context(), kid, expiresAt)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated key %s\n", rec.KID)
			return nil
		},
	}
	cmd.Flags().StringVar(&kid, "kid", "", "explicit key id (default: auto-generated)")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "advisory key lifetime, e.g. 8760h")
	return cmd
}

func newKeysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active signing keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, manager, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			jwks, err := manager.GetActivePublicKeysAsJWK(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KID\tKTY\tCRV\tALG")
			for _, jwk := range jwks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", jwk.KID, jwk.Kty, jwk.Crv, jwk.Alg)
			}
			return w.Flush()
		},
	}
}

func newKeysDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <kid>",
		Short: "Deactivate a signing key, keeping its material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, manager, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := manager.DeactivateKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deactivated key %s\n", args[0])
			return nil
		},
	}
}

func newKeysDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kid>",
		Short: "Delete a signing key permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, manager, err := openStores(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			if err := manager.DeleteKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted key %s\n", args[0])
			return nil
		},
	}
}
