// Command ucp is the operator CLI: signing-key lifecycle management and
// discovery manifest inspection.
//
// Configuration comes from the environment, optionally loaded from a .env
// file:
//
//	DATABASE_URL       PostgreSQL connection string
//	UCP_ENCRYPTION_KEY hex-encoded 32-byte key protecting private key material
//	UCP_BASE_URL       public origin published in the manifest
package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/aeqet/ucp/keys"
	"github.com/aeqet/ucp/postgres"
)

func main() {
	root := &cobra.Command{
		Use:           "ucp",
		Short:         "UCP operator tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newKeysCmd(), newManifestCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openStores wires the database-backed stores from the environment.
func openStores(ctx context.Context) (*sql.DB, *keys.Manager, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is not set")
	}
	keyHex := os.Getenv("UCP_ENCRYPTION_KEY")
	if keyHex == "" {
		return nil, nil, fmt.Errorf("UCP_ENCRYPTION_KEY is not set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, nil, fmt.Errorf("UCP_ENCRYPTION_KEY must be hex-encoded: %w", err)
	}
	encryptor, err := keys.NewAESGCMEncryptor(key)
	if err != nil {
		return nil, nil, err
	}

	db, err := postgres.Open(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	manager := keys.NewManager(postgres.NewKeyStore(db), encryptor)
	return db, manager, nil
}
