package storageadapter

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/foundry-works/workspace-worker/pkg/security"
)

// PostgresAdapter serves the "postgresql" URL scheme. Workspaces live as
// per-workspace schemas in a shared cluster; destroying a workspace drops
// its schema.
type PostgresAdapter struct {
	url string
	db  *gorm.DB
}

// NewPostgresFactory returns the Factory registered for "postgresql".
func NewPostgresFactory() Factory {
	return func(ctx context.Context, dbURL string) (Adapter, error) {
		db, err := gorm.Open(postgres.Open(dbURL), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("storageadapter: open postgres: %w", err)
		}
		return &PostgresAdapter{url: dbURL, db: db}, nil
	}
}

// URL returns the DB URL this adapter was opened against.
func (a *PostgresAdapter) URL() string { return a.url }

// DeleteWorkspace drops the workspace's schema and everything in it.
func (a *PostgresAdapter) DeleteWorkspace(ctx context.Context, ref WorkspaceRef) error {
	schema, err := workspaceSchema(ref)
	if err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DROP SCHEMA IF EXISTS %q CASCADE`, schema)
	if err := a.db.WithContext(ctx).Exec(stmt).Error; err != nil {
		return fmt.Errorf("storageadapter: drop schema %s: %w", schema, err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *PostgresAdapter) Close(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// workspaceSchema derives the schema name for a workspace, preferring the
// opaque uuid the storage tier namespaces by. The name is validated before
// it is spliced into DDL: schema names cannot be bound parameters.
func workspaceSchema(ref WorkspaceRef) (string, error) {
	name := ref.UUID
	if name == "" {
		name = ref.Name
	}
	if err := security.ValidateWorkspaceName(name); err != nil {
		return "", err
	}
	return "ws_" + strings.ReplaceAll(name, "-", "_"), nil
}
