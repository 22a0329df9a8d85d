package storageadapter

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/foundry-works/workspace-worker/pkg/security"
)

// MongoAdapter serves the "mongodb" URL scheme. Workspaces live as
// per-workspace databases; destroying a workspace drops its database.
type MongoAdapter struct {
	url    string
	client *mongo.Client
}

// NewMongoFactory returns the Factory registered for "mongodb".
func NewMongoFactory() Factory {
	return func(ctx context.Context, dbURL string) (Adapter, error) {
		client, err := mongo.Connect(options.Client().ApplyURI(dbURL))
		if err != nil {
			return nil, fmt.Errorf("storageadapter: connect mongodb: %w", err)
		}
		return &MongoAdapter{url: dbURL, client: client}, nil
	}
}

// URL returns the DB URL this adapter was opened against.
func (a *MongoAdapter) URL() string { return a.url }

// DeleteWorkspace drops the workspace's database.
func (a *MongoAdapter) DeleteWorkspace(ctx context.Context, ref WorkspaceRef) error {
	name := ref.UUID
	if name == "" {
		name = ref.Name
	}
	if err := security.ValidateWorkspaceName(name); err != nil {
		return err
	}
	if err := a.client.Database(name).Drop(ctx); err != nil {
		return fmt.Errorf("storageadapter: drop database %s: %w", name, err)
	}
	return nil
}

// Close disconnects the driver.
func (a *MongoAdapter) Close(ctx context.Context) error {
	return a.client.Disconnect(ctx)
}
