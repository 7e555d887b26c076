package cmd

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/truemediaorg/mentionbot/config"
	"github.com/truemediaorg/mentionbot/database"
	"github.com/truemediaorg/mentionbot/service"

	log "github.com/sirupsen/logrus"
)

func newSecretsManagerClient(ctx context.Context) *secretsmanager.Client {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal(err)
	}
	return secretsmanager.NewFromConfig(awsConfig)
}

// openStore connects to Postgres when it is configured and opens the SQLite
// file otherwise.
func openStore(ctx context.Context, cfg config.Config, secrets service.SecretGetter) (database.Store, error) {
	if !cfg.UsesPostgres() {
		log.WithField("path", cfg.SQLitePath).Info("using SQLite store")
		return database.OpenSQLite(cfg.SQLitePath)
	}

	databaseURL := cfg.PostgresURL
	if databaseURL == "" {
		// Get the DB secrets from AWS Secrets Manager
		pgSecrets, err := service.ReadSecret[config.PostgresSecretData](ctx, secrets, cfg.PostgresSecretPath)
		if err != nil {
			return nil, fmt.Errorf("postgres secrets read error: %w", err)
		}
		databaseURL = pgSecrets.ConnectionString
	}

	log.Info("using Postgres store")
	store := database.NewPostgres(databaseURL)
	if err := store.Connect(ctx); err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	return store, nil
}
