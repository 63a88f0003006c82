package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"inventoried/pkg/bus"
	"inventoried/pkg/db"
	gos3 "inventoried/pkg/s3"
	"inventoried/services/sync"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "invctl",
		Short:         "Operational tooling for the inventoried host inventory",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSynchronizeCommand())
	cmd.AddCommand(newExportCommand())
	return cmd
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	dsn := os.Getenv("INVENTORIED_DB_DSN")
	if dsn == "" {
		return nil, errors.New("INVENTORIED_DB_DSN is required")
	}
	return db.Open(ctx, dsn)
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return db.Migrate(ctx, pool)
		},
	}
}

func newSynchronizeCommand() *cobra.Command {
	var chunkSize int

	cmd := &cobra.Command{
		Use:   "synchronize",
		Short: "Re-emit an updated event for every stored host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			natsURL := os.Getenv("INVENTORIED_NATS_URL")
			if natsURL == "" {
				return errors.New("INVENTORIED_NATS_URL is required")
			}
			eventBus, err := bus.New(natsURL)
			if err != nil {
				return fmt.Errorf("connect bus: %w", err)
			}
			defer eventBus.Close()

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			logger := log.New(os.Stdout, "", log.LstdFlags)
			res, err := sync.Synchronize(ctx, sync.NewPGSource(pool), eventBus, sync.Options{
				ChunkSize: chunkSize,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			logger.Printf("INFO synchronized %d/%d hosts (%d failed)", res.Emitted, res.Total, res.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 500, "Hosts to read per database round-trip")
	return cmd
}

func newExportCommand() *cobra.Command {
	var (
		bucket    string
		prefix    string
		recipient string
		chunkSize int
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Upload a compressed snapshot of all hosts to S3",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			client, err := gos3.NewClientFromEnv()
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}

			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			manifest, err := sync.Export(ctx, sync.NewPGSource(pool), client, sync.ExportOptions{
				Bucket:    bucket,
				Prefix:    prefix,
				Recipient: recipient,
				ChunkSize: chunkSize,
			})
			if err != nil {
				return err
			}
			fmt.Printf("exported %d hosts to s3://%s/%s\n", manifest.HostCount, bucket, manifest.Key)
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Destination S3 bucket")
	cmd.Flags().StringVar(&prefix, "prefix", "snapshots/", "Object key prefix")
	cmd.Flags().StringVar(&recipient, "recipient", "", "Optional age recipient to encrypt the snapshot to")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 500, "Hosts to read per database round-trip")
	_ = cmd.MarkFlagRequired("bucket")
	return cmd
}
