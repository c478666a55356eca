package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/cinch/migrate"
	"github.com/ehrlich-b/cinch/objstore"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate <source-dir> <sink-dir>",
		Short: "Copy every record from one object store into another, preserving references",
		Args:  cobra.ExactArgs(2),
		RunE:  runMigrate,
	}
	return cmd
}

func runMigrate(cmd *cobra.Command, args []string) error {
	srcDir, sinkDir := args[0], args[1]

	src, err := objstore.Load(srcDir)
	if err != nil {
		return fmt.Errorf("load source store: %w", err)
	}

	sink, err := loadOrNewStore(sinkDir)
	if err != nil {
		return fmt.Errorf("open sink store: %w", err)
	}

	maps, err := migrate.Migrate(src, sink)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := objstore.Save(sink, sinkDir); err != nil {
		return fmt.Errorf("save sink store: %w", err)
	}

	cmd.Printf("migrated %d projects, %d pipelines, %d jobs\n",
		len(maps.Projects), len(maps.Pipelines), len(maps.Jobs))
	return nil
}

func loadOrNewStore(dir string) (*objstore.VectorStore, error) {
	store, err := objstore.Load(dir)
	if err == nil {
		return store, nil
	}
	return objstore.NewVectorStore(), nil
}
