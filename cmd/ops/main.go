// Command ops is the admin CLI: data-dir backup/restore, legacy progress
// migration, and per-user save exports.
package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/DianeXD/BetterQuesting/internal/ops"
	"github.com/DianeXD/BetterQuesting/internal/quest"
	"github.com/DianeXD/BetterQuesting/internal/save"
)

func main() {
	root := &cobra.Command{
		Use:           "ops",
		Short:         "BetterQuesting server administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(backupCmd(), restoreCmd(), migrateCmd(), exportCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func backupCmd() *cobra.Command {
	var dataDir, out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive the data directory to a .tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				ts := time.Now().UTC().Format("20060102T150405Z")
				out = filepath.Join("backups", "betterquesting-"+ts+".tar.gz")
			}
			if err := ops.BackupDataDir(dataDir, out); err != nil {
				return err
			}
			fmt.Println("wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	cmd.Flags().StringVar(&out, "out", "", "output archive path (.tar.gz)")
	return cmd
}

func restoreCmd() *cobra.Command {
	var dataDir, archive string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a data directory from an archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			if archive == "" {
				return fmt.Errorf("--archive is required")
			}
			if err := ops.RestoreDataDir(archive, dataDir); err != nil {
				return err
			}
			fmt.Println("restored into", dataDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	cmd.Flags().StringVar(&archive, "archive", "", "archive to restore from")
	return cmd
}

// migrateCmd loads progress through the normal repair path (legacy shapes
// included) and writes it back in the current format.
func migrateCmd() *cobra.Command {
	var dataDir, content string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the progress file in the current format",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "", log.LstdFlags)

			db, _, err := quest.LoadContent(content, logger)
			if err != nil {
				return err
			}
			repo, err := save.NewFileRepo(dataDir, logger)
			if err != nil {
				return err
			}
			if err := repo.Load(db); err != nil {
				return err
			}
			if err := repo.Save(db); err != nil {
				return err
			}
			fmt.Println("migrated progress for", db.Len(), "quests")
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	cmd.Flags().StringVar(&content, "content", "questing.yml", "path to quest content")
	return cmd
}

// exportCmd writes a progress slice restricted to the given users.
func exportCmd() *cobra.Command {
	var dataDir, content, outDir string
	var users []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a per-user progress slice",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(users) == 0 {
				return fmt.Errorf("--user is required at least once")
			}
			filter := make([]uuid.UUID, 0, len(users))
			for _, s := range users {
				id, err := uuid.Parse(s)
				if err != nil {
					return fmt.Errorf("bad user id %q: %w", s, err)
				}
				filter = append(filter, id)
			}

			logger := log.New(os.Stderr, "", log.LstdFlags)
			db, _, err := quest.LoadContent(content, logger)
			if err != nil {
				return err
			}
			repo, err := save.NewFileRepo(dataDir, logger)
			if err != nil {
				return err
			}
			if err := repo.Load(db); err != nil {
				return err
			}

			out, err := save.NewFileRepo(outDir, logger)
			if err != nil {
				return err
			}
			if err := out.SaveFiltered(db, filter); err != nil {
				return err
			}
			fmt.Println("exported slice for", len(filter), "users into", outDir)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "data", "path to data directory")
	cmd.Flags().StringVar(&content, "content", "questing.yml", "path to quest content")
	cmd.Flags().StringVar(&outDir, "out-dir", "exports", "directory for the exported slice")
	cmd.Flags().StringArrayVar(&users, "user", nil, "user UUID to include (repeatable)")
	return cmd
}
