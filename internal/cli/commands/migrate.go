package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelmig/internal/archive"
	"github.com/conduit-lang/modelmig/internal/batch"
	"github.com/conduit-lang/modelmig/internal/cli/ui"
	"github.com/conduit-lang/modelmig/internal/metamodel"
	"github.com/conduit-lang/modelmig/internal/migerr"
	"github.com/conduit-lang/modelmig/internal/service"
	"github.com/conduit-lang/modelmig/internal/utils"
)

type migrateOptions struct {
	outDir  string
	zipPath string
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	mo := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate FILE...",
		Short: "Migrate model documents offline",
		Long: `Migrate a batch of model documents without running the service.

All files are migrated together, so references between them are kept. The batch
either migrates completely or nothing is written.

Examples:
  modelmig migrate My.persons Db.books Main.library --out migrated/
  modelmig migrate models/ --zip migrated-models.zip`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts, mo, args)
		},
	}

	cmd.Flags().StringVarP(&mo.outDir, "out", "o", "migrated", "Directory receiving the migrated documents")
	cmd.Flags().StringVar(&mo.zipPath, "zip", "", "Write a zip archive instead of a directory")
	cmd.MarkFlagsMutuallyExclusive("out", "zip")

	return cmd
}

func runMigrate(cmd *cobra.Command, opts *rootOptions, mo *migrateOptions, args []string) error {
	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	svc, err := service.FromConfig(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	files, err := readInputFiles(args, catalogueExtensions(svc.Catalogue()))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no model documents found in %s", strings.Join(args, ", "))
	}

	data, err := svc.Migrate(cmd.Context(), uuid.New().String(), files)
	if err != nil {
		var batchErr *migerr.BatchMigrationError
		if errors.As(err, &batchErr) {
			fmt.Fprint(cmd.ErrOrStderr(), ui.BatchError(batchErr, color.NoColor))
			return errReported
		}
		return err
	}

	out := cmd.OutOrStdout()
	if mo.zipPath != "" {
		if err := os.WriteFile(mo.zipPath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write archive: %w", err)
		}
		ui.WriteSuccess(out, fmt.Sprintf("Migrated %d documents into %s", len(files), mo.zipPath), color.NoColor)
		return nil
	}

	migrated, err := archive.Read(data)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(mo.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, f := range migrated {
		if err := os.WriteFile(filepath.Join(mo.outDir, f.Name), f.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}
	ui.WriteSuccess(out, fmt.Sprintf("Migrated %d documents into %s", len(migrated), mo.outDir), color.NoColor)
	return nil
}

// readInputFiles reads the documents of a batch. Directories are searched for files
// with a registered extension. Documents are named by their base name.
func readInputFiles(paths, extensions []string) ([]batch.File, error) {
	var files []batch.File
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}

		found := []string{p}
		if info.IsDir() {
			if found, err = utils.FindModelFiles(p, extensions); err != nil {
				return nil, fmt.Errorf("failed to search %s: %w", p, err)
			}
		}

		for _, f := range found {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", f, err)
			}
			files = append(files, batch.File{Name: filepath.Base(f), Data: data})
		}
	}
	return files, nil
}

func catalogueExtensions(kinds []metamodel.KindInfo) []string {
	var exts []string
	for _, k := range kinds {
		exts = append(exts, k.Extensions...)
	}
	return exts
}
