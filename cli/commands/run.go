package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/satishbabariya/dbkit/cli/internal/config"
	"github.com/satishbabariya/dbkit/cli/internal/ui"
	"github.com/satishbabariya/dbkit/cli/internal/watch"
)

// RequestFile is a YAML list of operations run in order.
//
//	provider: sqlite
//	url: file:app.db
//	operations:
//	  - op: batch
//	    table: users
//	    where: "age >= ?"
//	    args: [18]
//	    order: id
//	    page: 0
//	    rows: 20
type RequestFile struct {
	Provider   string      `yaml:"provider,omitempty"`
	URL        string      `yaml:"url,omitempty"`
	Operations []Operation `yaml:"operations"`
}

// LoadRequestFile reads and validates a request file.
func LoadRequestFile(fs afero.Fs, path string) (*RequestFile, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var rf RequestFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(rf.Operations) == 0 {
		return nil, fmt.Errorf("%s: no operations", path)
	}
	for i, op := range rf.Operations {
		if op.Table == "" {
			return nil, fmt.Errorf("%s: operation %d has no table", path, i+1)
		}
	}
	return &rf, nil
}

func newRunCommand(g *globals) *cobra.Command {
	var (
		watchFile bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "run <request.yaml>",
		Short: "Run the operations in a request file",
		Long: `Run every operation listed in a YAML request file. With --watch the file is
re-run whenever it is saved. With --dry-run the SQL is rendered instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, positional []string) error {
			path := positional[0]
			run := func(ctx context.Context) error {
				return runFile(ctx, g, path, dryRun)
			}
			if !watchFile {
				return run(cmd.Context())
			}

			w, err := watch.NewWatcher(path, run, func(err error) {
				ui.PrintError("%v", err)
			})
			if err != nil {
				return err
			}
			ui.PrintInfo("Watching %s, press Ctrl+C to stop", path)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&watchFile, "watch", false, "re-run when the file changes")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "render SQL without connecting")
	return cmd
}

func runFile(ctx context.Context, g *globals, path string, dryRun bool) error {
	rf, err := LoadRequestFile(config.AppFs, path)
	if err != nil {
		return err
	}

	// The file supplies the database unless a flag already did
	fileGlobals := *g
	if fileGlobals.provider == "" {
		fileGlobals.provider = rf.Provider
	}
	if fileGlobals.url == "" {
		fileGlobals.url = rf.URL
	}

	if dryRun {
		d, err := fileGlobals.dialect()
		if err != nil {
			return err
		}
		for _, op := range rf.Operations {
			if err := renderOne(op, d); err != nil {
				return err
			}
		}
		return nil
	}

	s, err := fileGlobals.open(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	for _, op := range rf.Operations {
		ui.PrintSection(op.Title())
		if err := s.run(ctx, op); err != nil {
			return fmt.Errorf("%s: %w", op.Title(), err)
		}
	}
	return nil
}
