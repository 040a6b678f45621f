// Package cli implements the vecboard command-line interface.
//
// The CLI lays out vector sets without storage (project) and drives a
// Coordinator on the configured store (insert, recompute, nearby, audit).
// Configuration comes from --config, VECBOARD_* environment variables and
// built-in defaults; see package internal/config.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
	gojson "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecboard"
	"github.com/hupe1980/vecboard/internal/config"
	"github.com/hupe1980/vecboard/projection"
)

var (
	version = "dev"
	commit  string
	date    string
)

// SetVersion sets the version information displayed by --version.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// globals are the persistent flags shared by all commands.
type globals struct {
	configPath string
	verbose    bool
	backend    string
	cfg        *config.Config
}

// NewRootCommand returns the vecboard command tree.
func NewRootCommand() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:          "vecboard",
		Short:        "vecboard lays out media board items by semantic similarity",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			if g.backend != "" {
				cfg.Store.Backend = g.backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			g.cfg = cfg

			level := parseLevel(cfg.Logging.Level)
			if g.verbose {
				level = charmlog.DebugLevel
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(withLogger(ctx, newLogger(cmd.ErrOrStderr(), level, cfg.Logging.Format)))
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("vecboard %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&g.backend, "store", "", "override store.backend")

	root.AddCommand(newProjectCmd(g))
	root.AddCommand(newInsertCmd(g))
	root.AddCommand(newRecomputeCmd(g))
	root.AddCommand(newNearbyCmd(g))
	root.AddCommand(newAuditCmd(g))

	return root
}

// Execute runs the CLI with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// withCoordinator opens the configured store, builds a Coordinator on it and
// runs fn. Both are closed when fn returns.
func (g *globals) withCoordinator(ctx context.Context, fn func(c *vecboard.Coordinator) error) (err error) {
	s, closeStore, err := openStore(ctx, g.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	opts, err := g.coordinatorOptions(ctx)
	if err != nil {
		return err
	}
	c, err := vecboard.New(s, opts...)
	if err != nil {
		return err
	}
	defer c.Close()

	return fn(c)
}

func (g *globals) coordinatorOptions(ctx context.Context) ([]vecboard.Option, error) {
	popts, err := g.cfg.Projection.Options()
	if err != nil {
		return nil, err
	}
	opts := []vecboard.Option{
		vecboard.WithProjectionOptions(popts...),
		vecboard.WithLogger(coordinatorLogger(loggerFromContext(ctx))),
		vecboard.WithRewriteOnInsert(g.cfg.Coordinator.RewriteOnInsert),
	}
	if g.cfg.Coordinator.ScopedLocking {
		opts = append(opts, vecboard.WithScopedLocking())
	}
	if limit := g.cfg.Coordinator.Limit(); limit > 0 {
		opts = append(opts, vecboard.WithRecomputeLimit(limit, g.cfg.Coordinator.RecomputeBurst))
	}
	return opts, nil
}

func (g *globals) projector() (*projection.Projector, error) {
	popts, err := g.cfg.Projection.Options()
	if err != nil {
		return nil, err
	}
	return projection.New(popts...), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := gojson.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}
