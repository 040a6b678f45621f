package cli

import (
	"errors"
	"fmt"
	"strings"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecboard"
	"github.com/hupe1980/vecboard/embed"
	"github.com/hupe1980/vecboard/model"
)

type projectOutput struct {
	Strategy  string           `json:"strategy"`
	Positions []model.Position `json:"positions"`
	Fallback  string           `json:"fallback,omitempty"`
}

func newProjectCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "project <file|->",
		Short: "Project a JSON array of vectors to canvas positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			var vectors [][]float32
			if err := gojson.Unmarshal(data, &vectors); err != nil {
				return fmt.Errorf("decode vectors: %w", err)
			}

			p, err := g.projector()
			if err != nil {
				return err
			}
			prog := newProgress(loggerFromContext(cmd.Context()))
			res := p.Project(vectors)
			prog.done(fmt.Sprintf("Projected %d vectors", len(vectors)))

			out := projectOutput{Strategy: res.Strategy.String(), Positions: res.Positions}
			if res.Err != nil {
				out.Fallback = res.Err.Error()
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

type insertOutput struct {
	ID        model.ItemID     `json:"id"`
	Position  model.Position   `json:"position"`
	Positions []model.Position `json:"positions"`
}

func newInsertCmd(g *globals) *cobra.Command {
	var (
		scope      string
		id         string
		vectorFile string
		text       string
	)
	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert an item and project its scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (vectorFile == "") == (text == "") {
				return errors.New("exactly one of --vector-file and --text is required")
			}
			if id == "" {
				id = uuid.NewString()
			}

			var vector model.Vector
			if vectorFile != "" {
				data, err := readInput(cmd, vectorFile)
				if err != nil {
					return err
				}
				if err := gojson.Unmarshal(data, &vector); err != nil {
					return fmt.Errorf("decode vector: %w", err)
				}
			}

			ctx := cmd.Context()
			return g.withCoordinator(ctx, func(c *vecboard.Coordinator) error {
				var (
					positions []model.Position
					err       error
				)
				if text != "" {
					e := embed.NewHashing(g.cfg.Embed.Dimension)
					positions, err = c.InsertCaption(ctx, model.Scope(scope), model.ItemID(id), e, captionFromText(text))
				} else {
					positions, err = c.InsertAndProject(ctx, model.Scope(scope), model.ItemID(id), vector)
				}
				if err != nil {
					return err
				}
				loggerFromContext(ctx).Info("Inserted item", "id", id, "scope", model.Scope(scope).String(), "items", len(positions))
				return writeJSON(cmd.OutOrStdout(), insertOutput{
					ID:        model.ItemID(id),
					Position:  positions[len(positions)-1],
					Positions: positions,
				})
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope (empty for the public board)")
	cmd.Flags().StringVar(&id, "id", "", "item id (default: random UUID)")
	cmd.Flags().StringVar(&vectorFile, "vector-file", "", "JSON array holding the vector, or - for stdin")
	cmd.Flags().StringVar(&text, "text", "", "caption text embedded with the local hashing embedder")
	return cmd
}

// captionFromText splits "name | description | keywords" into a caption.
// Missing parts stay empty.
func captionFromText(text string) embed.Caption {
	parts := strings.SplitN(text, "|", 3)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var c embed.Caption
	c.Name = parts[0]
	if len(parts) > 1 {
		c.Description = parts[1]
	}
	if len(parts) > 2 {
		c.Keywords = parts[2]
	}
	return c
}

func newRecomputeCmd(g *globals) *cobra.Command {
	var scope string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Recompute every position of a scope",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withCoordinator(ctx, func(c *vecboard.Coordinator) error {
				prog := newProgress(loggerFromContext(ctx))
				n, err := c.RecomputeAll(ctx, model.Scope(scope))
				if err != nil {
					return err
				}
				prog.done(fmt.Sprintf("Recomputed %d positions", n))
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope (empty for the public board)")
	return cmd
}

func newNearbyCmd(g *globals) *cobra.Command {
	var (
		scope  string
		x, y   float64
		radius float64
	)
	cmd := &cobra.Command{
		Use:   "nearby",
		Short: "List items around a canvas point",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withCoordinator(ctx, func(c *vecboard.Coordinator) error {
				hits, err := c.Nearby(ctx, model.Scope(scope), model.Position{X: x, Y: y}, radius)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), hits)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope (empty for the public board)")
	cmd.Flags().Float64Var(&x, "x", 0, "center x")
	cmd.Flags().Float64Var(&y, "y", 0, "center y")
	cmd.Flags().Float64Var(&radius, "radius", vecboard.DefaultProximityRadius, "search radius in canvas units")
	return cmd
}

type auditOutput struct {
	vecboard.AuditReport
	Pruned int `json:"pruned"`
}

func newAuditCmd(g *globals) *cobra.Command {
	var (
		scope string
		dim   int
		prune bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Report stored vectors that do not fit the expected dimension",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return g.withCoordinator(ctx, func(c *vecboard.Coordinator) error {
				report, err := c.Audit(ctx, model.Scope(scope), dim)
				if err != nil {
					return err
				}
				out := auditOutput{AuditReport: report}
				if prune && !report.Clean() {
					out.Pruned, err = c.Prune(ctx, model.Scope(scope), report)
					if err != nil {
						return err
					}
					loggerFromContext(ctx).Warn("Pruned records", "count", out.Pruned)
				}
				return writeJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "", "scope (empty for the public board)")
	cmd.Flags().IntVar(&dim, "dim", 0, "expected dimension (default: majority dimension)")
	cmd.Flags().BoolVar(&prune, "prune", false, "delete the reported records")
	return cmd
}
