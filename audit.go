package vecboard

import (
	"context"
	"time"

	"github.com/hupe1980/vecboard/model"
)

// AuditEntry is one stored record that does not fit the expected dimension.
type AuditEntry struct {
	ID        model.ItemID `json:"id"`
	Dimension int          `json:"dimension"`
	Reason    string       `json:"reason"`
}

// AuditReport lists the records of a scope that would be excluded from a
// projection of ExpectedDim-dimensional vectors.
type AuditReport struct {
	Scope       model.Scope  `json:"scope"`
	ExpectedDim int          `json:"expected_dim"`
	Total       int          `json:"total"`
	Mismatched  []AuditEntry `json:"mismatched"`
}

// Clean reports whether no record needs pruning.
func (r AuditReport) Clean() bool {
	return len(r.Mismatched) == 0
}

// Audit inspects the stored vectors of scope without taking the exclusive
// section. An expectedDim <= 0 selects the scope's majority dimension.
func (c *Coordinator) Audit(ctx context.Context, scope model.Scope, expectedDim int) (AuditReport, error) {
	done, err := c.begin(scope)
	if err != nil {
		return AuditReport{}, err
	}
	defer done()
	snapshot, err := c.store.GetVectors(ctx, scope)
	if err != nil {
		return AuditReport{}, newStoreError("get_vectors", scope, err)
	}
	if expectedDim <= 0 {
		expectedDim = MajorityDimension(snapshot)
	}

	report := AuditReport{Scope: scope, ExpectedDim: expectedDim, Total: len(snapshot)}
	for _, rec := range snapshot {
		if reason := InvalidReason(rec.Vector, expectedDim); reason != "" {
			report.Mismatched = append(report.Mismatched, AuditEntry{
				ID:        rec.ID,
				Dimension: len(rec.Vector),
				Reason:    reason,
			})
		}
	}
	return report, nil
}

// Prune deletes the records listed in report under the exclusive section and
// returns how many were deleted. Records that were fixed or removed since the
// audit are left alone.
func (c *Coordinator) Prune(ctx context.Context, scope model.Scope, report AuditReport) (int, error) {
	done, err := c.begin(scope)
	if err != nil {
		return 0, err
	}
	defer done()
	if report.Clean() {
		return 0, nil
	}

	start := time.Now()
	var pruned int
	err = c.withSection(ctx, scope, func(ctx context.Context) error {
		snapshot, err := c.store.GetVectors(ctx, scope)
		if err != nil {
			return newStoreError("get_vectors", scope, err)
		}
		current := make(map[model.ItemID]model.Vector, len(snapshot))
		for _, rec := range snapshot {
			current[rec.ID] = rec.Vector
		}

		for _, entry := range report.Mismatched {
			v, ok := current[entry.ID]
			if !ok || InvalidReason(v, report.ExpectedDim) == "" {
				continue
			}
			if err := c.store.Delete(ctx, scope, entry.ID); err != nil {
				return newStoreError("delete", scope, err)
			}
			pruned++
		}
		return nil
	})
	c.logger.InfoContext(ctx, "prune completed",
		"scope", scope.String(),
		"pruned", pruned,
		"duration", time.Since(start),
		"error", err,
	)
	return pruned, err
}
