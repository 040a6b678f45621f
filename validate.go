package vecboard

import (
	"math"
	"unicode/utf8"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/vecboard/model"
)

// MaxScopeLength is the maximum length of a scope name in bytes.
const MaxScopeLength = 512

// Reasons reported for records excluded from a projection.
const (
	ReasonEmpty     = "empty"
	ReasonDimension = "dimension_mismatch"
	ReasonNonFinite = "non_finite"
)

// Validate splits a snapshot into the records usable for a projection with
// vectors of expectedDim components and a bitmap of the snapshot indices that
// were excluded. The order of kept records is preserved.
func Validate(snapshot []model.Record, expectedDim int) ([]model.Record, *roaring.Bitmap) {
	kept := make([]model.Record, 0, len(snapshot))
	dropped := roaring.New()
	for i, rec := range snapshot {
		if InvalidReason(rec.Vector, expectedDim) != "" {
			dropped.Add(uint32(i))
			continue
		}
		kept = append(kept, rec)
	}
	return kept, dropped
}

// InvalidReason returns why v cannot take part in a projection of
// expectedDim-dimensional vectors, or "" if it can. expectedDim <= 0 accepts
// any non-empty length.
func InvalidReason(v model.Vector, expectedDim int) string {
	switch {
	case len(v) == 0:
		return ReasonEmpty
	case expectedDim > 0 && len(v) != expectedDim:
		return ReasonDimension
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return ReasonNonFinite
		}
	}
	return ""
}

// MajorityDimension returns the most common length among the usable vectors
// of snapshot. Ties go to the dimension that reached the count first. It
// returns 0 if no vector is usable.
func MajorityDimension(snapshot []model.Record) int {
	counts := make(map[int]int)
	best, bestCount := 0, 0
	for _, rec := range snapshot {
		if InvalidReason(rec.Vector, 0) != "" {
			continue
		}
		d := len(rec.Vector)
		counts[d]++
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}

func validateScope(scope model.Scope) error {
	s := string(scope)
	if len(s) > MaxScopeLength || !utf8.ValidString(s) {
		return ErrInvalidScope
	}
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			return ErrInvalidScope
		}
	}
	return nil
}

func validateItem(id model.ItemID, vector model.Vector) error {
	if id == "" {
		return ErrInvalidItemID
	}
	if reason := InvalidReason(vector, 0); reason != "" {
		return &ErrInvalidVector{ID: id, Reason: reason}
	}
	return nil
}
