// Package testutil provides testing utilities for vecboard.
//
// This package is intended for use in tests only. It provides seeded vector
// generators and layout statistics.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UnitVectors(32, 384)
//	clustered := rng.ClusteredVectors(100, 64, 4, 0.05)
//
// # Layout Statistics
//
//	std := testutil.AxisStd(positions)
package testutil
