package projection

import (
	"math"

	"github.com/hupe1980/vecboard/model"
)

// Circle lays n points evenly on a circle of the given radius, starting at
// angle zero and proceeding counter-clockwise.
func Circle(n int, radius float64) []model.Position {
	out := make([]model.Position, n)
	for i := range out {
		angle := 2 * math.Pi * float64(i) / float64(n)
		out[i] = model.Position{
			X: radius * math.Cos(angle),
			Y: radius * math.Sin(angle),
		}
	}
	return out
}
