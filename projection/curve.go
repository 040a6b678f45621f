package projection

import "math"

// Known curve parameters for MinDist = 0.1, Spread = 1.0, used when the fit
// does not converge.
const (
	fallbackCurveA = 1.576943460405378
	fallbackCurveB = 0.8950608781227859
)

const (
	curveSamples    = 300
	curveIterations = 200
)

// fitCurve finds a, b such that 1 / (1 + a·x^(2b)) approximates the offset
// exponential membership defined by spread and minDist, by Levenberg-Marquardt
// least squares.
func fitCurve(spread, minDist float64) (a, b float64) {
	xs := make([]float64, curveSamples)
	ys := make([]float64, curveSamples)
	step := 3 * spread / float64(curveSamples-1)
	for i := range xs {
		x := float64(i) * step
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	sse := func(a, b float64) float64 {
		var s float64
		for i, x := range xs {
			r := ys[i] - curve(x, a, b)
			s += r * r
		}
		return s
	}

	a, b = 1, 1
	lambda := 1e-3
	cost := sse(a, b)

	for iter := 0; iter < curveIterations; iter++ {
		var jaa, jab, jbb, ra, rb float64
		for i, x := range xs {
			da, db := curveGrad(x, a, b)
			r := ys[i] - curve(x, a, b)
			jaa += da * da
			jab += da * db
			jbb += db * db
			ra += da * r
			rb += db * r
		}

		maa := jaa * (1 + lambda)
		mbb := jbb * (1 + lambda)
		det := maa*mbb - jab*jab
		if det == 0 || math.IsNaN(det) {
			break
		}
		na := a + (mbb*ra-jab*rb)/det
		nb := b + (maa*rb-jab*ra)/det

		if na <= 0 || nb <= 0 || math.IsNaN(na) || math.IsNaN(nb) {
			lambda *= 10
			if lambda > 1e10 {
				break
			}
			continue
		}

		next := sse(na, nb)
		if next < cost {
			a, b, cost = na, nb, next
			lambda = max(lambda/10, 1e-12)
		} else {
			lambda *= 10
			if lambda > 1e10 {
				break
			}
		}
	}

	if !(a > 0) || !(b > 0) || math.IsInf(a, 0) || math.IsInf(b, 0) {
		return fallbackCurveA, fallbackCurveB
	}
	return a, b
}

func curve(x, a, b float64) float64 {
	return 1 / (1 + a*math.Pow(x, 2*b))
}

// curveGrad returns the partial derivatives of curve with respect to a and b.
func curveGrad(x, a, b float64) (da, db float64) {
	if x <= 0 {
		return 0, 0
	}
	u := math.Pow(x, 2*b)
	den := (1 + a*u) * (1 + a*u)
	da = -u / den
	db = -a * u * 2 * math.Log(x) / den
	return da, db
}
