package checks

import (
	"math"
	"slices"
)

// KolmogorovSmirnov returns the two-sample KS statistic D and its asymptotic
// p-value. Empty inputs yield D=0, p=1.
func KolmogorovSmirnov(a, b []float64) (float64, float64) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 1
	}

	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)

	n, m := float64(len(x)), float64(len(y))
	var d float64
	i, j := 0, 0
	for i < len(x) && j < len(y) {
		v := min(x[i], y[j])
		for i < len(x) && x[i] <= v {
			i++
		}
		for j < len(y) && y[j] <= v {
			j++
		}
		d = max(d, math.Abs(float64(i)/n-float64(j)/m))
	}

	ne := n * m / (n + m)
	sqrtNe := math.Sqrt(ne)
	return d, kolmogorovQ((sqrtNe + 0.12 + 0.11/sqrtNe) * d)
}

// kolmogorovQ is the complementary Kolmogorov distribution function.
func kolmogorovQ(lambda float64) float64 {
	if lambda < 1e-3 {
		return 1
	}
	var sum float64
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * 2 * math.Exp(-2*float64(k*k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	return min(max(sum, 0), 1)
}

func meanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))

	var sq float64
	for _, x := range v {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}
