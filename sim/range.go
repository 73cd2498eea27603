package sim

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// DiscreteRange is a finite set of parameter values, consumed by sweep drivers
// and parameter-grid initializers.
type DiscreteRange interface {
	// Size returns the number of values (>= 1).
	Size() int
	// Min returns the first value.
	Min() float64
	// Max returns the last value.
	Max() float64
	// Value returns the i-th value. Panics if i is out of range.
	Value(i int) float64
	// Array returns a fresh slice with every value, in order.
	Array() []float64
}

// SingleRange holds exactly one value.
type SingleRange struct {
	value float64
}

// NewSingleRange creates a range containing only value.
func NewSingleRange(value float64) *SingleRange {
	return &SingleRange{value: value}
}

func (r *SingleRange) Size() int        { return 1 }
func (r *SingleRange) Min() float64     { return r.value }
func (r *SingleRange) Max() float64     { return r.value }
func (r *SingleRange) Array() []float64 { return []float64{r.value} }

func (r *SingleRange) Value(i int) float64 {
	if i != 0 {
		panic("SingleRange: index out of range")
	}
	return r.value
}

// spanRange holds pre-computed values for the linear and logarithmic variants.
type spanRange struct {
	values []float64
}

func (r *spanRange) Size() int    { return len(r.values) }
func (r *spanRange) Min() float64 { return r.values[0] }
func (r *spanRange) Max() float64 { return r.values[len(r.values)-1] }

func (r *spanRange) Value(i int) float64 {
	if i < 0 || i >= len(r.values) {
		panic("DiscreteRange: index out of range")
	}
	return r.values[i]
}

func (r *spanRange) Array() []float64 {
	out := make([]float64, len(r.values))
	copy(out, r.values)
	return out
}

// LinearRange is n values spaced evenly over [min, max].
type LinearRange struct {
	spanRange
}

// NewLinearRange creates n evenly spaced values over [min, max].
// n == 1 requires min == max.
func NewLinearRange(n int, min, max float64) (*LinearRange, error) {
	if err := checkSpanBounds("linear", n, min, max); err != nil {
		return nil, err
	}
	values := make([]float64, n)
	if n == 1 {
		values[0] = min
	} else {
		floats.Span(values, min, max)
		values[n-1] = max
	}
	return &LinearRange{spanRange{values: values}}, nil
}

// LogRange is n values spaced evenly in log over [min, max], min > 0.
type LogRange struct {
	spanRange
}

// NewLogRange creates n log-spaced values over [min, max].
func NewLogRange(n int, min, max float64) (*LogRange, error) {
	if err := checkSpanBounds("log", n, min, max); err != nil {
		return nil, err
	}
	if min <= 0 {
		return nil, ConfigErrorf("log range: min must be positive, got %f", min)
	}
	values := make([]float64, n)
	if n == 1 {
		values[0] = min
	} else {
		floats.LogSpan(values, min, max)
		// exp(log(x)) can drift by an ulp; Min and Max report the configured bounds.
		values[0] = min
		values[n-1] = max
	}
	return &LogRange{spanRange{values: values}}, nil
}

func checkSpanBounds(kind string, n int, min, max float64) error {
	if n < 1 {
		return ConfigErrorf("%s range: count must be positive, got %d", kind, n)
	}
	if math.IsNaN(min) || math.IsNaN(max) || math.IsInf(min, 0) || math.IsInf(max, 0) {
		return ConfigErrorf("%s range: bounds must be finite, got [%f, %f]", kind, min, max)
	}
	if min > max {
		return ConfigErrorf("%s range: min (%f) > max (%f)", kind, min, max)
	}
	if n == 1 && min != max {
		return ConfigErrorf("%s range: a single-value range needs min == max, got [%f, %f]", kind, min, max)
	}
	return nil
}
