package slm21

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Pooling reduces a frames×dimensions feature matrix to one vector.
type Pooling string

// Supported pooling modes.
const (
	PoolingMin      Pooling = "min"
	PoolingMax      Pooling = "max"
	PoolingMean     Pooling = "mean"
	PoolingSum      Pooling = "sum"
	PoolingLast     Pooling = "last"
	PoolingLastLast Pooling = "lastlast"
	PoolingOff      Pooling = "off"
)

var poolingFuncs = map[Pooling]func(*mat.Dense) ([]float64, error){
	PoolingMin:      poolMin,
	PoolingMax:      poolMax,
	PoolingMean:     poolMean,
	PoolingSum:      poolSum,
	PoolingLast:     poolLast,
	PoolingLastLast: poolLastLast,
	PoolingOff:      poolOff,
}

// ParsePooling validates a pooling mode name.
func ParsePooling(s string) (Pooling, error) {
	p := Pooling(s)
	if _, ok := poolingFuncs[p]; !ok {
		return "", fmt.Errorf("unknown pooling mode: %q", s)
	}
	return p, nil
}

// Pool applies the pooling mode to a feature matrix.
func (p Pooling) Pool(m *mat.Dense) ([]float64, error) {
	fn, ok := poolingFuncs[p]
	if !ok {
		return nil, fmt.Errorf("unknown pooling mode: %q", p)
	}
	return fn(m)
}

func poolColumns(m *mat.Dense, agg func([]float64) float64) []float64 {
	_, cols := m.Dims()
	out := make([]float64, cols)
	for j := 0; j < cols; j++ {
		out[j] = agg(mat.Col(nil, j, m))
	}
	return out
}

func poolMin(m *mat.Dense) ([]float64, error) { return poolColumns(m, floats.Min), nil }

func poolMax(m *mat.Dense) ([]float64, error) { return poolColumns(m, floats.Max), nil }

func poolSum(m *mat.Dense) ([]float64, error) { return poolColumns(m, floats.Sum), nil }

func poolMean(m *mat.Dense) ([]float64, error) {
	rows, _ := m.Dims()
	out := poolColumns(m, floats.Sum)
	floats.Scale(1/float64(rows), out)
	return out, nil
}

func poolLast(m *mat.Dense) ([]float64, error) {
	rows, _ := m.Dims()
	return mat.Row(nil, rows-1, m), nil
}

func poolLastLast(m *mat.Dense) ([]float64, error) {
	rows, _ := m.Dims()
	if rows < 2 {
		return nil, fmt.Errorf("lastlast pooling needs at least 2 frames, got %d", rows)
	}
	return mat.Row(nil, rows-2, m), nil
}

func poolOff(m *mat.Dense) ([]float64, error) {
	rows, _ := m.Dims()
	if rows != 1 {
		return nil, fmt.Errorf("pooling off needs single-frame features, got %d frames", rows)
	}
	return mat.Row(nil, 0, m), nil
}

// Metric is a pairwise distance between pooled feature vectors.
type Metric string

// Supported distance metrics.
const (
	MetricEuclidean   Metric = "euclidean"
	MetricSqEuclidean Metric = "sqeuclidean"
	MetricCosine      Metric = "cosine"
	MetricCityblock   Metric = "cityblock"
	MetricChebyshev   Metric = "chebyshev"
	MetricCorrelation Metric = "correlation"
)

var metricFuncs = map[Metric]func(x, y []float64) float64{
	MetricEuclidean:   distEuclidean,
	MetricSqEuclidean: distSqEuclidean,
	MetricCosine:      distCosine,
	MetricCityblock:   distCityblock,
	MetricChebyshev:   distChebyshev,
	MetricCorrelation: distCorrelation,
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if _, ok := metricFuncs[m]; !ok {
		return "", fmt.Errorf("unknown distance metric: %q", s)
	}
	return m, nil
}

// Distance computes the metric between two vectors of equal dimension.
func (m Metric) Distance(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("feature dimensions differ: %d vs %d", len(x), len(y))
	}
	fn, ok := metricFuncs[m]
	if !ok {
		return 0, fmt.Errorf("unknown distance metric: %q", m)
	}
	return fn(x, y), nil
}

func distEuclidean(x, y []float64) float64 { return floats.Distance(x, y, 2) }

func distSqEuclidean(x, y []float64) float64 {
	d := floats.Distance(x, y, 2)
	return d * d
}

func distCityblock(x, y []float64) float64 { return floats.Distance(x, y, 1) }

func distChebyshev(x, y []float64) float64 { return floats.Distance(x, y, math.Inf(1)) }

func distCosine(x, y []float64) float64 {
	return 1 - floats.Dot(x, y)/(floats.Norm(x, 2)*floats.Norm(y, 2))
}

func distCorrelation(x, y []float64) float64 {
	return 1 - stat.Correlation(x, y, nil)
}

// ReadFeatures loads a .npy array as a row-major frames×dimensions
// matrix. One-dimensional arrays are a single frame.
func ReadFeatures(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading features: %w", err)
	}
	defer file.Close()

	r, err := npyio.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("reading features %s: %w", path, err)
	}

	var rows, cols int
	shape := r.Header.Descr.Shape
	switch len(shape) {
	case 1:
		rows, cols = 1, shape[0]
	case 2:
		rows, cols = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("reading features %s: want a 1- or 2-dimensional array, got shape %v", path, shape)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("reading features %s: empty array", path)
	}

	var data []float64
	switch dtype := r.Header.Descr.Type; {
	case strings.HasSuffix(dtype, "f8"):
		if err := r.Read(&data); err != nil {
			return nil, fmt.Errorf("reading features %s: %w", path, err)
		}
	case strings.HasSuffix(dtype, "f4"):
		var single []float32
		if err := r.Read(&single); err != nil {
			return nil, fmt.Errorf("reading features %s: %w", path, err)
		}
		data = make([]float64, len(single))
		for i, v := range single {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("reading features %s: unsupported dtype %s", path, dtype)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("reading features %s: %d values for shape %v", path, len(data), shape)
	}

	if r.Header.Descr.Fortran && rows > 1 && cols > 1 {
		data = fortranToRowMajor(data, rows, cols)
	}
	return mat.NewDense(rows, cols, data), nil
}

// fortranToRowMajor reorders column-major array data.
func fortranToRowMajor(data []float64, rows, cols int) []float64 {
	out := make([]float64, len(data))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out[i*cols+j] = data[j*rows+i]
		}
	}
	return out
}

// spearman returns the Spearman rank correlation of x and y, NaN when
// either input carries a NaN.
func spearman(x, y []float64) float64 {
	if hasNaN(x) || hasNaN(y) {
		return math.NaN()
	}
	return stat.Correlation(rankAverage(x), rankAverage(y), nil)
}

// rankAverage assigns 1-based ranks, averaging over ties.
func rankAverage(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return v[idx[a]] < v[idx[b]] })

	ranks := make([]float64, len(v))
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && v[idx[j]] == v[idx[i]] {
			j++
		}
		// mean of the 1-based ranks i+1 .. j
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[idx[k]] = avg
		}
		i = j
	}
	return ranks
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}
