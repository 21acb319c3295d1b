package editions

import (
	"errors"
	"math"
)

// errTooFewPoints is returned when K exceeds the number of distinct points,
// making that K unrealizable.
var errTooFewPoints = errors.New("fewer distinct points than clusters")

const kmeansMaxIterations = 100

// kmeansResult is one clustering run's outcome.
type kmeansResult struct {
	labels  []int
	inertia float64
}

// kmeans runs Lloyd's algorithm with deterministic initialization: centroids
// start at the first k distinct points in input order, so identical input
// always yields identical clusters.
func kmeans(points [][]float64, k int) (*kmeansResult, error) {
	if k < 1 {
		return nil, errors.New("k must be at least 1")
	}

	centroids := initialCentroids(points, k)
	if len(centroids) < k {
		return nil, errTooFewPoints
	}

	labels := make([]int, len(points))
	for iter := 0; iter < kmeansMaxIterations; iter++ {
		changed := false
		for i, p := range points {
			nearest := nearestCentroid(p, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}

		if !changed && iter > 0 {
			break
		}

		recomputeCentroids(points, labels, centroids)
	}

	var inertia float64
	for i, p := range points {
		inertia += squaredDistance(p, centroids[labels[i]])
	}

	return &kmeansResult{labels: labels, inertia: inertia}, nil
}

func initialCentroids(points [][]float64, k int) [][]float64 {
	var centroids [][]float64
	for _, p := range points {
		if len(centroids) == k {
			break
		}
		duplicate := false
		for _, c := range centroids {
			if equalPoints(p, c) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			centroids = append(centroids, append([]float64(nil), p...))
		}
	}
	return centroids
}

func nearestCentroid(p []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.MaxFloat64
	for i, c := range centroids {
		if d := squaredDistance(p, c); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

func recomputeCentroids(points [][]float64, labels []int, centroids [][]float64) {
	counts := make([]int, len(centroids))
	sums := make([][]float64, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, len(centroids[i]))
	}

	for i, p := range points {
		counts[labels[i]]++
		for d, v := range p {
			sums[labels[i]][d] += v
		}
	}

	for i := range centroids {
		if counts[i] == 0 {
			// Empty cluster keeps its previous centroid.
			continue
		}
		for d := range centroids[i] {
			centroids[i][d] = sums[i][d] / float64(counts[i])
		}
	}
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

func equalPoints(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// kneeK picks the cluster count at the knee of the (k, inertia) curve: the
// point with the greatest perpendicular distance from the line joining the
// first and last computed points.
func kneeK(ks []int, inertias []float64) int {
	if len(ks) == 0 {
		return 1
	}
	if len(ks) < 3 {
		return ks[0]
	}

	x1, y1 := float64(ks[0]), inertias[0]
	x2, y2 := float64(ks[len(ks)-1]), inertias[len(inertias)-1]
	lineLen := math.Hypot(x2-x1, y2-y1)
	if lineLen == 0 {
		return ks[0]
	}

	best := ks[0]
	bestDist := -1.0
	for i := range ks {
		x0, y0 := float64(ks[i]), inertias[i]
		dist := math.Abs((y2-y1)*x0-(x2-x1)*y0+x2*y1-y2*x1) / lineLen
		if dist > bestDist {
			best = ks[i]
			bestDist = dist
		}
	}
	return best
}
