// Package cluster groups chunk embeddings of one ingest batch into a bounded
// set of theme labels.
package cluster

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	seed          = 42
	maxIterations = 100
)

// AssignThemes returns one label per vector. Batches smaller than k get one
// unique label per chunk instead of a degenerate clustering run; otherwise a
// fixed-seed k-means partitions the batch into exactly k labels.
func AssignThemes(vectors [][]float32, k int) []string {
	n := len(vectors)
	if n == 0 {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	labels := make([]string, n)
	if n < k {
		for i := range labels {
			labels[i] = fmt.Sprintf("Theme-%d", i)
		}
		return labels
	}
	assign := kmeans(vectors, k)
	for i, c := range assign {
		labels[i] = fmt.Sprintf("Theme-%d", c)
	}
	return labels
}

func kmeans(points [][]float32, k int) []int {
	n := len(points)
	dim := len(points[0])
	rng := rand.New(rand.NewSource(seed))

	centroids := make([][]float64, k)
	for i, idx := range rng.Perm(n)[:k] {
		centroids[i] = toFloat64(points[idx], dim)
	}

	assign := make([]int, n)
	for i := range assign {
		assign[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best, bestDist := 0, math.Inf(1)
			for c := range centroids {
				d := sqDist(p, centroids[c])
				if d < bestDist {
					best, bestDist = c, d
				}
			}
			if assign[i] != best {
				assign[i] = best
				changed = true
			}
		}
		reseedEmptyClusters(points, centroids, assign, k)
		if !changed {
			break
		}

		counts := make([]int, k)
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		for i, p := range points {
			c := assign[i]
			counts[c]++
			for d := 0; d < dim && d < len(p); d++ {
				sums[c][d] += float64(p[d])
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for d := 0; d < dim; d++ {
				centroids[c][d] = sums[c][d] / float64(counts[c])
			}
		}
	}
	return assign
}

// reseedEmptyClusters moves the point farthest from its centroid into any
// cluster that ended up empty, so the result is always exactly k non-empty
// partitions when n >= k.
func reseedEmptyClusters(points [][]float32, centroids [][]float64, assign []int, k int) {
	counts := make([]int, k)
	for _, c := range assign {
		counts[c]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			continue
		}
		farIdx, farDist := -1, -1.0
		for i, p := range points {
			if counts[assign[i]] <= 1 {
				continue
			}
			d := sqDist(p, centroids[assign[i]])
			if d > farDist {
				farIdx, farDist = i, d
			}
		}
		if farIdx < 0 {
			continue
		}
		counts[assign[farIdx]]--
		assign[farIdx] = c
		counts[c]++
		centroids[c] = toFloat64(points[farIdx], len(centroids[c]))
	}
}

func sqDist(p []float32, c []float64) float64 {
	sum := 0.0
	for d := range c {
		v := 0.0
		if d < len(p) {
			v = float64(p[d])
		}
		diff := v - c[d]
		sum += diff * diff
	}
	return sum
}

func toFloat64(p []float32, dim int) []float64 {
	out := make([]float64, dim)
	for d := 0; d < dim && d < len(p); d++ {
		out[d] = float64(p[d])
	}
	return out
}
