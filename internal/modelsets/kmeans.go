package modelsets

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// KMeans partitions points into at most k clusters with Lloyd's algorithm and
// returns one label per point. Seeding is deterministic: the first point,
// then repeatedly the point farthest from every chosen centroid, lowest index
// on ties. Labels are renumbered so centroids ascend by their first
// coordinate, then the following ones.
func KMeans(points [][]float64, k, maxIter int) []int {
	labels := make([]int, len(points))
	if len(points) == 0 || k <= 0 {
		return labels
	}
	centers := seed(points, k)
	for i := range labels {
		labels[i] = -1
	}
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			if c := nearest(centers, p); c != labels[i] {
				labels[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		update(centers, points, labels)
	}
	return relabel(centers, labels)
}

func seed(points [][]float64, k int) [][]float64 {
	centers := [][]float64{clone(points[0])}
	dist := make([]float64, len(points))
	for i, p := range points {
		dist[i] = floats.Distance(p, centers[0], 2)
	}
	for len(centers) < k {
		far := floats.MaxIdx(dist)
		if dist[far] == 0 {
			break
		}
		c := clone(points[far])
		centers = append(centers, c)
		for i, p := range points {
			dist[i] = min(dist[i], floats.Distance(p, c, 2))
		}
	}
	return centers
}

func nearest(centers [][]float64, p []float64) int {
	best, bestD := 0, floats.Distance(p, centers[0], 2)
	for j := 1; j < len(centers); j++ {
		if d := floats.Distance(p, centers[j], 2); d < bestD {
			best, bestD = j, d
		}
	}
	return best
}

// update moves each centroid to the mean of its points. A centroid that
// lost every point stays where it is.
func update(centers, points [][]float64, labels []int) {
	sums := make([][]float64, len(centers))
	counts := make([]float64, len(centers))
	for j := range sums {
		sums[j] = make([]float64, len(centers[j]))
	}
	for i, p := range points {
		floats.Add(sums[labels[i]], p)
		counts[labels[i]]++
	}
	for j := range centers {
		if counts[j] == 0 {
			continue
		}
		floats.Scale(1/counts[j], sums[j])
		centers[j] = sums[j]
	}
}

func relabel(centers [][]float64, labels []int) []int {
	order := make([]int, len(centers))
	for j := range order {
		order[j] = j
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := centers[order[a]], centers[order[b]]
		for d := range ca {
			if ca[d] != cb[d] {
				return ca[d] < cb[d]
			}
		}
		return false
	})
	rank := make([]int, len(centers))
	for r, j := range order {
		rank[j] = r
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		out[i] = rank[l]
	}
	return out
}

func clone(p []float64) []float64 {
	return append([]float64(nil), p...)
}
