package detection

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// peakPoint is a peak position indexed into the candidate list.
type peakPoint struct {
	Row, Col float64
	idx      int
}

// Compare implements kdtree.Comparable.
func (p peakPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(peakPoint)
	switch d {
	case 0:
		return p.Row - q.Row
	case 1:
		return p.Col - q.Col
	default:
		panic("illegal dimension")
	}
}

// Dims implements kdtree.Comparable.
func (p peakPoint) Dims() int { return 2 }

// Distance returns the squared Chebyshev distance. The tree prunes by the
// squared per-axis difference, which never exceeds this value.
func (p peakPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(peakPoint)
	d := math.Max(math.Abs(p.Row-q.Row), math.Abs(p.Col-q.Col))
	return d * d
}

type peakPoints []peakPoint

func (p peakPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p peakPoints) Len() int                              { return len(p) }
func (p peakPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p peakPoints) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(peakPlane{peakPoints: p, Dim: d}, kdtree.MedianOfMedians(peakPlane{peakPoints: p, Dim: d}))
}

// peakPlane implements kdtree.SortSlicer for one axis.
type peakPlane struct {
	peakPoints
	kdtree.Dim
}

func (p peakPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.peakPoints[i].Row < p.peakPoints[j].Row
	case 1:
		return p.peakPoints[i].Col < p.peakPoints[j].Col
	default:
		panic("illegal dimension")
	}
}

func (p peakPlane) Slice(start, end int) kdtree.SortSlicer {
	return peakPlane{peakPoints: p.peakPoints[start:end], Dim: p.Dim}
}

func (p peakPlane) Swap(i, j int) {
	p.peakPoints[i], p.peakPoints[j] = p.peakPoints[j], p.peakPoints[i]
}

// ensureSpacing walks peaks in the given order and rejects any later peak
// closer than spacing (Chebyshev, strict) to one already kept.
func ensureSpacing(peaks []Peak, spacing int) []Peak {
	if len(peaks) < 2 {
		return peaks
	}

	pts := make(peakPoints, len(peaks))
	for i, p := range peaks {
		pts[i] = peakPoint{Row: float64(p.Row), Col: float64(p.Col), idx: i}
	}
	// The tree reorders its backing slice, so give it a copy.
	tree := kdtree.New(append(peakPoints(nil), pts...), false)

	limit := float64(spacing)
	rejected := make([]bool, len(peaks))
	kept := make([]Peak, 0, len(peaks))

	for i, p := range peaks {
		if rejected[i] {
			continue
		}
		kept = append(kept, p)

		keeper := kdtree.NewDistKeeper(limit * limit)
		tree.NearestSet(keeper, pts[i])
		for _, item := range keeper.Heap {
			if item.Comparable == nil {
				continue
			}
			q := item.Comparable.(peakPoint)
			if q.idx == i || math.Sqrt(item.Dist) >= limit {
				continue
			}
			rejected[q.idx] = true
		}
	}

	return kept
}
