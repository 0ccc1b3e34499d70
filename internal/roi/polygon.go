// Package roi rasterizes hand-drawn regions of interest and pairs them with
// anatomical region names.
//
// Vertices are (row, column) pairs in image pixel coordinates, the same order
// a viewer's shapes layer stores them in. A pixel belongs to a region when its
// integer (row, column) position lies inside the polygon or on its outline.
package roi

import (
	"image"
	"math"
)

// Polygon is a closed ROI outline. The last vertex connects back to the first.
type Polygon struct {
	// Name optionally labels the region explicitly. Unnamed polygons are
	// paired with expected region names by position.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Vertices are (row, column) pairs.
	Vertices [][2]float64 `yaml:"vertices" json:"vertices"`
}

// Region is a polygon bound to the region name it is reported under.
type Region struct {
	Name    string
	Polygon Polygon
}

// Mask is a row-major boolean raster of the pixels inside a polygon.
type Mask struct {
	Rows int
	Cols int
	Pix  []bool
}

// Count returns the number of pixels inside the mask.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Bounds returns the bounding box of the set pixels (X = column, Y = row,
// max exclusive). An empty mask returns the zero rectangle.
func (m *Mask) Bounds() image.Rectangle {
	r0, c0, r1, c1 := m.Rows, m.Cols, -1, -1
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			if !m.Pix[r*m.Cols+c] {
				continue
			}
			r0, r1 = min(r0, r), max(r1, r)
			c0, c1 = min(c0, c), max(c1, c)
		}
	}
	if r1 < 0 {
		return image.Rectangle{}
	}
	return image.Rect(c0, r0, c1+1, r1+1)
}

// Rasterize converts a polygon into a mask of the given plane size.
//
// Pixels are tested at their integer (row, column) position with the even-odd
// rule; points on an edge or vertex count as inside. Vertices outside the
// plane are allowed and the result is clipped. Fewer than three vertices give
// an empty mask.
func Rasterize(p Polygon, rows, cols int) *Mask {
	m := &Mask{Rows: rows, Cols: cols, Pix: make([]bool, rows*cols)}
	v := p.Vertices
	if len(v) < 3 || rows <= 0 || cols <= 0 {
		return m
	}

	minR, minC := math.Inf(1), math.Inf(1)
	maxR, maxC := math.Inf(-1), math.Inf(-1)
	for _, pt := range v {
		minR, maxR = math.Min(minR, pt[0]), math.Max(maxR, pt[0])
		minC, maxC = math.Min(minC, pt[1]), math.Max(maxC, pt[1])
	}

	r0 := max(0, int(math.Ceil(minR)))
	r1 := min(rows-1, int(math.Floor(maxR)))
	c0 := max(0, int(math.Ceil(minC)))
	c1 := min(cols-1, int(math.Floor(maxC)))

	for r := r0; r <= r1; r++ {
		for c := c0; c <= c1; c++ {
			if contains(v, float64(r), float64(c)) {
				m.Pix[r*cols+c] = true
			}
		}
	}
	return m
}

// contains reports whether (r, c) is inside or on the boundary of v.
func contains(v [][2]float64, r, c float64) bool {
	inside := false
	j := len(v) - 1
	for i := range v {
		ri, ci := v[i][0], v[i][1]
		rj, cj := v[j][0], v[j][1]

		if onSegment(ri, ci, rj, cj, r, c) {
			return true
		}
		if (ri > r) != (rj > r) {
			x := ci + (r-ri)*(cj-ci)/(rj-ri)
			if c < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

const segmentEps = 1e-9

func onSegment(r1, c1, r2, c2, r, c float64) bool {
	cross := (r2-r1)*(c-c1) - (c2-c1)*(r-r1)
	if math.Abs(cross) > segmentEps {
		return false
	}
	return r >= math.Min(r1, r2)-segmentEps && r <= math.Max(r1, r2)+segmentEps &&
		c >= math.Min(c1, c2)-segmentEps && c <= math.Max(c1, c2)+segmentEps
}

// Assign pairs polygons with region names.
//
// A polygon with its own Name keeps it. An unnamed polygon takes the expected
// name at the same position. Unnamed polygons beyond the end of names are
// dropped, so with no explicit names the result has min(len(polys),
// len(names)) regions.
func Assign(polys []Polygon, names []string) []Region {
	regions := make([]Region, 0, len(polys))
	for i, p := range polys {
		name := p.Name
		if name == "" {
			if i >= len(names) {
				continue
			}
			name = names[i]
		}
		regions = append(regions, Region{Name: name, Polygon: p})
	}
	return regions
}

// Full returns a rectangle polygon covering a rows x cols plane.
func Full(rows, cols int) Polygon {
	r, c := float64(rows-1), float64(cols-1)
	return Polygon{Vertices: [][2]float64{{0, 0}, {0, c}, {r, c}, {r, 0}}}
}
