package roi

import (
	"image"
	"path/filepath"
	"testing"
)

func TestRasterize_FullExtent(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
	}{
		{"edge vertices", Full(30, 40)},
		{"oversized", Polygon{Vertices: [][2]float64{{-5, -5}, {-5, 100}, {100, 100}, {100, -5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Rasterize(tt.poly, 30, 40)
			if got := m.Count(); got != 30*40 {
				t.Errorf("Count: got %d, want %d", got, 30*40)
			}
		})
	}
}

func TestRasterize_Rectangle(t *testing.T) {
	p := Polygon{Vertices: [][2]float64{{2, 3}, {2, 7}, {5, 7}, {5, 3}}}
	m := Rasterize(p, 10, 10)

	// Rows 2..5 and columns 3..7 inclusive.
	if got := m.Count(); got != 4*5 {
		t.Errorf("Count: got %d, want 20", got)
	}
	if got := m.Bounds(); got != image.Rect(3, 2, 8, 6) {
		t.Errorf("Bounds: got %v, want (3,2)-(8,6)", got)
	}
	if m.Pix[1*10+3] || !m.Pix[2*10+3] {
		t.Error("boundary row membership wrong")
	}
}

func TestRasterize_Triangle(t *testing.T) {
	// Right triangle with legs of 4: the points with r+c <= 4, r,c >= 0.
	p := Polygon{Vertices: [][2]float64{{0, 0}, {0, 4}, {4, 0}}}
	m := Rasterize(p, 10, 10)

	if got := m.Count(); got != 15 {
		t.Errorf("Count: got %d, want 15", got)
	}
	if m.Pix[3*10+3] {
		t.Error("(3,3) lies outside the hypotenuse")
	}
	if !m.Pix[2*10+2] {
		t.Error("(2,2) lies on the hypotenuse and should be inside")
	}
}

func TestRasterize_Degenerate(t *testing.T) {
	tests := []struct {
		name string
		poly Polygon
	}{
		{"empty", Polygon{}},
		{"two vertices", Polygon{Vertices: [][2]float64{{0, 0}, {5, 5}}}},
		{"outside plane", Polygon{Vertices: [][2]float64{{50, 50}, {50, 60}, {60, 60}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Rasterize(tt.poly, 10, 10)
			if m.Count() != 0 {
				t.Errorf("Count: got %d, want 0", m.Count())
			}
			if !m.Bounds().Empty() {
				t.Errorf("Bounds should be empty, got %v", m.Bounds())
			}
		})
	}
}

func TestAssign(t *testing.T) {
	square := Polygon{Vertices: [][2]float64{{0, 0}, {0, 1}, {1, 1}}}
	named := square
	named.Name = "Thalamus"

	tests := []struct {
		name  string
		polys []Polygon
		names []string
		want  []string
	}{
		{"positional", []Polygon{square, square, square}, []string{"CA1", "CA3", "DG"}, []string{"CA1", "CA3", "DG"}},
		{"fewer names", []Polygon{square, square, square}, []string{"CA1"}, []string{"CA1"}},
		{"fewer polygons", []Polygon{square}, []string{"CA1", "CA3", "DG"}, []string{"CA1"}},
		{"explicit name wins", []Polygon{named}, []string{"CA1"}, []string{"Thalamus"}},
		{"explicit beyond names", []Polygon{square, named}, []string{"CA1"}, []string{"CA1", "Thalamus"}},
		{"none", nil, []string{"CA1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Assign(tt.polys, tt.names)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d regions, want %d", len(got), len(tt.want))
			}
			for i, w := range tt.want {
				if got[i].Name != w {
					t.Errorf("region %d: got %s, want %s", i, got[i].Name, w)
				}
			}
		})
	}
}

func TestFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rois.yaml")
	in := &File{Images: map[string][]Polygon{
		"hippocampus": {
			{Name: "CA1", Vertices: [][2]float64{{1, 2}, {3, 4}, {5, 6.5}}},
		},
	}}

	if err := SaveFile(in, path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	out, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	got := out.Images["hippocampus"]
	if len(got) != 1 || got[0].Name != "CA1" {
		t.Fatalf("unexpected polygons: %+v", got)
	}
	if got[0].Vertices[2] != [2]float64{5, 6.5} {
		t.Errorf("vertex: got %v, want [5 6.5]", got[0].Vertices[2])
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveVertices(t *testing.T) {
	dir := t.TempDir()
	p := Polygon{Vertices: [][2]float64{{0, 0}, {0, 10.25}, {8, 10.25}}}

	path, err := SaveVertices(dir, "DG", p)
	if err != nil {
		t.Fatalf("SaveVertices failed: %v", err)
	}
	if filepath.Base(path) != "DG_roi.csv" {
		t.Errorf("file name: got %s", filepath.Base(path))
	}

	back, err := LoadVertices(path)
	if err != nil {
		t.Fatalf("LoadVertices failed: %v", err)
	}
	if len(back.Vertices) != 3 || back.Vertices[1] != [2]float64{0, 10.25} {
		t.Errorf("vertices: got %v", back.Vertices)
	}
}
