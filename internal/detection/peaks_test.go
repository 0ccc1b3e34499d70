package detection

import (
	"testing"
)

// newPlane returns a flat plane filled with background.
func newPlane(rows, cols int, background float64) []float64 {
	p := make([]float64, rows*cols)
	for i := range p {
		p[i] = background
	}
	return p
}

// setSpot writes a single bright pixel.
func setSpot(p []float64, cols, r, c int, v float64) {
	p[r*cols+c] = v
}

func TestPeakLocalMax_SingleSpot(t *testing.T) {
	p := newPlane(40, 40, 10)
	setSpot(p, 40, 20, 15, 500)

	peaks, err := PeakLocalMax(p, 40, 40, nil, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 1 {
		t.Fatalf("got %d peaks, want 1", len(peaks))
	}
	if peaks[0].Row != 20 || peaks[0].Col != 15 {
		t.Errorf("peak at (%d,%d), want (20,15)", peaks[0].Row, peaks[0].Col)
	}
	if peaks[0].Intensity != 500 {
		t.Errorf("intensity: got %v, want 500", peaks[0].Intensity)
	}
}

func TestPeakLocalMax_Threshold(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		threshold float64
		want      int
	}{
		{"above", 150, 100, 1},
		{"equal is rejected", 100, 100, 0},
		{"below", 50, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlane(30, 30, 0)
			setSpot(p, 30, 15, 15, tt.value)

			opts := DefaultPeakOptions()
			opts.Threshold = tt.threshold
			peaks, err := PeakLocalMax(p, 30, 30, nil, opts)
			if err != nil {
				t.Fatalf("PeakLocalMax failed: %v", err)
			}
			if len(peaks) != tt.want {
				t.Errorf("got %d peaks, want %d", len(peaks), tt.want)
			}
		})
	}
}

func TestPeakLocalMax_MinDistance(t *testing.T) {
	p := newPlane(50, 50, 0)
	setSpot(p, 50, 20, 20, 900)
	setSpot(p, 50, 20, 23, 800) // 3 px away: suppressed by the brighter spot
	setSpot(p, 50, 30, 30, 700) // 10 px away: kept

	peaks, err := PeakLocalMax(p, 50, 50, nil, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2: %+v", len(peaks), peaks)
	}
	if peaks[0].Intensity != 900 || peaks[1].Intensity != 700 {
		t.Errorf("unexpected peaks %+v", peaks)
	}
}

func TestPeakLocalMax_SpacingOutsideWindow(t *testing.T) {
	// Two equal spots 6 px apart are each outside the other's window and
	// both survive thinning.
	p := newPlane(40, 40, 0)
	setSpot(p, 40, 20, 10, 300)
	setSpot(p, 40, 20, 16, 300)

	opts := DefaultPeakOptions()
	opts.MinDistance = 5
	peaks, err := PeakLocalMax(p, 40, 40, nil, opts)
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 2 {
		t.Fatalf("got %d peaks, want 2: %+v", len(peaks), peaks)
	}
	// Equal intensities keep row-major order.
	if peaks[0].Col != 10 || peaks[1].Col != 16 {
		t.Errorf("tie order: got %+v", peaks)
	}
}

func TestPeakLocalMax_Mask(t *testing.T) {
	rows, cols := 40, 40
	p := newPlane(rows, cols, 0)
	setSpot(p, cols, 10, 10, 400)
	setSpot(p, cols, 30, 30, 400)

	// Mask the top-left quadrant only.
	mask := make([]bool, rows*cols)
	for r := 0; r < 20; r++ {
		for c := 0; c < 20; c++ {
			mask[r*cols+c] = true
		}
	}

	peaks, err := PeakLocalMax(p, rows, cols, mask, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 1 || peaks[0].Row != 10 || peaks[0].Col != 10 {
		t.Errorf("got %+v, want single peak at (10,10)", peaks)
	}
}

func TestPeakLocalMax_BrightPixelOutsideMask(t *testing.T) {
	// A brighter pixel just outside the mask must not suppress a spot inside.
	rows, cols := 40, 40
	p := newPlane(rows, cols, 0)
	setSpot(p, cols, 20, 18, 300)
	setSpot(p, cols, 20, 21, 1000)

	mask := make([]bool, rows*cols)
	for r := 10; r < 30; r++ {
		for c := 10; c < 20; c++ {
			mask[r*cols+c] = true
		}
	}

	peaks, err := PeakLocalMax(p, rows, cols, mask, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 1 || peaks[0].Col != 18 {
		t.Errorf("got %+v, want single peak at column 18", peaks)
	}
}

func TestPeakLocalMax_ExcludeBorder(t *testing.T) {
	p := newPlane(30, 30, 0)
	setSpot(p, 30, 2, 15, 500)

	opts := DefaultPeakOptions()
	peaks, err := PeakLocalMax(p, 30, 30, nil, opts)
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 0 {
		t.Errorf("border spot should be excluded, got %+v", peaks)
	}

	opts.ExcludeBorder = false
	peaks, err = PeakLocalMax(p, 30, 30, nil, opts)
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 1 {
		t.Errorf("got %d peaks with border kept, want 1", len(peaks))
	}
}

func TestPeakLocalMax_FlatImage(t *testing.T) {
	p := newPlane(20, 20, 250)

	peaks, err := PeakLocalMax(p, 20, 20, nil, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 0 {
		t.Errorf("flat image should have no peaks, got %d", len(peaks))
	}
}

func TestPeakLocalMax_SinglePixelMask(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{"above threshold", 500, 1},
		{"below threshold", 50, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlane(30, 30, 10)
			setSpot(p, 30, 15, 15, tt.value)
			mask := make([]bool, 30*30)
			mask[15*30+15] = true

			peaks, err := PeakLocalMax(p, 30, 30, mask, DefaultPeakOptions())
			if err != nil {
				t.Fatalf("PeakLocalMax failed: %v", err)
			}
			if len(peaks) != tt.want {
				t.Fatalf("got %d peaks, want %d", len(peaks), tt.want)
			}
			if tt.want == 1 && (peaks[0].Row != 15 || peaks[0].Col != 15) {
				t.Errorf("peak at (%d,%d), want (15,15)", peaks[0].Row, peaks[0].Col)
			}
		})
	}
}

func TestPeakLocalMax_FlatMaskedRegion(t *testing.T) {
	line := func() []bool {
		m := make([]bool, 30*30)
		for c := 8; c < 22; c++ {
			m[15*30+c] = true
		}
		return m
	}
	square := func() []bool {
		m := make([]bool, 30*30)
		for r := 10; r < 20; r++ {
			for c := 10; c < 20; c++ {
				m[r*30+c] = true
			}
		}
		return m
	}

	tests := []struct {
		name       string
		background float64
		mask       []bool
		wantCols   []int
	}{
		// Every pixel of a one-pixel-wide line survives as a candidate, then
		// spacing keeps columns 8, 13 and 18.
		{"thin line", 200, line(), []int{8, 13, 18}},
		{"thin line below threshold", 50, line(), nil},
		// Only the corners of a solid square are removed by the opening.
		{"solid square", 200, square(), []int{10, 19, 10, 19}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPlane(30, 30, tt.background)
			peaks, err := PeakLocalMax(p, 30, 30, tt.mask, DefaultPeakOptions())
			if err != nil {
				t.Fatalf("PeakLocalMax failed: %v", err)
			}
			if len(peaks) != len(tt.wantCols) {
				t.Fatalf("got %d peaks, want %d: %+v", len(peaks), len(tt.wantCols), peaks)
			}
			for i, c := range tt.wantCols {
				if peaks[i].Col != c {
					t.Errorf("peak %d at column %d, want %d", i, peaks[i].Col, c)
				}
			}
		})
	}
}

func TestPeakLocalMax_BorderPixelSuppressesUnmasked(t *testing.T) {
	// Without a mask the filter sees the border strip, so a brighter pixel
	// there still hides a spot just inside it.
	p := newPlane(30, 30, 0)
	setSpot(p, 30, 2, 15, 900)
	setSpot(p, 30, 6, 15, 500)

	peaks, err := PeakLocalMax(p, 30, 30, nil, DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if len(peaks) != 0 {
		t.Errorf("got %+v, want no peaks", peaks)
	}
}

func TestBinaryOpening(t *testing.T) {
	// 3x4 solid block: only the corners are lost.
	m := make([]bool, 12)
	for i := range m {
		m[i] = true
	}
	got := binaryOpening(m, 3, 4)
	for i, v := range got {
		corner := i == 0 || i == 3 || i == 8 || i == 11
		if v == corner {
			t.Errorf("index %d: got %v", i, v)
		}
	}
}

func TestPeakLocalMax_EmptyMask(t *testing.T) {
	p := newPlane(20, 20, 0)
	setSpot(p, 20, 10, 10, 500)

	peaks, err := PeakLocalMax(p, 20, 20, make([]bool, 400), DefaultPeakOptions())
	if err != nil {
		t.Fatalf("PeakLocalMax failed: %v", err)
	}
	if peaks != nil {
		t.Errorf("empty mask should yield nil, got %+v", peaks)
	}
}

func TestPeakLocalMax_InvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		plane []float64
		rows  int
		cols  int
		mask  []bool
		opts  PeakOptions
	}{
		{"zero size", nil, 0, 0, nil, DefaultPeakOptions()},
		{"plane length", make([]float64, 10), 4, 4, nil, DefaultPeakOptions()},
		{"mask length", make([]float64, 16), 4, 4, make([]bool, 3), DefaultPeakOptions()},
		{"min distance", make([]float64, 16), 4, 4, nil, PeakOptions{Threshold: 1, MinDistance: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := PeakLocalMax(tt.plane, tt.rows, tt.cols, tt.mask, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestMaximumFilter(t *testing.T) {
	src := []float64{
		1, 2, 3,
		4, 9, 5,
		0, 0, 0,
	}
	got := maximumFilter(src, 3, 3, 1)
	for i, v := range got {
		if v != 9 {
			t.Errorf("index %d: got %v, want 9", i, v)
		}
	}

	got = maximumFilter([]float64{5, 1, 1, 1, 7}, 1, 5, 1)
	want := []float64{5, 5, 1, 7, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("1-D index %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEnsureSpacing(t *testing.T) {
	peaks := []Peak{
		{Row: 10, Col: 10, Intensity: 9},
		{Row: 12, Col: 14, Intensity: 8}, // Chebyshev 4 < 5: rejected
		{Row: 10, Col: 15, Intensity: 7}, // Chebyshev 5: kept
		{Row: 11, Col: 18, Intensity: 6}, // 3 from the kept (10,15): rejected
		{Row: 40, Col: 40, Intensity: 5},
	}

	got := ensureSpacing(peaks, 5)
	if len(got) != 3 {
		t.Fatalf("got %d peaks, want 3: %+v", len(got), got)
	}
	wantIntensities := []float64{9, 7, 5}
	for i, w := range wantIntensities {
		if got[i].Intensity != w {
			t.Errorf("peak %d: got intensity %v, want %v", i, got[i].Intensity, w)
		}
	}
}
