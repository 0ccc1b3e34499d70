// Package analysis counts fluorescent spots inside regions of interest and
// tabulates per-region statistics.
//
// For each region the polygon is rasterized into a mask, the area is derived
// from the pixel spacing, and every marker channel is searched for peaks
// inside the mask. Rows are produced in region order, then channel order.
// Degenerate inputs never fail: an empty region has zero area, zero density
// and, when no peaks are found, zero mean intensity.
package analysis

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/rnascope-counter/internal/detection"
	"github.com/ironsheep/rnascope-counter/internal/imaging"
	"github.com/ironsheep/rnascope-counter/internal/roi"
)

// markerColors are assigned to marker channels in index order.
var markerColors = []string{imaging.ColorCyan, imaging.ColorMagenta, imaging.ColorYellow}

// MarkerColor returns the overlay colour for the i-th marker channel.
func MarkerColor(i int) string {
	return markerColors[i%len(markerColors)]
}

// PointsLayer is a set of detected peaks ready to overlay on an image.
type PointsLayer struct {
	Name    string           `json:"name"`
	Image   string           `json:"image"`
	Region  string           `json:"region"`
	Channel string           `json:"channel"`
	Color   string           `json:"color"`
	Size    int              `json:"size"`
	Peaks   []detection.Peak `json:"peaks"`
}

// LayerSink receives peak overlays as they are produced.
type LayerSink interface {
	AddPoints(layer PointsLayer)
}

// Input is one anatomical image with the regions drawn on it.
type Input struct {
	Image   string
	Stack   *imaging.Stack
	Regions []roi.Region
}

// Options controls side outputs of a run.
type Options struct {
	// ResultsPath is where results.csv is written.
	ResultsPath string

	// OutputDir receives params.json, cutouts and vertex arrays.
	OutputDir string

	SaveParams  bool
	SaveCutouts bool
	SaveROIs    bool

	// CutoutScale enlarges cutouts by an integer factor.
	CutoutScale int

	// Sink, when set, receives a points layer per region and channel that
	// has at least one peak.
	Sink LayerSink

	Logger *slog.Logger
}

// Counter runs the spot-counting routine with fixed parameters.
type Counter struct {
	params Params
	opts   Options
	log    *slog.Logger

	// stems records side-output file stems handed out in this run.
	stems map[string]bool
}

// NewCounter creates a counter. A nil Options.Logger uses slog.Default().
func NewCounter(params Params, opts Options) *Counter {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.CutoutScale < 1 {
		opts.CutoutScale = 1
	}
	return &Counter{params: params, opts: opts, log: log}
}

// Run counts every input, writes results.csv and any enabled side outputs,
// and returns the rows written.
func (c *Counter) Run(ctx context.Context, inputs []Input) ([]Row, error) {
	c.stems = nil
	var rows []Row
	for _, in := range inputs {
		r, err := c.CountImage(ctx, in.Image, in.Stack, in.Regions)
		if err != nil {
			return nil, err
		}
		rows = append(rows, r...)
	}

	path := c.opts.ResultsPath
	if path == "" {
		path = "results.csv"
	}
	if err := WriteCSV(rows, path); err != nil {
		return nil, err
	}
	c.log.Info("results written", "path", path, "rows", len(rows))

	if c.opts.SaveParams {
		p := filepath.Join(c.outputDir(path), "params.json")
		if err := WriteParams(c.params, p); err != nil {
			return nil, err
		}
		c.log.Debug("params written", "path", p)
	}

	return rows, nil
}

func (c *Counter) outputDir(resultsPath string) string {
	if c.opts.OutputDir != "" {
		return c.opts.OutputDir
	}
	return filepath.Dir(resultsPath)
}

// CountImage measures every region of one image. It returns one row per
// (region, marker channel) pair.
func (c *Counter) CountImage(ctx context.Context, name string, s *imaging.Stack, regions []roi.Region) ([]Row, error) {
	markers := c.params.MarkerChannels()
	for _, ch := range markers {
		if err := s.CheckChannel(ch.Index); err != nil {
			return nil, fmt.Errorf("%s: channel %s: %w", name, ch.Name, err)
		}
	}

	rows := make([]Row, 0, len(regions)*len(markers))
	for _, region := range regions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mask := roi.Rasterize(region.Polygon, s.Rows, s.Cols)
		pixels := mask.Count()
		area := float64(pixels) * c.params.PixelSpacing * c.params.PixelSpacing
		c.log.Debug("region rasterized", "image", name, "region", region.Name, "pixels", pixels, "area_um2", area)

		var stem string
		if c.opts.SaveROIs || c.opts.SaveCutouts {
			stem = c.fileStem(region.Name)
		}
		if c.opts.SaveROIs {
			if _, err := roi.SaveVertices(c.sideDir(), stem, region.Polygon); err != nil {
				return nil, err
			}
		}

		for i, ch := range markers {
			peaks, err := detection.PeakLocalMax(s.Plane(ch.Index), s.Rows, s.Cols, mask.Pix, c.params.PeakOptions())
			if err != nil {
				return nil, fmt.Errorf("%s/%s/%s: %w", name, region.Name, ch.Name, err)
			}

			row := summarize(region.Name, ch.Name, peaks, area)
			rows = append(rows, row)
			c.log.Debug("channel counted", "region", region.Name, "channel", ch.Name, "count", row.Count)

			if c.opts.Sink != nil && len(peaks) > 0 {
				c.opts.Sink.AddPoints(PointsLayer{
					Name:    region.Name + "_" + ch.Name,
					Image:   name,
					Region:  region.Name,
					Channel: ch.Name,
					Color:   MarkerColor(i),
					Size:    4,
					Peaks:   peaks,
				})
			}

			if c.opts.SaveCutouts {
				if err := c.writeCutouts(s, ch, i, region.Name, stem, mask, peaks); err != nil {
					return nil, err
				}
			}
		}
	}
	return rows, nil
}

func (c *Counter) sideDir() string {
	return c.outputDir(c.opts.ResultsPath)
}

// fileStem turns a region name into a file name stem that is unique within
// the run, so regions sharing a name do not overwrite each other's files. A
// repeated stem gets a "_2", "_3", ... suffix.
func (c *Counter) fileStem(region string) string {
	base := safeName(region)
	if c.stems == nil {
		c.stems = make(map[string]bool)
	}
	stem := base
	for n := 2; c.stems[stem]; n++ {
		stem = fmt.Sprintf("%s_%d", base, n)
	}
	c.stems[stem] = true
	return stem
}

// safeName maps characters outside [A-Za-z0-9._-] to '_'.
func safeName(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if strings.Trim(out, ".") == "" {
		out = "region" + out
	}
	return out
}

// writeCutouts saves "<stem>_<channel>.png" and "<stem>_<channel>_peaks.png".
func (c *Counter) writeCutouts(s *imaging.Stack, ch Channel, marker int, region, stem string, mask *roi.Mask, peaks []detection.Peak) error {
	box := mask.Bounds()
	if box.Empty() {
		c.log.Warn("skipping cutout for empty region", "region", region, "channel", ch.Name)
		return nil
	}

	cut, err := imaging.Cutout(s, ch.Index, mask.Pix, box)
	if err != nil {
		return fmt.Errorf("cutout %s/%s: %w", region, ch.Name, err)
	}

	scale := c.opts.CutoutScale
	plain := imaging.Enlarge(cut, scale)

	pts := make([]image.Point, len(peaks))
	for i, p := range peaks {
		pts[i] = image.Point{
			X: (p.Col-box.Min.X)*scale + scale/2,
			Y: (p.Row-box.Min.Y)*scale + scale/2,
		}
	}
	annotated, err := imaging.Annotate(plain, pts, imaging.AnnotateOptions{
		Color:   MarkerColor(marker),
		Radius:  3 * scale,
		Caption: fmt.Sprintf("%s %s n=%d", region, ch.Name, len(peaks)),
	})
	if err != nil {
		return err
	}

	dir := c.sideDir()
	base := filepath.Join(dir, stem+"_"+safeName(ch.Name))
	if err := imaging.SavePNG(plain, base+".png"); err != nil {
		return err
	}
	if err := imaging.SavePNG(annotated, base+"_peaks.png"); err != nil {
		return err
	}
	c.log.Debug("cutouts written", "region", region, "channel", ch.Name, "dir", dir)
	return nil
}
