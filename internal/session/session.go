// Package session holds the state of one interactive counting session: image
// layers, ROI (shapes) layers, peak (points) layers, and the prompt sequence
// that guides the user through drawing the expected regions.
//
// A front-end drives the session by loading images, adding polygons as the
// user completes them, and triggering analysis. The session is the only owner
// of layer state; analysis reads stacks and polygons from it and writes peak
// overlays back through the analysis.LayerSink interface.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/ironsheep/rnascope-counter/internal/analysis"
	"github.com/ironsheep/rnascope-counter/internal/config"
	"github.com/ironsheep/rnascope-counter/internal/imaging"
	"github.com/ironsheep/rnascope-counter/internal/roi"
)

// ImageLayer is a loaded anatomical image.
type ImageLayer struct {
	Name    string         `json:"name"`
	Paths   []string       `json:"paths"`
	Shape   [3]int         `json:"shape"`
	Visible bool           `json:"visible"`
	Stack   *imaging.Stack `json:"-"`
}

// ShapesLayer holds the ROI polygons drawn on one image.
type ShapesLayer struct {
	Name     string        `json:"name"`
	Image    string        `json:"image"`
	Polygons []roi.Polygon `json:"polygons"`
	Visible  bool          `json:"visible"`
}

// State is a snapshot of the session for display.
type State struct {
	Images []ImageLayer           `json:"images"`
	Shapes []ShapesLayer          `json:"shapes"`
	Points []analysis.PointsLayer `json:"points"`
	Prompt Prompt                 `json:"prompt"`
}

// Session is safe for concurrent use.
type Session struct {
	mu     sync.RWMutex
	cfg    *config.Config
	cache  *imaging.Cache
	log    *slog.Logger
	images []*ImageLayer
	shapes []*ShapesLayer
	points []analysis.PointsLayer
	seq    *Sequencer
}

// New creates a session with one empty ROI layer per configured image group.
func New(cfg *config.Config, cache *imaging.Cache, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if cache == nil {
		cache = imaging.NewCache()
	}
	s := &Session{cfg: cfg, cache: cache, log: logger}
	s.resetLocked()
	return s
}

// ShapesLayerName is the ROI layer name for an image.
func ShapesLayerName(image string) string {
	return image + " ROIs"
}

func (s *Session) resetLocked() {
	for _, g := range s.cfg.Groups {
		if s.shapesLocked(g.Image) == nil {
			s.shapes = append(s.shapes, &ShapesLayer{Name: ShapesLayerName(g.Image), Image: g.Image})
		}
	}
	for _, l := range s.shapes {
		l.Polygons = nil
	}
	s.points = nil
	s.seq = NewSequencer(s.cfg.Groups)
	s.applyFocusLocked()
}

// Reset clears all polygons and peaks and restarts the prompt sequence.
// Loaded images are kept.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

// LoadImage loads files as a named image layer, replacing a layer of the same
// name. The stack must be 3-dimensional. Files of a replaced layer that no
// other layer uses are dropped from the cache.
func (s *Session) LoadImage(name string, paths []string, maxProjected bool) (*ImageLayer, error) {
	stack, err := s.cache.LoadStack(paths, maxProjected)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	var stale []string
	s.mu.RLock()
	if old := s.imageLocked(name); old != nil {
		stale = old.Paths
	}
	s.mu.RUnlock()

	layer := s.AddImage(name, paths, stack)

	s.mu.RLock()
	inUse := make(map[string]bool)
	for _, l := range s.images {
		for _, p := range l.Paths {
			inUse[p] = true
		}
	}
	s.mu.RUnlock()
	for _, p := range stale {
		if !inUse[p] {
			s.cache.Evict(p)
		}
	}
	return layer, nil
}

// AddImage registers an already loaded stack as an image layer.
func (s *Session) AddImage(name string, paths []string, stack *imaging.Stack) *ImageLayer {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer := &ImageLayer{Name: name, Paths: paths, Shape: stack.Shape(), Stack: stack}
	replaced := false
	for i, l := range s.images {
		if l.Name == name {
			s.images[i] = layer
			replaced = true
		}
	}
	if !replaced {
		s.images = append(s.images, layer)
	}
	if s.shapesLocked(name) == nil {
		s.shapes = append(s.shapes, &ShapesLayer{Name: ShapesLayerName(name), Image: name})
	}
	s.applyFocusLocked()

	s.log.Info("image layer added", "name", name, "shape", layer.Shape)
	out := *layer
	return &out
}

// AddPolygon appends a completed polygon to an image's ROI layer.
//
// When the polygon lands on the image the sequencer is waiting for, it is
// counted: an unnamed polygon is labelled with the prompted region and the
// prompt advances. Polygons drawn elsewhere, or after the sequence finished,
// are stored as drawn.
func (s *Session) AddPolygon(image string, p roi.Polygon) (Prompt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	layer := s.shapesLocked(image)
	if layer == nil {
		return Prompt{}, fmt.Errorf("no ROI layer for image %q", image)
	}

	if s.seq.Connected() && s.seq.ActiveImage() == image {
		region, next, sw := s.seq.Advance()
		if p.Name == "" {
			p.Name = region
		}
		layer.Polygons = append(layer.Polygons, p)
		if sw != nil {
			s.log.Info("switching focus", "from", sw.From, "to", sw.To)
		}
		s.applyFocusLocked()
		s.log.Debug("polygon added", "image", image, "region", p.Name, "prompt", next.Text)
		return next, nil
	}

	layer.Polygons = append(layer.Polygons, p)
	s.log.Debug("polygon added outside sequence", "image", image)
	return s.seq.Current(), nil
}

// AddROIs adds every polygon of an ROI file, following the configured image
// order so the prompt sequence labels them as if they had been drawn.
// Images in the file without a configured group are added afterwards in name
// order.
func (s *Session) AddROIs(f *roi.File) error {
	seen := make(map[string]bool)
	var order []string
	for _, g := range s.cfg.Groups {
		if _, ok := f.Images[g.Image]; ok && !seen[g.Image] {
			order = append(order, g.Image)
			seen[g.Image] = true
		}
	}
	var rest []string
	for name := range f.Images {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	for _, image := range order {
		s.ensureShapes(image)
		for _, p := range f.Images[image] {
			if _, err := s.AddPolygon(image, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) ensureShapes(image string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shapesLocked(image) == nil {
		s.shapes = append(s.shapes, &ShapesLayer{Name: ShapesLayerName(image), Image: image})
	}
}

// ROIs returns every drawn polygon as an ROI file.
func (s *Session) ROIs() *roi.File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := &roi.File{Images: make(map[string][]roi.Polygon)}
	for _, l := range s.shapes {
		if len(l.Polygons) > 0 {
			f.Images[l.Image] = append([]roi.Polygon(nil), l.Polygons...)
		}
	}
	return f
}

// Prompt returns the current drawing prompt.
func (s *Session) Prompt() Prompt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seq.Current()
}

// AddPoints implements analysis.LayerSink.
func (s *Session) AddPoints(l analysis.PointsLayer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.points {
		if p.Name == l.Name && p.Image == l.Image {
			s.points[i] = l
			return
		}
	}
	s.points = append(s.points, l)
}

// Points returns the peak overlays from the last analysis.
func (s *Session) Points() []analysis.PointsLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]analysis.PointsLayer(nil), s.points...)
}

// State returns a copy of every layer and the current prompt.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{Prompt: s.seq.Current()}
	for _, l := range s.images {
		st.Images = append(st.Images, *l)
	}
	for _, l := range s.shapes {
		c := *l
		c.Polygons = append([]roi.Polygon(nil), l.Polygons...)
		st.Shapes = append(st.Shapes, c)
	}
	st.Points = append(st.Points, s.points...)
	return st
}

// Analyze counts spots on every loaded image: configured groups first, in
// order, then any other loaded image in load order. Region names come from
// the polygon labels when present and from the configured drawing order
// otherwise; an image without a group only has its labelled polygons
// counted. Previous peak overlays are replaced.
func (s *Session) Analyze(ctx context.Context, params analysis.Params, opts analysis.Options) ([]analysis.Row, error) {
	s.mu.Lock()
	s.points = nil
	var inputs []analysis.Input
	add := func(img *ImageLayer) {
		var polys []roi.Polygon
		if sh := s.shapesLocked(img.Name); sh != nil {
			polys = append(polys, sh.Polygons...)
		}
		regions := roi.Assign(polys, s.cfg.GroupNames(img.Name))
		if len(regions) < len(polys) {
			s.log.Warn("unlabelled polygons skipped", "image", img.Name, "skipped", len(polys)-len(regions))
		}
		inputs = append(inputs, analysis.Input{
			Image:   img.Name,
			Stack:   img.Stack,
			Regions: regions,
		})
	}

	grouped := make(map[string]bool)
	for _, g := range s.cfg.Groups {
		grouped[g.Image] = true
		img := s.imageLocked(g.Image)
		if img == nil {
			s.log.Warn("image not loaded, skipping", "image", g.Image)
			continue
		}
		add(img)
	}
	for _, img := range s.images {
		if !grouped[img.Name] {
			add(img)
		}
	}
	s.mu.Unlock()

	opts.Sink = s
	if opts.Logger == nil {
		opts.Logger = s.log
	}
	return analysis.NewCounter(params, opts).Run(ctx, inputs)
}

func (s *Session) imageLocked(name string) *ImageLayer {
	for _, l := range s.images {
		if l.Name == name {
			return l
		}
	}
	return nil
}

func (s *Session) shapesLocked(image string) *ShapesLayer {
	for _, l := range s.shapes {
		if l.Image == image {
			return l
		}
	}
	return nil
}

// applyFocusLocked shows only the active image and its ROI layer while the
// sequence runs, and everything once it is done.
func (s *Session) applyFocusLocked() {
	active := s.seq.ActiveImage()
	for _, l := range s.images {
		l.Visible = active == "" || l.Name == active
	}
	for _, l := range s.shapes {
		l.Visible = active == "" || l.Image == active
	}
}
