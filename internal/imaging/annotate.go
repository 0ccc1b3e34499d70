package imaging

import (
	"fmt"
	"image"
	"image/color"

	"github.com/anthonynsimon/bild/clone"
	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Marker colours used for peak overlays, keyed by marker channel position.
const (
	ColorCyan    = "#00FFFF"
	ColorMagenta = "#FF00FF"
	ColorYellow  = "#FFFF00"
)

// AnnotateOptions controls how peaks are burned into a cutout.
type AnnotateOptions struct {
	// Color is the marker colour as "#RRGGBB".
	Color string

	// Radius is the marker circle radius in output pixels. Zero means 3.
	Radius int

	// Caption is drawn in the top-left corner when non-empty.
	Caption string
}

// Annotate returns an RGBA copy of img with a circle drawn around every peak.
//
// Peaks are given in img coordinates (X = column, Y = row). Markers that fall
// partly outside the image are clipped. The source image is not modified.
func Annotate(img image.Image, peaks []image.Point, opts AnnotateOptions) (*image.RGBA, error) {
	c, err := colorful.Hex(opts.Color)
	if err != nil {
		return nil, fmt.Errorf("invalid marker color %q: %w", opts.Color, err)
	}
	marker := color.RGBAModel.Convert(c).(color.RGBA)
	marker.A = 255

	radius := opts.Radius
	if radius <= 0 {
		radius = 3
	}

	out := clone.AsRGBA(img)
	for _, p := range peaks {
		drawCircle(out, p, radius, marker)
	}

	if opts.Caption != "" {
		drawCaption(out, opts.Caption)
	}

	return out, nil
}

// drawCircle plots a one-pixel circle outline with the midpoint algorithm.
func drawCircle(img *image.RGBA, center image.Point, radius int, c color.RGBA) {
	x, y := radius, 0
	d := 1 - radius
	for x >= y {
		for _, o := range [8]image.Point{
			{x, y}, {y, x}, {-y, x}, {-x, y},
			{-x, -y}, {-y, -x}, {y, -x}, {x, -y},
		} {
			pt := center.Add(o)
			if pt.In(img.Rect) {
				img.SetRGBA(pt.X, pt.Y, c)
			}
		}
		y++
		if d < 0 {
			d += 2*y + 1
		} else {
			x--
			d += 2*(y-x) + 1
		}
	}
}

func drawCaption(img *image.RGBA, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(img.Rect.Min.X+2, img.Rect.Min.Y+face.Ascent+1),
	}
	d.DrawString(text)
}
