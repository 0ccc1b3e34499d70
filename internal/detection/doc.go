// Package detection finds fluorescent spots in a single image channel.
//
// A spot is a local intensity maximum: a pixel that is the brightest in its
// square neighbourhood, exceeds an absolute threshold, and is far enough from
// any brighter spot. Detection can be restricted to a region mask so each
// hand-drawn ROI is searched independently.
//
// # Parameters
//
//   - Threshold: absolute intensity a spot must exceed, in the source bit
//     depth of the image (0-255 or 0-65535).
//   - MinDistance: minimum separation between spots in pixels. It also sets
//     the size of the neighbourhood, (2*MinDistance+1) pixels square.
//   - ExcludeBorder: ignore spots within MinDistance of the image edge,
//     where the neighbourhood would be truncated.
//
// # Coordinates
//
// Peaks are reported as (row, column) in full-image coordinates, never
// relative to the mask's bounding box.
//
// # Spacing
//
// Candidate maxima are thinned brightest-first. Distances use the Chebyshev
// metric, matching the square neighbourhood, and neighbour queries go through
// a gonum k-d tree so dense regions stay tractable.
package detection
