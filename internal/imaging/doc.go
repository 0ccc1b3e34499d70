// Package imaging loads fluorescence micrographs as multi-channel intensity
// stacks and renders per-region cutouts for visual QA.
//
// # Axes and Coordinates
//
// A Stack is indexed (channel, row, column). Channel 0 is conventionally the
// nuclei stain (DAPI) and channels 1 and 2 are the marker probes. Rows grow
// downward and columns grow rightward, both 0-based. Where a standard
// image.Point or image.Rectangle is used, X is the column and Y is the row.
//
// # Input Formats
//
// PNG, JPEG, GIF and TIFF files are decoded with the standard image registry
// (TIFF via golang.org/x/image/tiff). Colour files map R, G and B onto
// channels 0, 1 and 2. A multi-page TIFF is read as one grayscale page per
// channel, so a (channel, row, column) file saved by ImageJ or tifffile loads
// with as many channels as it has pages. A single grayscale page is
// 2-dimensional and is rejected with ErrNotThreeDimensional.
//
// # Z-Stacks
//
// Several files can be passed as z-planes of one field of view. They are
// combined with a maximum-intensity projection unless the caller states that
// the input is already projected.
//
// # Cutouts
//
// Cutout crops one channel to a region's bounding box, blanks pixels outside
// the region mask and rescales intensities to 8-bit. Annotate burns peak
// markers and a caption into a copy of a cutout.
//
// # Thread Safety
//
// Cache is safe for concurrent use. Stacks are plain values; callers must not
// mutate a stack that is shared with other goroutines.
package imaging
