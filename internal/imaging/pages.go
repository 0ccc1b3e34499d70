package imaging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"

	"golang.org/x/image/tiff"
)

// maxTIFFPages bounds the IFD walk of one file.
const maxTIFFPages = 1024

// decodePages decodes every page of a TIFF file, or the single image of any
// other registered format.
//
// golang.org/x/image/tiff only reads the first image file directory, so the
// IFD chain is walked here and each page is decoded through a view of the
// file whose header points at that page.
func decodePages(f *os.File) ([]image.Image, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	var hdr [8]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	order, ok := tiffByteOrder(hdr)
	if !ok {
		img, _, err := image.Decode(f)
		if err != nil {
			return nil, err
		}
		return []image.Image{img}, nil
	}

	offsets, err := tiffIFDs(f, order, order.Uint32(hdr[4:8]))
	if err != nil {
		return nil, err
	}

	pages := make([]image.Image, 0, len(offsets))
	for i, off := range offsets {
		p := tiffPage{SectionReader: io.NewSectionReader(f, 0, info.Size()), header: hdr}
		order.PutUint32(p.header[4:8], off)
		img, err := tiff.Decode(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, img)
	}
	return pages, nil
}

func tiffByteOrder(hdr [8]byte) (binary.ByteOrder, bool) {
	switch {
	case hdr[0] == 'I' && hdr[1] == 'I' && hdr[2] == 42 && hdr[3] == 0:
		return binary.LittleEndian, true
	case hdr[0] == 'M' && hdr[1] == 'M' && hdr[2] == 0 && hdr[3] == 42:
		return binary.BigEndian, true
	}
	return nil, false
}

// tiffIFDs follows the next-IFD links starting at first.
func tiffIFDs(r io.ReaderAt, order binary.ByteOrder, first uint32) ([]uint32, error) {
	var offsets []uint32
	seen := make(map[uint32]bool)
	for off := first; off != 0; {
		if seen[off] {
			return nil, fmt.Errorf("tiff: IFD loop at offset %d", off)
		}
		if len(offsets) == maxTIFFPages {
			return nil, fmt.Errorf("tiff: more than %d pages", maxTIFFPages)
		}
		seen[off] = true
		offsets = append(offsets, off)

		var n [2]byte
		if _, err := r.ReadAt(n[:], int64(off)); err != nil {
			return nil, fmt.Errorf("tiff: read IFD at %d: %w", off, err)
		}
		var next [4]byte
		if _, err := r.ReadAt(next[:], int64(off)+2+12*int64(order.Uint16(n[:]))); err != nil {
			return nil, fmt.Errorf("tiff: read IFD link at %d: %w", off, err)
		}
		off = order.Uint32(next[:])
	}
	if len(offsets) == 0 {
		return nil, errors.New("tiff: no image file directory")
	}
	return offsets, nil
}

// tiffPage presents a TIFF file with its first-IFD offset rewritten.
type tiffPage struct {
	*io.SectionReader
	header [8]byte
}

func (p tiffPage) ReadAt(b []byte, off int64) (int, error) {
	n, err := p.SectionReader.ReadAt(b, off)
	for i := 0; i < n && off+int64(i) < int64(len(p.header)); i++ {
		b[i] = p.header[off+int64(i)]
	}
	return n, err
}

// PagesToStack turns single-sample pages into the channels of one stack, in
// page order. Every page must be grayscale and share one size. The stack is
// 16-bit when any page is.
func PagesToStack(pages []image.Image) (*Stack, error) {
	if len(pages) == 0 {
		return nil, errors.New("no pages")
	}

	b := pages[0].Bounds()
	depth := 8
	for i, p := range pages {
		switch p.(type) {
		case *image.Gray:
		case *image.Gray16:
			depth = 16
		default:
			return nil, fmt.Errorf("page %d: channel pages must be grayscale, got %T", i, p)
		}
		if p.Bounds().Size() != b.Size() {
			return nil, fmt.Errorf("page %d is %v, want %v", i, p.Bounds().Size(), b.Size())
		}
	}
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image %dx%d", ErrNotThreeDimensional, b.Dx(), b.Dy())
	}

	s := NewStack(len(pages), b.Dy(), b.Dx(), depth)
	for c, p := range pages {
		pb := p.Bounds()
		for y := 0; y < s.Rows; y++ {
			for x := 0; x < s.Cols; x++ {
				switch g := p.(type) {
				case *image.Gray:
					s.Set(c, y, x, float64(g.GrayAt(x+pb.Min.X, y+pb.Min.Y).Y))
				case *image.Gray16:
					s.Set(c, y, x, float64(g.Gray16At(x+pb.Min.X, y+pb.Min.Y).Y))
				}
			}
		}
	}
	return s, nil
}
