package roi

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// File is the on-disk ROI set, keyed by anatomical image name.
//
//	images:
//	  hippocampus:
//	    - name: CA1
//	      vertices: [[10, 10], [10, 90], [60, 90], [60, 10]]
//	  thalamus:
//	    - vertices: [[5, 5], [5, 40], [40, 40]]
type File struct {
	Images map[string][]Polygon `yaml:"images"`
}

// LoadFile reads a YAML ROI file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading ROI file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("error parsing ROI file: %w", err)
	}
	if f.Images == nil {
		f.Images = make(map[string][]Polygon)
	}
	return &f, nil
}

// SaveFile writes a YAML ROI file, creating the parent directory if needed.
func SaveFile(f *File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating ROI directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("error marshaling ROI file: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing ROI file: %w", err)
	}
	return nil
}

// SaveVertices writes a polygon's vertex array as "<dir>/<region>_roi.csv"
// with a "row,col" header and returns the path written.
func SaveVertices(dir, region string, p Polygon) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("error creating ROI directory: %w", err)
	}

	path := filepath.Join(dir, region+"_roi.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("error creating vertex file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"row", "col"}); err != nil {
		return "", err
	}
	for _, v := range p.Vertices {
		rec := []string{
			strconv.FormatFloat(v[0], 'g', -1, 64),
			strconv.FormatFloat(v[1], 'g', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("error writing vertex file: %w", err)
	}
	return path, nil
}

// LoadVertices reads a vertex array written by SaveVertices.
func LoadVertices(path string) (Polygon, error) {
	f, err := os.Open(path)
	if err != nil {
		return Polygon{}, fmt.Errorf("error opening vertex file: %w", err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Polygon{}, fmt.Errorf("error parsing vertex file: %w", err)
	}

	var p Polygon
	for i, rec := range records {
		if i == 0 || len(rec) != 2 {
			continue
		}
		r, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		c, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return Polygon{}, fmt.Errorf("line %d: %w", i+1, err)
		}
		p.Vertices = append(p.Vertices, [2]float64{r, c})
	}
	return p, nil
}
