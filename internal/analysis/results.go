package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Row is one (region, marker channel) measurement.
type Row struct {
	Region        string  `json:"region"`
	Channel       string  `json:"channel"`
	Count         int     `json:"count"`
	MeanIntensity float64 `json:"mean_intensity"`
	AreaUM2       float64 `json:"area_um2"`
	Density       float64 `json:"density"`
}

// Header is the results.csv column order.
var Header = []string{"region", "channel", "count", "mean_intensity", "area_um2", "density"}

// formatFloat uses the shortest representation that parses back to the same
// float64, so a CSV round trip is exact.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// EncodeCSV writes rows with a header line.
func EncodeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Region,
			r.Channel,
			strconv.Itoa(r.Count),
			formatFloat(r.MeanIntensity),
			formatFloat(r.AreaUM2),
			formatFloat(r.Density),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeCSV reads rows written by EncodeCSV. The header must match Header.
func DecodeCSV(r io.Reader) ([]Row, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("results file is empty")
	}
	for i, h := range Header {
		if i >= len(records[0]) || records[0][i] != h {
			return nil, fmt.Errorf("unexpected results header %v", records[0])
		}
	}

	rows := make([]Row, 0, len(records)-1)
	for n, rec := range records[1:] {
		line := n + 2
		if len(rec) != len(Header) {
			return nil, fmt.Errorf("line %d: got %d fields, want %d", line, len(rec), len(Header))
		}
		count, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: count: %w", line, err)
		}
		var vals [3]float64
		for i := range vals {
			vals[i], err = strconv.ParseFloat(rec[3+i], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: %s: %w", line, Header[3+i], err)
			}
		}
		rows = append(rows, Row{
			Region:        rec[0],
			Channel:       rec[1],
			Count:         count,
			MeanIntensity: vals[0],
			AreaUM2:       vals[1],
			Density:       vals[2],
		})
	}
	return rows, nil
}

// WriteCSV writes rows to path, creating the parent directory if needed.
func WriteCSV(rows []Row, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := EncodeCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write results: %w", err)
	}
	return f.Close()
}

// ReadCSV reads a results file.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results: %w", err)
	}
	defer f.Close()
	return DecodeCSV(f)
}
