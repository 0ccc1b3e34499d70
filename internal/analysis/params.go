package analysis

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ironsheep/rnascope-counter/internal/config"
	"github.com/ironsheep/rnascope-counter/internal/detection"
)

// NucleiIndex is the stack channel holding the nuclear stain. It is never
// counted.
const NucleiIndex = 0

// Channel names one stack channel.
type Channel struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// Params are the tunable values of one analysis run. They are written
// verbatim to params.json.
type Params struct {
	// PixelSpacing is microns per pixel.
	PixelSpacing float64 `json:"pixel_spacing"`

	// Threshold is the absolute intensity a spot must exceed.
	Threshold float64 `json:"threshold"`

	// MinDistance is the minimum spot separation in pixels.
	MinDistance int `json:"min_distance"`

	// ExcludeBorder ignores spots near the image edge.
	ExcludeBorder bool `json:"exclude_border"`

	// Channels maps names to stack indices.
	Channels []Channel `json:"channels"`
}

// DefaultParams returns the values offered to the user before a run.
func DefaultParams() Params {
	d := detection.DefaultPeakOptions()
	return Params{
		PixelSpacing:  0.4475,
		Threshold:     d.Threshold,
		MinDistance:   d.MinDistance,
		ExcludeBorder: d.ExcludeBorder,
		Channels: []Channel{
			{Name: "DAPI", Index: 0},
			{Name: "GOB", Index: 1},
			{Name: "GOA", Index: 2},
		},
	}
}

// ParamsFromConfig copies the analysis section of a config.
func ParamsFromConfig(cfg *config.Config) Params {
	p := Params{
		PixelSpacing:  cfg.Analysis.PixelSpacing,
		Threshold:     cfg.Analysis.Threshold,
		MinDistance:   cfg.Analysis.MinDistance,
		ExcludeBorder: cfg.Analysis.ExcludeBorder,
	}
	for _, c := range cfg.Analysis.Channels {
		p.Channels = append(p.Channels, Channel{Name: c.Name, Index: c.Index})
	}
	return p
}

// PeakOptions converts the detection-related fields.
func (p Params) PeakOptions() detection.PeakOptions {
	return detection.PeakOptions{
		Threshold:     p.Threshold,
		MinDistance:   p.MinDistance,
		ExcludeBorder: p.ExcludeBorder,
	}
}

// MarkerChannels returns every channel except the nuclei channel, ordered by
// stack index.
func (p Params) MarkerChannels() []Channel {
	out := make([]Channel, 0, len(p.Channels))
	for _, c := range p.Channels {
		if c.Index != NucleiIndex {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ParseChannels parses a mapping such as "DAPI=0,GOB=1,GOA=2".
func ParseChannels(s string) ([]Channel, error) {
	var out []Channel
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, idx, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("channel %q: want NAME=INDEX", part)
		}
		name = strings.TrimSpace(name)
		i, err := strconv.Atoi(strings.TrimSpace(idx))
		if err != nil || i < 0 {
			return nil, fmt.Errorf("channel %q: invalid index", part)
		}
		if name == "" || seen[name] {
			return nil, fmt.Errorf("channel %q: empty or duplicate name", part)
		}
		seen[name] = true
		out = append(out, Channel{Name: name, Index: i})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no channels in %q", s)
	}
	return out, nil
}

// FormatChannels is the inverse of ParseChannels.
func FormatChannels(chs []Channel) string {
	parts := make([]string, len(chs))
	for i, c := range chs {
		parts[i] = fmt.Sprintf("%s=%d", c.Name, c.Index)
	}
	return strings.Join(parts, ",")
}

// WriteParams writes the run parameters as indented JSON.
func WriteParams(p Params, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write params: %w", err)
	}
	return nil
}

// ReadParams reads a params.json snapshot.
func ReadParams(path string) (Params, error) {
	var p Params
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("failed to read params: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to parse params: %w", err)
	}
	return p, nil
}
