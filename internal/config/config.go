// Package config provides configuration loading and management for
// rnascope-counter. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Group is one anatomical image and the regions expected to be drawn on it,
// in drawing order.
type Group struct {
	// Image is the layer name of the anatomical image (e.g. "hippocampus").
	Image string `yaml:"image"`

	// Regions are the region names in the order the user draws them.
	Regions []string `yaml:"regions"`
}

// Channel names one stack channel.
type Channel struct {
	Name  string `yaml:"name"`
	Index int    `yaml:"index"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// PixelSpacing is the physical size of one pixel in microns
		PixelSpacing float64 `yaml:"pixelSpacing"`

		// Threshold is the absolute intensity a spot must exceed
		Threshold float64 `yaml:"threshold"`

		// MinDistance is the minimum separation between spots in pixels
		MinDistance int `yaml:"minDistance"`

		// ExcludeBorder drops spots within MinDistance of the image edge
		ExcludeBorder bool `yaml:"excludeBorder"`

		// Channels maps channel names to stack indices; index 0 is the
		// nuclei stain, every other entry is a marker channel
		Channels []Channel `yaml:"channels"`
	} `yaml:"analysis"`

	// Groups lists the anatomical images and their expected regions
	Groups []Group `yaml:"groups"`

	// Input parameters
	Input struct {
		// MaxProjected marks the inputs as already max-projected
		MaxProjected bool `yaml:"maxProjected"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Dir is the directory all outputs are written to; empty means the
		// working directory
		Dir string `yaml:"dir"`

		// Results is the CSV file name (or path when Dir is empty)
		Results string `yaml:"results"`

		// SaveParams writes params.json next to the results
		SaveParams bool `yaml:"saveParams"`

		// SaveCutouts writes per-region PNG cutouts
		SaveCutouts bool `yaml:"saveCutouts"`

		// CutoutScale enlarges cutouts by an integer factor
		CutoutScale int `yaml:"cutoutScale"`

		// SaveROIs writes per-region vertex arrays
		SaveROIs bool `yaml:"saveROIs"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.PixelSpacing = 0.4475
	cfg.Analysis.Threshold = 100.0
	cfg.Analysis.MinDistance = 5
	cfg.Analysis.ExcludeBorder = true
	cfg.Analysis.Channels = []Channel{
		{Name: "DAPI", Index: 0},
		{Name: "GOB", Index: 1},
		{Name: "GOA", Index: 2},
	}

	cfg.Groups = []Group{
		{Image: "hippocampus", Regions: []string{"CA1", "CA3", "DG"}},
		{Image: "thalamus", Regions: []string{"Thalamus"}},
	}

	cfg.Output.Results = "results.csv"
	cfg.Output.CutoutScale = 1

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		return cfg, nil
	}

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Validate checks parameter ranges.
func (c *Config) Validate() error {
	if c.Analysis.PixelSpacing < 0 {
		return fmt.Errorf("pixelSpacing must be >= 0, got %v", c.Analysis.PixelSpacing)
	}
	if c.Analysis.Threshold < 0 {
		return fmt.Errorf("threshold must be >= 0, got %v", c.Analysis.Threshold)
	}
	if c.Analysis.MinDistance < 1 {
		return fmt.Errorf("minDistance must be >= 1, got %d", c.Analysis.MinDistance)
	}
	if len(c.Analysis.Channels) == 0 {
		return fmt.Errorf("at least one channel is required")
	}
	return nil
}

// ResultsPath returns where results.csv is written.
func (c *Config) ResultsPath() string {
	name := c.Output.Results
	if name == "" {
		name = "results.csv"
	}
	if c.Output.Dir == "" {
		return name
	}
	return filepath.Join(c.Output.Dir, filepath.Base(name))
}

// OutputDir returns the directory side outputs (params, cutouts, ROIs) go to.
func (c *Config) OutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return filepath.Dir(c.ResultsPath())
}

// GroupNames returns the region names expected on the named image, or nil.
func (c *Config) GroupNames(image string) []string {
	for _, g := range c.Groups {
		if g.Image == image {
			return g.Regions
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
