package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/ironsheep/rnascope-counter/internal/analysis"
	"github.com/ironsheep/rnascope-counter/internal/config"
	"github.com/ironsheep/rnascope-counter/internal/roi"
	"github.com/ironsheep/rnascope-counter/internal/server"
	"github.com/ironsheep/rnascope-counter/internal/session"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// imageFlag collects repeated -image name=path[,path...] values.
type imageFlag []imageSpec

type imageSpec struct {
	name  string
	paths []string
}

func (f *imageFlag) String() string {
	parts := make([]string, len(*f))
	for i, s := range *f {
		parts[i] = s.name + "=" + strings.Join(s.paths, ",")
	}
	return strings.Join(parts, " ")
}

func (f *imageFlag) Set(v string) error {
	name, list, ok := strings.Cut(v, "=")
	if !ok || name == "" {
		return fmt.Errorf("want name=path[,path...], got %q", v)
	}
	paths := splitList(list)
	if len(paths) == 0 {
		return fmt.Errorf("image %s has no paths", name)
	}
	*f = append(*f, imageSpec{name: name, paths: paths})
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

type options struct {
	configPath string
	initConfig string
	roisPath   string
	saveROIs   string
	serve      bool
	version    bool
	images     imageFlag
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run parses args, applies them over the configuration file, and either
// serves the session protocol or runs one batch analysis. It returns the
// process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rnascope-counter", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	hippocampus := fs.String("hippocampus", "", "Comma-separated hippocampus image files (z-planes unless -max-projected)")
	thalamus := fs.String("thalamus", "", "Comma-separated thalamus image files (z-planes unless -max-projected)")
	fs.Var(&opts.images, "image", "Additional image as name=path[,path...] (repeatable)")
	maxProjected := fs.Bool("max-projected", false, "Inputs are already max-projected (one file per image)")
	fs.StringVar(&opts.roisPath, "rois", "", "YAML ROI file")
	fs.StringVar(&opts.saveROIs, "save-rois-file", "", "Write the session's ROIs to this YAML file after analysis")
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.initConfig, "init-config", "", "Write a default configuration file and exit")
	output := fs.String("output", "results.csv", "Results CSV path")
	outputDir := fs.String("output-dir", "", "Directory for all outputs")
	pixelSpacing := fs.Float64("pixel-spacing", 0.4475, "Microns per pixel")
	threshold := fs.Float64("threshold", 100.0, "Absolute intensity a spot must exceed")
	minDistance := fs.Int("min-distance", 5, "Minimum spot separation in pixels")
	channels := fs.String("channels", analysis.FormatChannels(analysis.DefaultParams().Channels), "Channel map; index 0 is the nuclei stain")
	saveParams := fs.Bool("save-params", false, "Write params.json")
	saveCutouts := fs.Bool("save-cutouts", false, "Write per-region PNG cutouts")
	saveROIs := fs.Bool("save-rois", false, "Write per-region vertex arrays")
	cutoutScale := fs.Int("cutout-scale", 1, "Integer enlargement of cutouts")
	fs.BoolVar(&opts.serve, "serve", false, "Serve the session protocol on stdin/stdout")
	fs.BoolVar(&opts.version, "version", false, "Print version information")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if opts.version {
		fmt.Fprintf(stdout, "rnascope-counter %s\n", Version)
		fmt.Fprintf(stdout, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(stdout, "  Git commit: %s\n", GitCommit)
		return 0
	}

	logger := NewLogger(stderr, parseLevel(os.Getenv("RNASCOPE_LOG_LEVEL")))

	if opts.initConfig != "" {
		if err := config.CreateDefaultConfigFile(opts.initConfig); err != nil {
			logger.Error("failed to write config", "error", err)
			return 1
		}
		logger.Info("default config written", "path", opts.initConfig)
		return 0
	}

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	// Flags given explicitly override the configuration file.
	var flagErr error
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "max-projected":
			cfg.Input.MaxProjected = *maxProjected
		case "output":
			cfg.Output.Results = *output
		case "output-dir":
			cfg.Output.Dir = *outputDir
		case "pixel-spacing":
			cfg.Analysis.PixelSpacing = *pixelSpacing
		case "threshold":
			cfg.Analysis.Threshold = *threshold
		case "min-distance":
			cfg.Analysis.MinDistance = *minDistance
		case "channels":
			chs, err := analysis.ParseChannels(*channels)
			if err != nil {
				flagErr = err
				return
			}
			cfg.Analysis.Channels = nil
			for _, c := range chs {
				cfg.Analysis.Channels = append(cfg.Analysis.Channels, config.Channel{Name: c.Name, Index: c.Index})
			}
		case "save-params":
			cfg.Output.SaveParams = *saveParams
		case "save-cutouts":
			cfg.Output.SaveCutouts = *saveCutouts
		case "save-rois":
			cfg.Output.SaveROIs = *saveROIs
		case "cutout-scale":
			cfg.Output.CutoutScale = *cutoutScale
		}
	})
	if flagErr == nil {
		flagErr = cfg.Validate()
	}
	if flagErr != nil {
		logger.Error("invalid arguments", "error", flagErr)
		return 2
	}

	var images []imageSpec
	if p := splitList(*hippocampus); len(p) > 0 {
		images = append(images, imageSpec{name: "hippocampus", paths: p})
	}
	if p := splitList(*thalamus); len(p) > 0 {
		images = append(images, imageSpec{name: "thalamus", paths: p})
	}
	images = append(images, opts.images...)

	sess := session.New(cfg, nil, logger)
	for _, im := range images {
		if _, err := sess.LoadImage(im.name, im.paths, cfg.Input.MaxProjected); err != nil {
			logger.Error("failed to load image", "image", im.name, "error", err)
			return 1
		}
	}
	if opts.roisPath != "" {
		f, err := roi.LoadFile(opts.roisPath)
		if err != nil {
			logger.Error("failed to load ROIs", "error", err)
			return 1
		}
		if err := sess.AddROIs(f); err != nil {
			logger.Error("failed to add ROIs", "error", err)
			return 1
		}
	}

	if opts.serve {
		logger.Info("serving session protocol", "version", Version, "commit", GitCommit)
		srv := server.New(sess, cfg, logger)
		srv.SetVersion(Version)
		if err := srv.Serve(stdin, stdout); err != nil {
			logger.Error("server error", "error", err)
			return 1
		}
		return 0
	}

	if len(images) == 0 {
		fmt.Fprintln(stderr, "rnascope-counter: no images given (use -hippocampus, -thalamus or -image)")
		fs.Usage()
		return 2
	}
	if opts.roisPath == "" {
		fmt.Fprintln(stderr, "rnascope-counter: batch mode needs -rois (or use -serve to draw them)")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rows, err := sess.Analyze(ctx, analysis.ParamsFromConfig(cfg), analysis.Options{
		ResultsPath: cfg.ResultsPath(),
		OutputDir:   cfg.OutputDir(),
		SaveParams:  cfg.Output.SaveParams,
		SaveCutouts: cfg.Output.SaveCutouts,
		SaveROIs:    cfg.Output.SaveROIs,
		CutoutScale: cfg.Output.CutoutScale,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("analysis failed", "error", err)
		return 1
	}

	if opts.saveROIs != "" {
		if err := roi.SaveFile(sess.ROIs(), opts.saveROIs); err != nil {
			logger.Error("failed to save ROIs", "error", err)
			return 1
		}
	}

	printRows(stdout, rows)
	logger.Info("analysis complete", "rows", len(rows), "results", filepath.Clean(cfg.ResultsPath()))
	return 0
}

func printRows(w io.Writer, rows []analysis.Row) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tCHANNEL\tCOUNT\tMEAN\tAREA_UM2\tDENSITY")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.6f\n", r.Region, r.Channel, r.Count, r.MeanIntensity, r.AreaUM2, r.Density)
	}
	tw.Flush()
}
