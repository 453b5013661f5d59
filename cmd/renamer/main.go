// Command renamer batch-renames scanned PDF documents: it reads an
// identifier from a calibrated region of each first page, lets the user
// confirm or edit it, then copies the document into the output directory
// under that name and logs the commit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/wudi/renamekit/config"
	"github.com/wudi/renamekit/coords"
	"github.com/wudi/renamekit/document"
	"github.com/wudi/renamekit/extract"
	"github.com/wudi/renamekit/logbook"
	"github.com/wudi/renamekit/observability"
	"github.com/wudi/renamekit/ocr"
	"github.com/wudi/renamekit/pipeline"

	_ "github.com/wudi/renamekit/ocr/tesseract"
)

// Fallback preview surface for the terminal, matching the size used before
// a real display layout exists.
const (
	previewW = 800
	previewH = 1000
)

type options struct {
	configPath string
	previewDir string
	debugDir   string
	verbose    bool
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "renamer: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: renamer [flags]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Interactive commands:\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  ok                     commit the current name and advance\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  set <name>             replace the suggested name\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  cal                    toggle calibration mode\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  drag <x0> <y0> <x1> <y1>  draw a new rectangle (preview pixels)\n")
		fmt.Fprintf(flag.CommandLine.Output(), "  quit                   stop without processing the rest\n\n")
		flag.PrintDefaults()
	}
	flag.StringVar(&opts.configPath, "config", "config.txt", "Path to the settings file")
	flag.StringVar(&opts.previewDir, "previews", "", "Directory for rendered page previews (disabled when empty)")
	flag.StringVar(&opts.debugDir, "debug-crops", "", "Directory for binarized OCR crops (disabled when empty)")
	flag.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	flag.Parse()
	return opts
}

func run(opts options) error {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := observability.NewSlog(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	store := &config.Store{Path: opts.configPath}
	settings, err := store.Load()
	if err != nil {
		return err
	}
	if err := settings.EnsureDirs(); err != nil {
		return err
	}
	for _, dir := range []string{opts.previewDir, opts.debugDir} {
		if dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", dir, err)
			}
		}
	}

	queue, err := pipeline.BuildQueue(settings.InputDir)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		fmt.Printf("no PDF files in %s\n", settings.InputDir)
	}

	extractor := extract.New(ocr.DefaultEngine())
	extractor.DebugDir = opts.debugDir
	extractor.Logger = logger

	front := newTerminalFrontend(opts.previewDir)
	p, err := pipeline.New(pipeline.Options{
		Queue:       queue,
		OutputDir:   settings.OutputDir,
		Rect:        settings.Rect,
		DigitFilter: settings.DigitFilter,
		Provider:    document.NewPDFProvider(),
		Extractor:   extractor,
		Store:       store,
		Log:         logbook.New(settings.LogDir),
		Frontend:    front,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := p.Start(ctx, previewW, previewH); err != nil {
		return err
	}
	return eventLoop(ctx, p, front)
}

func eventLoop(ctx context.Context, p *pipeline.Pipeline, front *terminalFrontend) error {
	for p.State() != "done" {
		line, ok := front.readCommand()
		if !ok {
			return nil
		}
		cmd, rest, _ := strings.Cut(line, " ")
		switch cmd {
		case "", "ok":
			if err := p.Commit(ctx); err != nil {
				front.ReportError(err.Error())
			}
		case "set":
			front.field = strings.TrimSpace(rest)
		case "cal":
			if err := p.ToggleCalibration(); err != nil {
				front.ReportError(err.Error())
			}
		case "drag":
			a, b, err := parseDrag(rest)
			if err != nil {
				front.Warn(err.Error())
				continue
			}
			if err := p.DragRelease(ctx, a, b); err != nil {
				front.ReportError(err.Error())
			}
		case "quit":
			return nil
		default:
			front.Warn(fmt.Sprintf("unknown command %q", cmd))
		}
	}
	return nil
}

func parseDrag(args string) (coords.Point, coords.Point, error) {
	fields := strings.Fields(args)
	if len(fields) != 4 {
		return coords.Point{}, coords.Point{}, fmt.Errorf("drag needs 4 coordinates")
	}
	vals := make([]float64, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return coords.Point{}, coords.Point{}, fmt.Errorf("bad coordinate %q", f)
		}
		vals[i] = v
	}
	return coords.Point{X: vals[0], Y: vals[1]}, coords.Point{X: vals[2], Y: vals[3]}, nil
}
