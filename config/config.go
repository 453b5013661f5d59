// Package config persists run settings: directory paths, the extraction
// rectangle, and the digit-count filter. The file is sectioned key/value
// (INI) and is merge-written so a rectangle update never disturbs other keys.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/ini.v1"

	"github.com/wudi/renamekit/coords"
)

// Fallback values used for any key absent from the file.
const (
	DefaultInputDir  = "pdf_input"
	DefaultOutputDir = "pdf_output"
	DefaultLogDir    = "log_output"

	defaultRectX = 50
	defaultRectY = 50
	defaultRectW = 200
	defaultRectH = 50
)

// Settings is the durable configuration for a run.
type Settings struct {
	InputDir  string
	OutputDir string
	LogDir    string
	// Rect is the extraction rectangle in document-space points.
	Rect coords.Rect
	// DigitFilter is the required digit count; zero disables the check.
	DigitFilter int
}

// Store reads and merge-writes the settings file at a fixed path.
type Store struct {
	Path string
}

// Load reads settings, substituting documented defaults for every missing
// key. A missing file yields all defaults.
func (s *Store) Load() (Settings, error) {
	f, err := ini.LooseLoad(s.Path)
	if err != nil {
		return Settings{}, fmt.Errorf("load config %s: %w", s.Path, err)
	}
	paths := f.Section("Paths")
	ocrSec := f.Section("OCR")
	filter := f.Section("Filter")

	x := ocrSec.Key("x").MustFloat64(defaultRectX)
	y := ocrSec.Key("y").MustFloat64(defaultRectY)
	w := ocrSec.Key("width").MustFloat64(defaultRectW)
	h := ocrSec.Key("height").MustFloat64(defaultRectH)

	return Settings{
		InputDir:    paths.Key("input_dir").MustString(DefaultInputDir),
		OutputDir:   paths.Key("output_dir").MustString(DefaultOutputDir),
		LogDir:      paths.Key("log_dir").MustString(DefaultLogDir),
		Rect:        coords.Rect{X0: x, Y0: y, X1: x + w, Y1: y + h},
		DigitFilter: filter.Key("digits").MustInt(0),
	}, nil
}

// SaveRect rewrites only the OCR rectangle keys, preserving every other
// section and key of the existing file verbatim.
func (s *Store) SaveRect(rect coords.Rect) error {
	f, err := ini.LooseLoad(s.Path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", s.Path, err)
	}
	sec := f.Section("OCR")
	sec.Key("x").SetValue(strconv.Itoa(int(rect.X0)))
	sec.Key("y").SetValue(strconv.Itoa(int(rect.Y0)))
	sec.Key("width").SetValue(strconv.Itoa(int(rect.Width())))
	sec.Key("height").SetValue(strconv.Itoa(int(rect.Height())))
	if err := f.SaveTo(s.Path); err != nil {
		return fmt.Errorf("save config %s: %w", s.Path, err)
	}
	return nil
}

// EnsureDirs creates the input, output, and log directories if absent.
func (set Settings) EnsureDirs() error {
	for _, dir := range []string{set.InputDir, set.OutputDir, set.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
