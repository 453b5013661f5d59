package main

import (
	"bufio"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/wudi/renamekit/coords"
)

// terminalFrontend implements pipeline.Frontend on stdin/stdout. The preview
// image is optionally written to disk so the user can look at it while
// calibrating; drag gestures arrive as typed preview-space coordinates.
type terminalFrontend struct {
	in         *bufio.Scanner
	out        *os.File
	previewDir string

	field        string
	previewCount int
}

func newTerminalFrontend(previewDir string) *terminalFrontend {
	return &terminalFrontend{
		in:         bufio.NewScanner(os.Stdin),
		out:        os.Stdout,
		previewDir: previewDir,
	}
}

func (t *terminalFrontend) ShowStatus(text string) {
	fmt.Fprintln(t.out, text)
}

func (t *terminalFrontend) ShowPreview(img image.Image, rect coords.Rect) {
	if t.previewDir == "" {
		return
	}
	t.previewCount++
	path := filepath.Join(t.previewDir, fmt.Sprintf("preview_%03d.png", t.previewCount))
	if err := imaging.Save(img, path); err != nil {
		fmt.Fprintf(os.Stderr, "save preview: %v\n", err)
		return
	}
	fmt.Fprintf(t.out, "preview: %s (rectangle at %.0f,%.0f - %.0f,%.0f)\n",
		path, rect.X0, rect.Y0, rect.X1, rect.Y1)
}

func (t *terminalFrontend) SeedField(text string) {
	t.field = text
	fmt.Fprintf(t.out, "name: %q\n", text)
}

func (t *terminalFrontend) ClearField() {
	t.field = ""
}

func (t *terminalFrontend) FieldValue() string { return t.field }

func (t *terminalFrontend) Warn(msg string) {
	fmt.Fprintf(t.out, "! %s\n", msg)
}

func (t *terminalFrontend) ReportError(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
}

func (t *terminalFrontend) ConfirmOverwrite(name string) bool {
	fmt.Fprintf(t.out, "%s already exists. overwrite? [y/N] ", name)
	if !t.in.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(t.in.Text()))
	return answer == "y" || answer == "yes"
}

func (t *terminalFrontend) Finished(committed, total int) {
	fmt.Fprintf(t.out, "done: %d of %d documents committed\n", committed, total)
}

// readCommand returns the next user command line, or false on EOF.
func (t *terminalFrontend) readCommand() (string, bool) {
	fmt.Fprint(t.out, "> ")
	if !t.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(t.in.Text()), true
}
