// Package pipeline drives the batch: document iteration, per-document
// extraction, user confirmation, calibration, and the commit that copies a
// document into the output directory under its confirmed identifier.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wudi/renamekit/coords"
	"github.com/wudi/renamekit/document"
	"github.com/wudi/renamekit/extract"
	"github.com/wudi/renamekit/observability"
)

// Extractor produces the candidate identifier for a region of a document.
// *extract.Extractor is the production implementation.
type Extractor interface {
	Extract(ctx context.Context, doc document.Document, name string, rect coords.Rect, digitFilter int) (extract.Candidate, error)
}

// RectStore persists the calibrated extraction rectangle.
type RectStore interface {
	SaveRect(rect coords.Rect) error
}

// CommitLog records committed identifiers.
type CommitLog interface {
	Append(identifier string) error
}

// Options wires the pipeline's collaborators and run parameters.
type Options struct {
	Queue       []string
	OutputDir   string
	Rect        coords.Rect
	DigitFilter int
	Provider    document.Provider
	Extractor   Extractor
	Store       RectStore
	Log         CommitLog
	Frontend    Frontend
	Logger      observability.Logger
}

// Pipeline owns the run: the fixed document queue, the cursor, the active
// extraction rectangle, and the open handle for the current document. All
// methods must be called from a single goroutine; the state machine itself
// serializes access to the rectangle.
type Pipeline struct {
	opts   Options
	logger observability.Logger

	state state

	// Preview geometry, valid once Start has seen a real layout.
	previewW, previewH float64
	fit                coords.FitTransform

	doc          document.Document
	pageW, pageH float64

	committed int
}

// New builds a pipeline in the Idle state.
func New(opts Options) (*Pipeline, error) {
	if opts.Provider == nil || opts.Extractor == nil || opts.Store == nil || opts.Log == nil || opts.Frontend == nil {
		return nil, errors.New("pipeline: missing collaborator")
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &Pipeline{opts: opts, logger: logger, state: stateIdle{}}, nil
}

// State reports the current mode, for status surfaces and tests.
func (p *Pipeline) State() string { return p.state.String() }

// Rect returns the active extraction rectangle.
func (p *Pipeline) Rect() coords.Rect { return p.opts.Rect }

// Committed returns the number of successful commits so far.
func (p *Pipeline) Committed() int { return p.committed }

// Start leaves Idle once the display surface has a real size. Extraction
// never runs before the first layout pass because the coordinate transform
// depends on the preview dimensions. An empty queue terminates immediately.
func (p *Pipeline) Start(ctx context.Context, previewW, previewH float64) error {
	if _, ok := p.state.(stateIdle); !ok {
		return fmt.Errorf("pipeline: start in state %s", p.state)
	}
	p.previewW, p.previewH = previewW, previewH
	if len(p.opts.Queue) == 0 {
		p.finish()
		return nil
	}
	p.display(ctx, 0)
	return nil
}

// display makes document i current: open, render, extract, seed the field.
// Unrecoverable per-document errors skip forward; one bad document never
// halts the batch.
func (p *Pipeline) display(ctx context.Context, i int) {
	for ; i < len(p.opts.Queue); i++ {
		if p.tryDisplay(ctx, i) {
			p.state = stateDisplaying{index: i}
			return
		}
	}
	p.finish()
}

// tryDisplay reports whether document i became current. A false return means
// the document was skipped and reported.
func (p *Pipeline) tryDisplay(ctx context.Context, i int) bool {
	p.closeDoc()
	path := p.opts.Queue[i]
	name := filepath.Base(path)
	p.opts.Frontend.ShowStatus(fmt.Sprintf("processing: %s (%d/%d)", name, i+1, len(p.opts.Queue)))

	doc, err := p.opts.Provider.Open(path)
	if err != nil {
		p.skip(name, i, err)
		return false
	}
	p.doc = doc
	p.pageW, p.pageH = doc.PageSize()
	p.fit = coords.Fit(p.pageW, p.pageH, p.previewW, p.previewH)
	p.renderPreview(ctx)

	cand, err := p.opts.Extractor.Extract(ctx, doc, trimExt(name), p.opts.Rect, p.opts.DigitFilter)
	switch {
	case errors.Is(err, extract.ErrBackendUnavailable):
		// The user can still type a name manually or recalibrate.
		p.opts.Frontend.ClearField()
		p.opts.Frontend.ReportError(err.Error())
		p.logger.Error("recognition backend unavailable", observability.Error("error", err))
	case err != nil:
		p.skip(name, i, err)
		return false
	default:
		p.opts.Frontend.SeedField(cand.Text)
	}
	return true
}

func (p *Pipeline) renderPreview(ctx context.Context) {
	img, err := p.doc.RenderPreview(ctx, int(p.previewW), int(p.previewH))
	if err != nil {
		// Preview is cosmetic; extraction and commit still work.
		p.logger.Warn("render preview", observability.Error("error", err))
		return
	}
	p.opts.Frontend.ShowPreview(img, p.fit.ToPreviewRect(p.opts.Rect))
}

func (p *Pipeline) skip(name string, i int, err error) {
	p.closeDoc()
	p.opts.Frontend.ReportError(fmt.Sprintf("skipping %s: %v", name, err))
	p.logger.Warn("skipping document",
		observability.String("name", name),
		observability.Int("index", i),
		observability.Error("error", err))
}

// Commit validates the edited filename and, on success, copies the current
// document into the output directory and logs the identifier. Invoked while
// calibrating, it only exits calibration.
func (p *Pipeline) Commit(ctx context.Context) error {
	switch st := p.state.(type) {
	case stateCalibrating:
		p.exitCalibration(st.index)
		return nil
	case stateDisplaying:
		return p.commit(ctx, st.index)
	default:
		return fmt.Errorf("pipeline: commit in state %s", p.state)
	}
}

func (p *Pipeline) commit(ctx context.Context, i int) error {
	field := strings.TrimSpace(p.opts.Frontend.FieldValue())
	if field == "" || strings.HasPrefix(field, extract.InvalidPrefix) {
		p.opts.Frontend.Warn("enter a valid file name")
		return nil
	}
	src := p.opts.Queue[i]
	target := filepath.Join(p.opts.OutputDir, field+filepath.Ext(src))
	if _, err := os.Stat(target); err == nil {
		if !p.opts.Frontend.ConfirmOverwrite(filepath.Base(target)) {
			return nil
		}
	}

	// The handle must be released before the copy; some platforms lock open
	// files.
	p.closeDoc()
	if err := copyFile(src, target); err != nil {
		// The caller reports the returned error; the document stays current
		// with the typed name intact.
		p.redisplay(ctx, i)
		return fmt.Errorf("saving %s: %w", filepath.Base(target), err)
	}
	if err := p.opts.Log.Append(field); err != nil {
		p.opts.Frontend.ReportError(fmt.Sprintf("writing log: %v", err))
		p.logger.Error("log append failed",
			observability.String("identifier", field),
			observability.Error("error", err))
	}
	p.committed++
	p.logger.Info("committed",
		observability.String("identifier", field),
		observability.String("source", filepath.Base(src)))
	p.display(ctx, i+1)
	return nil
}

// redisplay reopens document i after a failed commit without re-running
// extraction, preserving whatever the user typed.
func (p *Pipeline) redisplay(ctx context.Context, i int) {
	doc, err := p.opts.Provider.Open(p.opts.Queue[i])
	if err != nil {
		p.skip(filepath.Base(p.opts.Queue[i]), i, err)
		p.display(ctx, i+1)
		return
	}
	p.doc = doc
	p.state = stateDisplaying{index: i}
}

// ToggleCalibration enters or exits the interactive recalibration mode for
// the current document.
func (p *Pipeline) ToggleCalibration() error {
	switch st := p.state.(type) {
	case stateDisplaying:
		p.state = stateCalibrating{index: st.index}
		p.opts.Frontend.ShowStatus("select region: drag to draw the extraction rectangle")
		return nil
	case stateCalibrating:
		p.exitCalibration(st.index)
		return nil
	default:
		return fmt.Errorf("pipeline: calibration toggle in state %s", p.state)
	}
}

func (p *Pipeline) exitCalibration(i int) {
	p.state = stateDisplaying{index: i}
	name := filepath.Base(p.opts.Queue[i])
	p.opts.Frontend.ShowStatus(fmt.Sprintf("processing: %s (%d/%d)", name, i+1, len(p.opts.Queue)))
}

// DragRelease completes a calibration gesture: the two preview-space
// endpoints become the new extraction rectangle, the current document is
// re-extracted immediately, and the rectangle is persisted. A failed persist
// is surfaced but leaves the new rectangle active for the rest of the run.
func (p *Pipeline) DragRelease(ctx context.Context, a, b coords.Point) error {
	st, ok := p.state.(stateCalibrating)
	if !ok {
		return fmt.Errorf("pipeline: drag in state %s", p.state)
	}
	rect := coords.DragRect(a, b, p.fit, p.pageW, p.pageH)
	if rect.IsEmpty() {
		p.opts.Frontend.Warn("selection is empty, drag again")
		return nil
	}
	p.opts.Rect = rect

	name := filepath.Base(p.opts.Queue[st.index])
	cand, err := p.opts.Extractor.Extract(ctx, p.doc, trimExt(name), p.opts.Rect, p.opts.DigitFilter)
	switch {
	case errors.Is(err, extract.ErrBackendUnavailable):
		p.opts.Frontend.ClearField()
		p.opts.Frontend.ReportError(err.Error())
	case err != nil:
		p.opts.Frontend.ReportError(fmt.Sprintf("extracting %s: %v", name, err))
	default:
		p.opts.Frontend.SeedField(cand.Text)
	}
	p.renderPreview(ctx)

	if err := p.opts.Store.SaveRect(rect); err != nil {
		p.opts.Frontend.ReportError(fmt.Sprintf("saving configuration: %v", err))
		p.logger.Error("persist rectangle", observability.Error("error", err))
	}
	p.exitCalibration(st.index)
	return nil
}

func (p *Pipeline) finish() {
	p.closeDoc()
	p.state = stateDone{}
	p.opts.Frontend.Finished(p.committed, len(p.opts.Queue))
}

func (p *Pipeline) closeDoc() {
	if p.doc == nil {
		return
	}
	if err := p.doc.Close(); err != nil {
		p.logger.Warn("close document", observability.Error("error", err))
	}
	p.doc = nil
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// copyFile copies src to dst preserving content, permissions, and the
// modification time.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
