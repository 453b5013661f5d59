package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/wudi/renamekit/coords"
	"github.com/wudi/renamekit/document"
	"github.com/wudi/renamekit/extract"
)

type fakeDoc struct {
	pageW, pageH float64
	closed       bool
}

func (d *fakeDoc) PageCount() int { return 1 }

func (d *fakeDoc) PageSize() (float64, float64) { return d.pageW, d.pageH }

func (d *fakeDoc) TextInRegion(coords.Rect) (string, error) { return "", nil }

func (d *fakeDoc) ScanImage(context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}
func (d *fakeDoc) RenderPreview(context.Context, int, int) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 10, 10)), nil
}
func (d *fakeDoc) Close() error {
	d.closed = true
	return nil
}

type fakeProvider struct {
	failing map[string]bool
	opened  []*fakeDoc
}

func (p *fakeProvider) Open(path string) (document.Document, error) {
	if p.failing[filepath.Base(path)] {
		return nil, errors.New("corrupt document")
	}
	d := &fakeDoc{pageW: 595, pageH: 842}
	p.opened = append(p.opened, d)
	return d, nil
}

type fakeExtractor struct {
	candidates map[string]extract.Candidate
	err        error
	calls      []coords.Rect
}

func (e *fakeExtractor) Extract(_ context.Context, _ document.Document, name string, rect coords.Rect, _ int) (extract.Candidate, error) {
	e.calls = append(e.calls, rect)
	if e.err != nil {
		return extract.Candidate{}, e.err
	}
	return e.candidates[name], nil
}

type fakeStore struct {
	saved []coords.Rect
	err   error
}

func (s *fakeStore) SaveRect(rect coords.Rect) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, rect)
	return nil
}

type fakeLog struct {
	entries []string
	err     error
}

func (l *fakeLog) Append(id string) error {
	if l.err != nil {
		return l.err
	}
	l.entries = append(l.entries, id)
	return nil
}

type fakeFrontend struct {
	field     string
	seeded    []string
	cleared   int
	statuses  []string
	warnings  []string
	errors    []string
	overwrite bool
	asked     []string
	finished  bool
}

func (f *fakeFrontend) ShowStatus(text string) { f.statuses = append(f.statuses, text) }

func (f *fakeFrontend) ShowPreview(image.Image, coords.Rect) {}

func (f *fakeFrontend) SeedField(text string) {
	f.field = text
	f.seeded = append(f.seeded, text)
}
func (f *fakeFrontend) ClearField() {
	f.field = ""
	f.cleared++
}
func (f *fakeFrontend) FieldValue() string { return f.field }

func (f *fakeFrontend) Warn(msg string) { f.warnings = append(f.warnings, msg) }

func (f *fakeFrontend) ReportError(msg string) {
	f.errors = append(f.errors, msg)
}
func (f *fakeFrontend) ConfirmOverwrite(name string) bool {
	f.asked = append(f.asked, name)
	return f.overwrite
}
func (f *fakeFrontend) Finished(int, int) { f.finished = true }

type harness struct {
	p     *Pipeline
	prov  *fakeProvider
	ext   *fakeExtractor
	store *fakeStore
	log   *fakeLog
	front *fakeFrontend
	inDir string
	out   string
}

func newHarness(t *testing.T, names []string, candidates map[string]extract.Candidate) *harness {
	t.Helper()
	inDir := t.TempDir()
	outDir := t.TempDir()
	var queue []string
	for _, n := range names {
		path := filepath.Join(inDir, n)
		if err := os.WriteFile(path, []byte("%PDF "+n), 0o644); err != nil {
			t.Fatalf("seed %s: %v", n, err)
		}
		queue = append(queue, path)
	}
	h := &harness{
		prov:  &fakeProvider{failing: map[string]bool{}},
		ext:   &fakeExtractor{candidates: candidates},
		store: &fakeStore{},
		log:   &fakeLog{},
		front: &fakeFrontend{},
		inDir: inDir,
		out:   outDir,
	}
	p, err := New(Options{
		Queue:       queue,
		OutputDir:   outDir,
		Rect:        coords.Rect{X0: 50, Y0: 50, X1: 250, Y1: 100},
		DigitFilter: 0,
		Provider:    h.prov,
		Extractor:   h.ext,
		Store:       h.store,
		Log:         h.log,
		Frontend:    h.front,
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	h.p = p
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.p.Start(context.Background(), 800, 1000); err != nil {
		t.Fatalf("start: %v", err)
	}
}

func TestEmptyQueueIsDoneImmediately(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.start(t)
	if h.p.State() != "done" {
		t.Fatalf("state = %s", h.p.State())
	}
	if !h.front.finished {
		t.Fatalf("frontend not notified")
	}
	if len(h.log.entries) != 0 {
		t.Fatalf("log written for empty queue")
	}
	if entries, _ := os.ReadDir(h.out); len(entries) != 0 {
		t.Fatalf("output written for empty queue")
	}
}

func TestDisplaySeedsCandidateAndStatus(t *testing.T) {
	h := newHarness(t, []string{"a.pdf", "b.pdf"}, map[string]extract.Candidate{
		"a": {Text: "123456", Digits: "123456", Valid: true},
	})
	h.start(t)
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
	if h.front.field != "123456" {
		t.Fatalf("field = %q", h.front.field)
	}
	if got := h.front.statuses[len(h.front.statuses)-1]; got != "processing: a.pdf (1/2)" {
		t.Fatalf("status = %q", got)
	}
}

func TestCommitCopiesLogsAndAdvances(t *testing.T) {
	h := newHarness(t, []string{"a.pdf", "b.pdf"}, map[string]extract.Candidate{
		"a": {Text: "555", Digits: "555", Valid: true},
		"b": {Text: "777", Digits: "777", Valid: true},
	})
	h.start(t)
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(h.out, "555.pdf"))
	if err != nil {
		t.Fatalf("output missing: %v", err)
	}
	if string(data) != "%PDF a.pdf" {
		t.Fatalf("copied content = %q", data)
	}
	if len(h.log.entries) != 1 || h.log.entries[0] != "555" {
		t.Fatalf("log entries = %v", h.log.entries)
	}
	if h.p.State() != "displaying(1)" {
		t.Fatalf("state = %s", h.p.State())
	}
	if !h.prov.opened[0].closed {
		t.Fatalf("document handle not closed before copy")
	}
}

func TestCommitBlockedOnEmptyField(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "   ", Digits: "", Valid: false},
	})
	h.start(t)
	h.front.field = "   "
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
	if len(h.front.warnings) == 0 {
		t.Fatalf("no warning for empty field")
	}
	if entries, _ := os.ReadDir(h.out); len(entries) != 0 {
		t.Fatalf("file copied despite empty field")
	}
	if len(h.log.entries) != 0 {
		t.Fatalf("log written despite empty field")
	}
}

func TestCommitBlockedOnInvalidMarker(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "(5 digits: 12345)", Digits: "12345", Valid: false},
	})
	h.start(t)
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if h.p.State() != "displaying(0)" || len(h.front.warnings) == 0 {
		t.Fatalf("marked-invalid field must block commit, state=%s", h.p.State())
	}
}

func TestDeclinedOverwriteIsNoOp(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "000123", Digits: "000123", Valid: true},
	})
	existing := filepath.Join(h.out, "000123.pdf")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed existing: %v", err)
	}
	h.start(t)
	h.front.overwrite = false
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "old" {
		t.Fatalf("existing file replaced: %q", data)
	}
	if len(h.log.entries) != 0 {
		t.Fatalf("log written on declined overwrite")
	}
	if len(h.front.asked) != 1 {
		t.Fatalf("overwrite confirmation not requested")
	}
}

func TestConfirmedOverwriteReplaces(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "000123", Digits: "000123", Valid: true},
	})
	existing := filepath.Join(h.out, "000123.pdf")
	if err := os.WriteFile(existing, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed existing: %v", err)
	}
	h.start(t)
	h.front.overwrite = true
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	data, _ := os.ReadFile(existing)
	if string(data) != "%PDF a.pdf" {
		t.Fatalf("file not replaced: %q", data)
	}
	if h.p.State() != "done" {
		t.Fatalf("state = %s", h.p.State())
	}
}

func TestSkipOnOpenError(t *testing.T) {
	h := newHarness(t, []string{"a.pdf", "b.pdf"}, map[string]extract.Candidate{
		"b": {Text: "42", Digits: "42", Valid: true},
	})
	h.prov.failing["a.pdf"] = true
	h.start(t)
	if h.p.State() != "displaying(1)" {
		t.Fatalf("state = %s, want skip to document 1", h.p.State())
	}
	if len(h.front.errors) == 0 {
		t.Fatalf("skip not reported")
	}
	if h.front.field != "42" {
		t.Fatalf("field = %q", h.front.field)
	}
}

func TestAllDocumentsBadReachesDone(t *testing.T) {
	h := newHarness(t, []string{"a.pdf", "b.pdf"}, nil)
	h.prov.failing["a.pdf"] = true
	h.prov.failing["b.pdf"] = true
	h.start(t)
	if h.p.State() != "done" {
		t.Fatalf("state = %s", h.p.State())
	}
	if len(h.front.errors) != 2 {
		t.Fatalf("errors = %v", h.front.errors)
	}
}

func TestExtractionFailureSkipsDocument(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, nil)
	h.ext.err = errors.New("page scan of a: unexpected EOF")
	h.start(t)
	if h.p.State() != "done" {
		t.Fatalf("state = %s, want the bad document skipped", h.p.State())
	}
	if len(h.front.errors) != 1 {
		t.Fatalf("errors = %v", h.front.errors)
	}
	if entries, _ := os.ReadDir(h.out); len(entries) != 0 {
		t.Fatalf("output written for failed extraction")
	}
}

func TestCopyFailureReturnsErrorOnce(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "8080", Digits: "8080", Valid: true},
	})
	h.start(t)
	h.p.opts.OutputDir = filepath.Join(h.out, "missing", "deep")
	err := h.p.Commit(context.Background())
	if err == nil {
		t.Fatalf("commit into a missing directory must fail")
	}
	if len(h.front.errors) != 0 {
		t.Fatalf("copy failure reported twice: returned error plus %v", h.front.errors)
	}
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s, want the document to stay current", h.p.State())
	}
	if len(h.log.entries) != 0 {
		t.Fatalf("log written for failed copy")
	}
}

func TestBackendUnavailableClearsFieldAndStays(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, nil)
	h.ext.err = fmt.Errorf("%w: tesseract missing", extract.ErrBackendUnavailable)
	h.start(t)
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
	if h.front.cleared == 0 || len(h.front.errors) == 0 {
		t.Fatalf("backend failure not surfaced: cleared=%d errors=%v", h.front.cleared, h.front.errors)
	}
}

func TestCommitDuringCalibrationOnlyExits(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "999", Digits: "999", Valid: true},
	})
	h.start(t)
	if err := h.p.ToggleCalibration(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if h.p.State() != "calibrating(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
	if err := h.p.Commit(context.Background()); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if h.p.State() != "displaying(0)" {
		t.Fatalf("commit during calibration must only exit it, state=%s", h.p.State())
	}
	if entries, _ := os.ReadDir(h.out); len(entries) != 0 {
		t.Fatalf("commit happened during calibration")
	}
}

func TestDragReleaseRecalibratesAndPersists(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, map[string]extract.Candidate{
		"a": {Text: "31415", Digits: "31415", Valid: true},
	})
	h.start(t)
	if err := h.p.ToggleCalibration(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	callsBefore := len(h.ext.calls)
	ft := coords.Fit(595, 842, 800, 1000)
	a := ft.ToPreview(coords.Point{X: 10, Y: 10})
	b := ft.ToPreview(coords.Point{X: 110, Y: 60})
	if err := h.p.DragRelease(context.Background(), a, b); err != nil {
		t.Fatalf("drag release: %v", err)
	}
	want := coords.Rect{X0: 10, Y0: 10, X1: 110, Y1: 60}
	got := h.p.Rect()
	const eps = 1e-6
	for _, d := range []float64{got.X0 - want.X0, got.Y0 - want.Y0, got.X1 - want.X1, got.Y1 - want.Y1} {
		if d > eps || d < -eps {
			t.Fatalf("rect = %+v, want %+v", got, want)
		}
	}
	if len(h.store.saved) != 1 {
		t.Fatalf("rect not persisted: %v", h.store.saved)
	}
	if len(h.ext.calls) != callsBefore+1 {
		t.Fatalf("no immediate re-extract after calibration")
	}
	if h.ext.calls[len(h.ext.calls)-1] != got {
		t.Fatalf("re-extract used rect %+v", h.ext.calls[len(h.ext.calls)-1])
	}
	if h.p.State() != "displaying(0)" {
		t.Fatalf("state = %s", h.p.State())
	}
}

func TestPersistFailureKeepsRectActive(t *testing.T) {
	h := newHarness(t, []string{"a.pdf"}, nil)
	h.start(t)
	h.store.err = errors.New("disk full")
	if err := h.p.ToggleCalibration(); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	ft := coords.Fit(595, 842, 800, 1000)
	a := ft.ToPreview(coords.Point{X: 20, Y: 20})
	b := ft.ToPreview(coords.Point{X: 80, Y: 70})
	if err := h.p.DragRelease(context.Background(), a, b); err != nil {
		t.Fatalf("drag release: %v", err)
	}
	if h.p.Rect().X1-h.p.Rect().X0 < 59 {
		t.Fatalf("in-memory rect lost after persist failure: %+v", h.p.Rect())
	}
	found := false
	for _, e := range h.front.errors {
		if len(e) > 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("persist failure not surfaced")
	}
}

func TestQueueOrderingAndFiltering(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.PDF", "a.pdf", "Z.pdf", "notes.txt", "c.pdf"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	queue, err := BuildQueue(dir)
	if err != nil {
		t.Fatalf("build queue: %v", err)
	}
	var names []string
	for _, q := range queue {
		names = append(names, filepath.Base(q))
	}
	// Case-insensitive order: "Z.pdf" sorts last, not before "a.pdf".
	want := []string{"a.pdf", "b.PDF", "c.pdf", "Z.pdf"}
	if len(names) != len(want) {
		t.Fatalf("queue = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("queue = %v, want %v", names, want)
		}
	}
}

func TestBuildQueueMissingDir(t *testing.T) {
	if _, err := BuildQueue(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatalf("expected error for missing input directory")
	}
}
