package pipeline

import (
	"image"

	"github.com/wudi/renamekit/coords"
)

// Frontend is the narrow user-facing surface the pipeline drives. Widget
// layout and event wiring live behind it; the pipeline only pushes state
// out and pulls the edited filename back in.
type Frontend interface {
	// ShowStatus replaces the status indicator text.
	ShowStatus(text string)
	// ShowPreview displays the rendered page with the extraction rectangle,
	// both in preview space.
	ShowPreview(img image.Image, rect coords.Rect)
	// SeedField fills the editable filename field, selected for immediate
	// overwrite.
	SeedField(text string)
	// ClearField empties the filename field.
	ClearField()
	// FieldValue returns the current (possibly user-edited) field content.
	FieldValue() string
	// Warn shows a non-fatal validation message.
	Warn(msg string)
	// ReportError shows a per-document or persistence error.
	ReportError(msg string)
	// ConfirmOverwrite asks whether an existing output file may be replaced.
	ConfirmOverwrite(name string) bool
	// Finished reports normal termination after the queue is exhausted.
	Finished(committed, total int)
}
