// Package extract pulls a candidate identifier out of a fixed region on a
// document's first page, preferring the embedded text layer and falling back
// to OCR of the scanned page image.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wudi/renamekit/coords"
	"github.com/wudi/renamekit/document"
	"github.com/wudi/renamekit/observability"
	"github.com/wudi/renamekit/ocr"
)

// ErrBackendUnavailable marks recognition-service failures. It is distinct
// from "no digits found": callers must surface it instead of treating the
// document as having an empty identifier.
var ErrBackendUnavailable = errors.New("recognition backend unavailable")

// InvalidPrefix starts every candidate that failed validation. The commit
// precondition rejects field values carrying it.
const InvalidPrefix = "("

// Candidate is the outcome of one region extraction.
type Candidate struct {
	// Text seeds the editable filename field: the digits when valid, a
	// parenthesized diagnostic when invalid, empty when nothing was found.
	Text string
	// Digits is the raw digit-run concatenation before validation.
	Digits string
	// Valid reports whether Digits satisfies the digit-count filter.
	Valid bool
}

// Extractor runs region extraction against a recognition engine.
type Extractor struct {
	Engine    ocr.Engine
	Languages []string
	// DebugDir, when set, receives the binarized OCR crop for each document.
	DebugDir string
	Logger   observability.Logger
}

// New returns an extractor using the given engine and a nop logger.
func New(engine ocr.Engine) *Extractor {
	return &Extractor{Engine: engine, Languages: []string{"eng"}, Logger: observability.NopLogger{}}
}

// Extract produces the candidate identifier for rect on doc's first page.
// name labels the document in logs and debug artifacts. Embedded text wins
// when it contains digits; otherwise the page scan is cropped to rect,
// binarized, and recognized. Engine failures return ErrBackendUnavailable
// wrapped with detail.
func (e *Extractor) Extract(ctx context.Context, doc document.Document, name string, rect coords.Rect, digitFilter int) (Candidate, error) {
	text, err := doc.TextInRegion(rect)
	if err != nil {
		return Candidate{}, fmt.Errorf("text layer of %s: %w", name, err)
	}
	digits := DigitRuns(text)
	if digits == "" {
		recognized, err := e.recognizeRegion(ctx, doc, name, rect)
		if err != nil {
			return Candidate{}, err
		}
		digits = DigitRuns(recognized)
	}
	return Validate(digits, digitFilter), nil
}

func (e *Extractor) recognizeRegion(ctx context.Context, doc document.Document, name string, rect coords.Rect) (string, error) {
	img, err := doc.ScanImage(ctx)
	if errors.Is(err, document.ErrNoRaster) {
		// No raster content and no text layer: nothing to recognize.
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("page scan of %s: %w", name, err)
	}
	pageW, pageH := doc.PageSize()
	crop, dpi, err := prepareCrop(img, rect, pageW, pageH)
	if err != nil {
		return "", fmt.Errorf("crop region of %s: %w", name, err)
	}
	e.saveDebugImage(name, crop)

	in, err := ocr.InputFromImage(crop, name,
		ocr.WithLanguages(e.Languages...),
		ocr.WithDPI(dpi),
		ocr.WithTesseractPSM(6),
		ocr.WithTesseractDigits(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	res, err := e.Engine.Recognize(ctx, in)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if conf, n := meanWordConfidence(res); n > 0 && conf < lowConfidence {
		e.logger().Warn("low recognition confidence",
			observability.String("name", name),
			observability.Int("words", n),
			observability.Int("confidence", int(conf)))
	}
	return res.PlainText, nil
}

// lowConfidence is the mean word confidence below which a recognition result
// is flagged for manual review.
const lowConfidence = 60.0

// meanWordConfidence averages the per-word confidences the engine reported.
// The second return is the word count; zero means no structured layout.
func meanWordConfidence(res ocr.Result) (float64, int) {
	var sum float64
	n := 0
	for _, blk := range res.Blocks {
		for _, line := range blk.Lines {
			for _, w := range line.Words {
				sum += w.Confidence
				n++
			}
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

// DigitRuns concatenates every maximal run of decimal digits in s, in order,
// discarding all other characters. This normalization is deliberately lossy:
// separators inside an identifier are not preserved.
func DigitRuns(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// Validate applies the digit-count filter to a normalized digit string.
// A filter of zero accepts any digit count, including zero; the empty
// candidate is still unusable for commit because the field seed is empty.
func Validate(digits string, digitFilter int) Candidate {
	c := Candidate{Digits: digits}
	switch {
	case digits == "":
		// Empty recognized text yields an empty candidate. The empty string
		// technically passes a disabled filter but still fails the commit
		// precondition.
		c.Valid = digitFilter == 0
		c.Text = ""
	case digitFilter > 0 && len(digits) != digitFilter:
		c.Valid = false
		c.Text = fmt.Sprintf("%s%d digits: %s)", InvalidPrefix, len(digits), digits)
	default:
		c.Valid = true
		c.Text = digits
	}
	return c
}
