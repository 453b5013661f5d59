// Package document provides access to paged documents: page geometry,
// embedded first-page text confined to a region, and raster content for
// preview and OCR.
package document

import (
	"context"
	"errors"
	"image"

	"github.com/wudi/renamekit/coords"
)

// ErrNoRaster reports that the first page carries no decodable raster image.
// Text-only pages hit this in normal operation; callers that fall back to OCR
// treat it as "nothing to recognize" rather than a failure.
var ErrNoRaster = errors.New("no raster image on first page")

// Document is an open paged document. Coordinates are document-space points
// with the origin in the upper-left corner of the first page.
type Document interface {
	// PageCount returns the number of pages.
	PageCount() int
	// PageSize returns the first page's width and height in points.
	PageSize() (w, h float64)
	// TextInRegion returns embedded text on the first page whose anchor lies
	// inside rect, in reading order. An empty string means the page carries
	// no text layer in that region; it is not an error.
	TextInRegion(rect coords.Rect) (string, error)
	// ScanImage returns the first page's dominant raster image, typically the
	// full-page scan of a scanned document. A page without one returns an
	// error wrapping ErrNoRaster.
	ScanImage(ctx context.Context) (image.Image, error)
	// RenderPreview returns a raster of the first page scaled to fit within
	// maxW x maxH pixels.
	RenderPreview(ctx context.Context, maxW, maxH int) (image.Image, error)
	// Close releases the underlying file. The document must be closed before
	// its source file is copied elsewhere.
	Close() error
}

// Provider opens documents by path.
type Provider interface {
	Open(path string) (Document, error)
}
