// Package coords maps between preview space (pixels of the scaled page image
// shown to the user) and document space (the page's native point grid).
package coords

import (
	"errors"
	"math"
)

// Point is a location in either preview or document space.
type Point struct{ X, Y float64 }

// Rect is an axis-aligned rectangle with X0<=X1 and Y0<=Y1.
type Rect struct{ X0, Y0, X1, Y1 float64 }

// Width returns the horizontal extent of the rectangle.
func (r Rect) Width() float64 { return r.X1 - r.X0 }

// Height returns the vertical extent of the rectangle.
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// IsEmpty reports whether the rectangle has non-positive area.
func (r Rect) IsEmpty() bool { return r.X1 <= r.X0 || r.Y1 <= r.Y0 }

// Contains reports whether p lies inside the rectangle (edges inclusive).
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X0 && p.X <= r.X1 && p.Y >= r.Y0 && p.Y <= r.Y1
}

// Matrix is a 2D affine transform in the row-major form
// [a b c d e f] applied as x' = a*x + c*y + e, y' = b*x + d*y + f.
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

// Translate returns a translation by (tx, ty).
func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }

// Scale returns a scaling by (sx, sy).
func Scale(sx, sy float64) Matrix { return Matrix{sx, 0, 0, sy, 0, 0} }

// Multiply composes m with o so that the result applies m first, then o.
func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2],
		m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2],
		m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4],
		m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

// Transform applies the matrix to a point.
func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

// Inverse returns the inverse transform, or an error for a singular matrix.
func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, errors.New("matrix singular")
	}
	return Matrix{
		m[3] / det, -m[1] / det, -m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det,
		(m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

// fitMargin leaves a visible border around the scaled page.
const fitMargin = 0.95

// Fallback preview size used until the display surface reports a real layout.
const (
	minPreviewSide   = 50.0
	fallbackPreviewW = 800.0
	fallbackPreviewH = 1000.0
)

// FitTransform maps document space onto a centered, uniformly scaled preview.
type FitTransform struct {
	Scale   float64
	OffsetX float64
	OffsetY float64
}

// Fit computes the transform that fits a pageW x pageH page into a
// previewW x previewH surface: uniform scale on both axes with a 5% margin,
// scaled image centered. A degenerate preview size (not yet laid out) is
// replaced by a fixed fallback so the scale stays positive.
func Fit(pageW, pageH, previewW, previewH float64) FitTransform {
	if previewW < minPreviewSide || previewH < minPreviewSide {
		previewW, previewH = fallbackPreviewW, fallbackPreviewH
	}
	scale := math.Min(previewW/pageW, previewH/pageH) * fitMargin
	return FitTransform{
		Scale:   scale,
		OffsetX: (previewW - pageW*scale) / 2,
		OffsetY: (previewH - pageH*scale) / 2,
	}
}

// Matrix returns the document-to-preview transform as an affine matrix.
func (t FitTransform) Matrix() Matrix {
	return Scale(t.Scale, t.Scale).Multiply(Translate(t.OffsetX, t.OffsetY))
}

// ToDocument converts a preview-space point to document space.
func (t FitTransform) ToDocument(p Point) Point {
	return Point{X: (p.X - t.OffsetX) / t.Scale, Y: (p.Y - t.OffsetY) / t.Scale}
}

// ToPreview converts a document-space point to preview space.
func (t FitTransform) ToPreview(p Point) Point {
	return Point{X: p.X*t.Scale + t.OffsetX, Y: p.Y*t.Scale + t.OffsetY}
}

// ToPreviewRect converts a document-space rectangle to preview space.
func (t FitTransform) ToPreviewRect(r Rect) Rect {
	a := t.ToPreview(Point{X: r.X0, Y: r.Y0})
	b := t.ToPreview(Point{X: r.X1, Y: r.Y1})
	return Rect{X0: a.X, Y0: a.Y, X1: b.X, Y1: b.Y}
}

// DragRect converts two drag endpoints in preview space into a normalized
// document-space rectangle clamped to the page. Min/max are taken per axis,
// so the result satisfies X0<=X1 and Y0<=Y1 for any drag direction.
func DragRect(a, b Point, t FitTransform, pageW, pageH float64) Rect {
	da := t.ToDocument(a)
	db := t.ToDocument(b)
	return Rect{
		X0: math.Max(0, math.Min(da.X, db.X)),
		Y0: math.Max(0, math.Min(da.Y, db.Y)),
		X1: math.Min(pageW, math.Max(da.X, db.X)),
		Y1: math.Min(pageH, math.Max(da.Y, db.Y)),
	}
}
