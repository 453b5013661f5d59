package extract

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"path/filepath"

	"github.com/disintegration/imaging"

	"github.com/wudi/renamekit/coords"
	"github.com/wudi/renamekit/observability"
)

// binarizeThreshold separates ink from paper in the OCR crop. Scans are
// assumed dark-on-light.
const binarizeThreshold = 200

// prepareCrop maps rect from document space onto the page scan, crops it,
// and binarizes the crop for recognition. It returns the processed image and
// the scan's effective DPI.
func prepareCrop(scan image.Image, rect coords.Rect, pageW, pageH float64) (image.Image, int, error) {
	if rect.IsEmpty() {
		return nil, 0, fmt.Errorf("extraction rectangle is empty")
	}
	b := scan.Bounds()
	sx := float64(b.Dx()) / pageW
	sy := float64(b.Dy()) / pageH
	px := image.Rect(
		b.Min.X+int(math.Floor(rect.X0*sx)),
		b.Min.Y+int(math.Floor(rect.Y0*sy)),
		b.Min.X+int(math.Ceil(rect.X1*sx)),
		b.Min.Y+int(math.Ceil(rect.Y1*sy)),
	).Intersect(b)
	if px.Empty() {
		return nil, 0, fmt.Errorf("rectangle maps outside the page scan")
	}
	crop := imaging.Crop(scan, px)
	gray := imaging.Grayscale(crop)
	bw := imaging.AdjustFunc(gray, func(c color.NRGBA) color.NRGBA {
		if c.R < binarizeThreshold {
			return color.NRGBA{A: 255}
		}
		return color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	})
	dpi := int(math.Round(sx * 72))
	return bw, dpi, nil
}

// saveDebugImage dumps the processed crop for inspection. Failures are
// logged, never fatal.
func (e *Extractor) saveDebugImage(name string, img image.Image) {
	if e.DebugDir == "" {
		return
	}
	path := filepath.Join(e.DebugDir, name+".png")
	if err := imaging.Save(img, path); err != nil {
		e.logger().Warn("could not save OCR debug image",
			observability.String("path", path),
			observability.Error("error", err))
	}
}

func (e *Extractor) logger() observability.Logger {
	if e.Logger == nil {
		return observability.NopLogger{}
	}
	return e.Logger
}
