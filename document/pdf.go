package document

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	xdraw "golang.org/x/image/draw"

	"github.com/wudi/renamekit/coords"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// PDFProvider opens PDF files through pdfcpu.
type PDFProvider struct {
	conf *model.Configuration
}

// NewPDFProvider returns a provider with pdfcpu's default configuration.
func NewPDFProvider() *PDFProvider {
	return &PDFProvider{conf: model.NewDefaultConfiguration()}
}

// Open reads, validates, and optimizes the PDF at path.
func (p *PDFProvider) Open(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	ctx, err := api.ReadValidateAndOptimize(f, p.conf)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pdfcpu read %s: %w", path, err)
	}
	if ctx.PageCount < 1 {
		f.Close()
		return nil, fmt.Errorf("%s: document has no pages", path)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: page dimensions: %w", path, err)
	}
	if len(dims) == 0 {
		f.Close()
		return nil, fmt.Errorf("%s: no page dimensions", path)
	}
	return &pdfDocument{
		file:  f,
		ctx:   ctx,
		pageW: dims[0].Width,
		pageH: dims[0].Height,
	}, nil
}

type pdfDocument struct {
	file  *os.File
	ctx   *model.Context
	pageW float64
	pageH float64

	scan image.Image // lazily decoded first-page raster
}

func (d *pdfDocument) PageCount() int { return d.ctx.PageCount }

func (d *pdfDocument) PageSize() (w, h float64) { return d.pageW, d.pageH }

// TextInRegion extracts the first page's content stream and returns shown
// text anchored inside rect. Only page one is consulted.
func (d *pdfDocument) TextInRegion(rect coords.Rect) (string, error) {
	r, err := pdfcpu.ExtractPageContent(d.ctx, 1)
	if err != nil {
		return "", fmt.Errorf("extract page content: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read page content: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	return regionText(parseContentSpans(data), rect, d.pageH), nil
}

// ScanImage returns the largest raster image embedded on the first page.
// Scanned documents carry their whole page as one such image.
func (d *pdfDocument) ScanImage(ctx context.Context) (image.Image, error) {
	if d.scan != nil {
		return d.scan, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	images, err := pdfcpu.ExtractPageImages(d.ctx, 1, false)
	if err != nil {
		return nil, fmt.Errorf("extract page images: %w", err)
	}
	var best image.Image
	bestArea := 0
	for _, pi := range images {
		img, _, err := image.Decode(pi)
		if err != nil {
			continue
		}
		b := img.Bounds()
		if area := b.Dx() * b.Dy(); area > bestArea {
			best, bestArea = img, area
		}
	}
	if best == nil {
		return nil, ErrNoRaster
	}
	d.scan = best
	return best, nil
}

// RenderPreview scales the first page's raster content to fit maxW x maxH.
// Pages without raster content render as a blank page at the right aspect
// ratio, so calibration stays possible on text-only documents.
func (d *pdfDocument) RenderPreview(ctx context.Context, maxW, maxH int) (image.Image, error) {
	src, err := d.ScanImage(ctx)
	if errors.Is(err, ErrNoRaster) {
		src = blankPage(d.pageW, d.pageH)
	} else if err != nil {
		return nil, err
	}
	ft := coords.Fit(float64(src.Bounds().Dx()), float64(src.Bounds().Dy()), float64(maxW), float64(maxH))
	dstW := int(float64(src.Bounds().Dx()) * ft.Scale)
	dstH := int(float64(src.Bounds().Dy()) * ft.Scale)
	if dstW < 1 || dstH < 1 {
		return nil, fmt.Errorf("preview size %dx%d too small", maxW, maxH)
	}
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst, nil
}

func (d *pdfDocument) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func blankPage(pageW, pageH float64) image.Image {
	w, h := int(pageW), int(pageH)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}
