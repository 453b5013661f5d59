package tesseract

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"os/exec"
	"strings"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/renamekit/ocr"
)

// ensureTesseractAvailable checks that the tesseract binary is reachable.
func ensureTesseractAvailable(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tesseract"); err != nil {
		t.Skip("tesseract not installed in PATH")
	}
}

func textImage(text string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 240, 80))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.Black,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(text)
	return img
}

func TestEngineRecognize(t *testing.T) {
	ensureTesseractAvailable(t)

	in, err := ocr.InputFromImage(textImage("1234 5678"), "t1",
		ocr.WithLanguages("eng"),
		ocr.WithDPI(70),
		ocr.WithTesseractPSM(6),
	)
	if err != nil {
		t.Fatalf("build input: %v", err)
	}

	res, err := NewEngine().Recognize(context.Background(), in)
	if err != nil {
		t.Fatalf("recognize: %v", err)
	}
	if res.InputID != "t1" {
		t.Fatalf("unexpected input id %q", res.InputID)
	}
	if !strings.Contains(res.PlainText, "1234") {
		t.Logf("recognized %q; tolerating OCR noise but expecting digits", res.PlainText)
	}
}

func TestEngineRecognizeCanceled(t *testing.T) {
	in, err := ocr.InputFromImage(textImage("42"), "t2")
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEngine().Recognize(ctx, in); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestCropImageRejectsOutOfBounds(t *testing.T) {
	in, err := ocr.InputFromImage(textImage("7"), "t3")
	if err != nil {
		t.Fatalf("build input: %v", err)
	}
	region := &ocr.Region{X: 5000, Y: 5000, Width: 10, Height: 10}
	if _, err := cropImage(in.Image, region); err == nil {
		t.Fatalf("expected error for region outside image bounds")
	}
}
