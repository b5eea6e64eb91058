package media

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// MaxCoverSide bounds both sides of an embedded cover.
const MaxCoverSide = 1400

// PrepareCover decodes src, flattens it onto white (RGB, no alpha), shrinks it
// to fit MaxCoverSide keeping the aspect ratio and writes a JPEG to dst.
// Smaller images are not upscaled.
func PrepareCover(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decode cover %s: %w", src, err)
	}
	img = imaging.Fit(img, MaxCoverSide, MaxCoverSide, imaging.Lanczos)

	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	flat := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)

	if err := imaging.Save(flat, dst, imaging.JPEGQuality(90)); err != nil {
		return fmt.Errorf("encode cover %s: %w", dst, err)
	}
	return nil
}
