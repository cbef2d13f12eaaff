package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"golang.org/x/image/draw"
)

// JPEGQuality is the quality every normalized image is re-encoded at.
const JPEGQuality = 95

// MaxPixels caps the decoded size of an image. A few MB of compressed PNG can
// declare dimensions that would need gigabytes once decoded.
const MaxPixels = 89_478_485

var (
	// ErrEncodeImage is returned when image bytes can't be turned into a JPEG.
	ErrEncodeImage = errors.New("error encoding image")

	ErrTooManyPixels = errors.New("image has too many pixels")
)

// Normalize decodes data, flattens it to an opaque three-channel image and
// re-encodes it as a JPEG.
func Normalize(data []byte) (Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrEncodeImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return Image{}, fmt.Errorf("%w: %w: %dx%d, maximum is %d", ErrEncodeImage, ErrTooManyPixels, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrEncodeImage, err)
	}

	img := Flatten(src)
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrEncodeImage, err)
	}

	b := img.Bounds()
	return Image{JPEG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// Flatten returns img as an opaque three-channel image of the same size.
// Images with an alpha channel are composited onto white using alpha as the
// mask, other non-RGB images (gray, CMYK, opaque palettes) are converted.
func Flatten(img image.Image) image.Image {
	b := img.Bounds()
	switch {
	case hasAlpha(img):
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
		return dst
	case isRGB(img):
		return img
	default:
		dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
}

func hasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.Alpha, *image.Alpha16, *image.NYCbCrA:
		return true
	case *image.Paletted:
		// Only palettes with a translucent entry carry alpha (PNG tRNS)
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	}

	switch img.ColorModel() {
	case color.NRGBAModel, color.NRGBA64Model, color.RGBAModel, color.RGBA64Model, color.AlphaModel, color.Alpha16Model, color.NYCbCrAModel:
		return true
	}
	// Any other image that knows it isn't opaque
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

func isRGB(img image.Image) bool {
	_, ok := img.(*image.YCbCr)
	return ok
}
