package builder

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register decoders
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/pboffice01/PDFGeneral/ir/semantic"
)

// ImageFromFile loads an image from a file path and converts it to *semantic.Image.
func ImageFromFile(path string) (*semantic.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ImageFromBytes(data)
}

// ImageFromBytes decodes PNG, JPEG, GIF, BMP, TIFF or WebP data.
func ImageFromBytes(data []byte) (*semantic.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image header: %w", err)
	}
	if err := checkImageBounds(cfg.Width, cfg.Height); err != nil {
		return nil, fmt.Errorf("%s image: %w", format, err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", format, err)
	}
	return FromImage(img), nil
}

// Decoded images are expanded to 8-bit RGB plus alpha, so the header is
// checked before allocating.
const (
	maxImageSide         = 32768
	maxImagePixels int64 = 64 << 20
)

func checkImageBounds(w, h int) error {
	switch {
	case w <= 0 || h <= 0:
		return fmt.Errorf("empty image (%d x %d)", w, h)
	case w > maxImageSide || h > maxImageSide:
		return fmt.Errorf("image side exceeds %d (%d x %d)", maxImageSide, w, h)
	case int64(w)*int64(h) > maxImagePixels:
		return fmt.Errorf("image has %d pixels, limit %d", int64(w)*int64(h), maxImagePixels)
	}
	return nil
}

// FromImage converts a standard Go image.Image to *semantic.Image.
// Transparency becomes a DeviceGray soft mask.
func FromImage(src image.Image) *semantic.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(nrgba, nrgba.Bounds(), src, bounds.Min, draw.Src)

	pixels := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false
	for i := 0; i < w*h; i++ {
		offset := i * 4
		pixels = append(pixels, nrgba.Pix[offset], nrgba.Pix[offset+1], nrgba.Pix[offset+2])
		a := nrgba.Pix[offset+3]
		alpha = append(alpha, a)
		if a < 255 {
			hasAlpha = true
		}
	}

	img := &semantic.Image{
		Subtype:          "Image",
		Width:            w,
		Height:           h,
		ColorSpace:       "DeviceRGB",
		BitsPerComponent: 8,
		Data:             pixels,
	}
	if hasAlpha {
		img.SMask = &semantic.Image{
			Subtype:          "Image",
			Width:            w,
			Height:           h,
			ColorSpace:       "DeviceGray",
			BitsPerComponent: 8,
			Data:             alpha,
		}
	}
	return img
}
