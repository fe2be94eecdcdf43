package loaders

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG decoder
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"  // BMP decoder
	_ "golang.org/x/image/tiff" // TIFF decoder
	_ "golang.org/x/image/webp" // WebP decoder

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/material"
)

// DisplayGamma is the gamma of 8-bit images, both decoded and encoded
const DisplayGamma = 2.2

// LoadImage loads a texture as linear RGB. Radiance .hdr files are read as
// is; 8 and 16 bit formats (PNG, JPEG, BMP, TIFF, WebP) are converted from
// display gamma. Rows are stored bottom-up so v grows upward.
func LoadImage(filename string) (*material.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".hdr") {
		img, err := DecodeHDR(bufio.NewReader(file))
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
		}
		return img, nil
	}

	img, err := DecodeImage(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return img, nil
}

// DecodeImage decodes any registered image format into linear RGB
func DecodeImage(r io.Reader) (*material.Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	img := material.NewImage(width, height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := src.At(x+bounds.Min.X, y+bounds.Min.Y).RGBA()
			// RGBA returns uint32 in [0, 65535]
			c := core.NewVec3(
				float64(r)/65535.0,
				float64(g)/65535.0,
				float64(b)/65535.0,
			)
			img.SetPixel(x, height-1-y, linearize(c))
		}
	}
	return img, nil
}

func linearize(c core.Vec3) core.Vec3 {
	return core.NewVec3(
		math.Pow(c.X, DisplayGamma),
		math.Pow(c.Y, DisplayGamma),
		math.Pow(c.Z, DisplayGamma),
	)
}

// ToRGBA converts a rendered image to 8-bit display colors: the exposure
// scales the radiance, 1 - exp(-c) compresses it, then gamma 2.2 is
// applied. Row 0 is the top of the picture.
func ToRGBA(img *material.Image, exposure float64) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, img.Width(), img.Height()))
	for y := 0; y < img.Height(); y++ {
		for x := 0; x < img.Width(); x++ {
			c := img.Pixel(x, y).Multiply(exposure)
			if !c.IsFinite() {
				c = core.Vec3{}
			}
			c = c.Max(core.Vec3{}).ToneMap().GammaCorrect(DisplayGamma).Clamp(0, 1)
			out.SetRGBA(x, y, color.RGBA{
				R: uint8(math.Round(c.X * 255)),
				G: uint8(math.Round(c.Y * 255)),
				B: uint8(math.Round(c.Z * 255)),
				A: 255,
			})
		}
	}
	return out
}

// EncodePNG writes the display version of img as PNG
func EncodePNG(w io.Writer, img *material.Image, exposure float64) error {
	return png.Encode(w, ToRGBA(img, exposure))
}

// PNGBytes returns the display version of img as PNG bytes
func PNGBytes(img *material.Image, exposure float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, exposure); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SavePNG writes the display version of img to filename. The file is
// written to a temporary name first so readers never see a partial image.
func SavePNG(filename string, img *material.Image, exposure float64) error {
	tmp := filename + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if err := EncodePNG(file, img, exposure); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filename)
}
