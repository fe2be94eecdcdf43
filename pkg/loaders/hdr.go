package loaders

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/erbuka/pathtracing/pkg/core"
	"github.com/erbuka/pathtracing/pkg/material"
)

// ErrInvalidHDR is returned for malformed Radiance files
var ErrInvalidHDR = errors.New("loaders: invalid Radiance HDR file")

// DecodeHDR reads a Radiance RGBE image with flat or run-length encoded
// scanlines. Only the standard "-Y height +X width" orientation is accepted.
func DecodeHDR(r *bufio.Reader) (*material.Image, error) {
	magic, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	if magic != "#?RADIANCE" && magic != "#?RGBE" {
		return nil, fmt.Errorf("%w: bad signature %q", ErrInvalidHDR, magic)
	}

	for {
		line, err := readHeaderLine(r)
		if err != nil {
			return nil, err
		}
		if line == "" {
			break
		}
		if format, ok := strings.CutPrefix(line, "FORMAT="); ok && format != "32-bit_rle_rgbe" {
			return nil, fmt.Errorf("%w: unsupported format %q", ErrInvalidHDR, format)
		}
	}

	resolution, err := readHeaderLine(r)
	if err != nil {
		return nil, err
	}
	var width, height int
	if _, err := fmt.Sscanf(resolution, "-Y %d +X %d", &height, &width); err != nil {
		return nil, fmt.Errorf("%w: unsupported resolution line %q", ErrInvalidHDR, resolution)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrInvalidHDR, width, height)
	}

	img := material.NewImage(width, height)
	scanline := make([]byte, width*4)
	for row := 0; row < height; row++ {
		if err := readScanline(r, scanline, width); err != nil {
			return nil, fmt.Errorf("%w: scanline %d: %v", ErrInvalidHDR, row, err)
		}
		y := height - 1 - row
		for x := 0; x < width; x++ {
			img.SetPixel(x, y, rgbeToVec3(scanline[x*4:x*4+4]))
		}
	}
	return img, nil
}

func readHeaderLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: truncated header: %v", ErrInvalidHDR, err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readScanline fills dst with width RGBE quadruplets
func readScanline(r *bufio.Reader, dst []byte, width int) error {
	if width < 8 || width > 0x7fff {
		_, err := io.ReadFull(r, dst)
		return err
	}

	head, err := r.Peek(4)
	if err != nil {
		return err
	}
	if head[0] != 2 || head[1] != 2 || head[2]&0x80 != 0 {
		// flat scanline
		_, err := io.ReadFull(r, dst)
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return errors.New("scanline width mismatch")
	}
	if _, err := r.Discard(4); err != nil {
		return err
	}

	// four planes, each run-length encoded separately
	for channel := 0; channel < 4; channel++ {
		for x := 0; x < width; {
			count, err := r.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				run := int(count) - 128
				value, err := r.ReadByte()
				if err != nil {
					return err
				}
				if x+run > width {
					return errors.New("run overflows scanline")
				}
				for i := 0; i < run; i++ {
					dst[(x+i)*4+channel] = value
				}
				x += run
				continue
			}

			n := int(count)
			if n == 0 || x+n > width {
				return errors.New("bad literal run")
			}
			for i := 0; i < n; i++ {
				value, err := r.ReadByte()
				if err != nil {
					return err
				}
				dst[(x+i)*4+channel] = value
			}
			x += n
		}
	}
	return nil
}

func rgbeToVec3(rgbe []byte) core.Vec3 {
	if rgbe[3] == 0 {
		return core.Vec3{}
	}
	f := math.Ldexp(1, int(rgbe[3])-(128+8))
	return core.NewVec3(float64(rgbe[0])*f, float64(rgbe[1])*f, float64(rgbe[2])*f)
}
