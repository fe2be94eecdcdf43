package material

import (
	"math"

	"github.com/erbuka/pathtracing/pkg/core"
)

// SampleMode selects the filter used by Image.Sample
type SampleMode int

const (
	SampleLinear SampleMode = iota
	SampleNearest
)

// String returns the mode name as used in scene files
func (m SampleMode) String() string {
	if m == SampleNearest {
		return "nearest"
	}
	return "linear"
}

// Image is a grid of linear RGB values. Texture coordinates wrap around on
// both axes.
type Image struct {
	Mode   SampleMode
	width  int
	height int
	pixels []core.Vec3 // Row-major: pixels[y*width + x]
}

// NewImage creates a black image
func NewImage(width, height int) *Image {
	return &Image{
		width:  width,
		height: height,
		pixels: make([]core.Vec3, width*height),
	}
}

// NewImageFromPixels wraps an existing row-major pixel slice
func NewImageFromPixels(width, height int, pixels []core.Vec3) *Image {
	if len(pixels) != width*height {
		panic("material: pixel count does not match image size")
	}
	return &Image{width: width, height: height, pixels: pixels}
}

// Width returns the number of columns
func (img *Image) Width() int { return img.width }

// Height returns the number of rows
func (img *Image) Height() int { return img.height }

// Pixels returns the backing row-major slice
func (img *Image) Pixels() []core.Vec3 { return img.pixels }

// Pixel returns the color at (x, y)
func (img *Image) Pixel(x, y int) core.Vec3 {
	return img.pixels[y*img.width+x]
}

// SetPixel stores the color at (x, y)
func (img *Image) SetPixel(x, y int, color core.Vec3) {
	img.pixels[y*img.width+x] = color
}

// Fill sets every pixel to color
func (img *Image) Fill(color core.Vec3) {
	for i := range img.pixels {
		img.pixels[i] = color
	}
}

// Clone returns a deep copy
func (img *Image) Clone() *Image {
	pixels := make([]core.Vec3, len(img.pixels))
	copy(pixels, img.pixels)
	return &Image{Mode: img.Mode, width: img.width, height: img.height, pixels: pixels}
}

// Sample returns the filtered color at uv. u grows with x, v grows with y.
func (img *Image) Sample(uv core.Vec2) core.Vec3 {
	if img.width == 0 || img.height == 0 {
		return core.Vec3{}
	}

	uv0 := uv.Fract()
	x := uv0.X * float64(img.width)
	y := uv0.Y * float64(img.height)

	if img.Mode == SampleNearest {
		ix := int(math.Round(x)) % img.width
		iy := int(math.Round(y)) % img.height
		return img.Pixel(ix, iy)
	}

	x0 := int(math.Floor(x)) % img.width
	x1 := int(math.Ceil(x)) % img.width
	y0 := int(math.Floor(y)) % img.height
	y1 := int(math.Ceil(y)) % img.height

	fx := x - math.Floor(x)
	fy := y - math.Floor(y)

	top := img.Pixel(x0, y0).Mix(img.Pixel(x1, y0), fx)
	bottom := img.Pixel(x0, y1).Mix(img.Pixel(x1, y1), fx)
	return top.Mix(bottom, fy)
}

// Average returns the mean pixel color
func (img *Image) Average() core.Vec3 {
	if len(img.pixels) == 0 {
		return core.Vec3{}
	}
	var sum core.Vec3
	for _, p := range img.pixels {
		sum = sum.Add(p)
	}
	return sum.Multiply(1.0 / float64(len(img.pixels)))
}

// ToLDR compresses the image into [0, 1) with 1 - exp(-c) when any channel
// exceeds 1, and leaves it untouched otherwise
func (img *Image) ToLDR() {
	maxValue := 0.0
	for _, p := range img.pixels {
		maxValue = math.Max(maxValue, p.MaxComponent())
	}
	if maxValue <= 1 {
		return
	}
	for i, p := range img.pixels {
		img.pixels[i] = p.ToneMap()
	}
}

// EquirectangularMap samples a latitude/longitude environment image by direction
type EquirectangularMap struct {
	Image *Image
}

// NewEquirectangularMap wraps an image as an environment
func NewEquirectangularMap(image *Image) *EquirectangularMap {
	return &EquirectangularMap{Image: image}
}

// Sample returns the environment color seen along direction
func (e *EquirectangularMap) Sample(direction core.Vec3) core.Vec3 {
	n := direction.Normalize()
	uv := core.NewVec2(
		math.Atan2(n.X, n.Z)/(2*math.Pi)+0.5,
		math.Asin(math.Max(-1, math.Min(1, n.Y)))/math.Pi-0.5,
	)
	return e.Image.Sample(uv)
}
