package fingerprint

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	gridW = 9
	gridH = 8
)

// MaxPixels bounds the decoded size of an input image. Compressed formats
// can declare dimensions far beyond what their byte size suggests.
const MaxPixels = 40_000_000

// Region is a window of the card given as fractions of the image size.
type Region struct {
	Name   string
	Top    float64
	Height float64
	Left   float64
	Width  float64
}

// Regions are overlapping horizontal bands: title, artwork, collector line.
var Regions = [RegionCount]Region{
	{Name: "top", Top: 0.00, Height: 0.40, Left: 0.10, Width: 0.80},
	{Name: "mid", Top: 0.30, Height: 0.40, Left: 0.10, Width: 0.80},
	{Name: "bot", Top: 0.60, Height: 0.40, Left: 0.10, Width: 0.80},
}

func HashBytes(b []byte) (Fingerprint, error) {
	return HashReader(bytes.NewReader(b))
}

// HashReader decodes and hashes an encoded image. The header is checked
// against MaxPixels before any pixel data is decoded.
func HashReader(r io.Reader) (Fingerprint, error) {
	var head bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &head))
	if err != nil {
		return Fingerprint{}, errors.Wrapf(ErrUnreadableImage, "decode config: %v", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Fingerprint{}, errors.Wrap(ErrUnreadableImage, "empty image")
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > MaxPixels {
		return Fingerprint{}, errors.Wrapf(ErrUnreadableImage, "%dx%d exceeds %d pixels", cfg.Width, cfg.Height, MaxPixels)
	}

	img, _, err := image.Decode(io.MultiReader(&head, r))
	if err != nil {
		return Fingerprint{}, errors.Wrapf(ErrUnreadableImage, "decode: %v", err)
	}
	return Hash(img)
}

// Hash computes the 192-bit fingerprint of img.
func Hash(img image.Image) (Fingerprint, error) {
	if img == nil {
		return Fingerprint{}, ErrUnreadableImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Fingerprint{}, errors.Wrap(ErrUnreadableImage, "empty image")
	}

	var fp Fingerprint
	for i, r := range Regions {
		fp[i] = regionHash(img, r.Rect(b))
	}
	return fp, nil
}

// Rect maps the region onto bounds b. The result is never empty for a
// non-empty b.
func (r Region) Rect(b image.Rectangle) image.Rectangle {
	w, h := float64(b.Dx()), float64(b.Dy())

	x0 := clamp(b.Min.X+int(math.Round(r.Left*w)), b.Min.X, b.Max.X-1)
	y0 := clamp(b.Min.Y+int(math.Round(r.Top*h)), b.Min.Y, b.Max.Y-1)
	x1 := clamp(b.Min.X+int(math.Round((r.Left+r.Width)*w)), x0+1, b.Max.X)
	y1 := clamp(b.Min.Y+int(math.Round((r.Top+r.Height)*h)), y0+1, b.Max.Y)

	return image.Rect(x0, y0, x1, y1)
}

func regionHash(img image.Image, sr image.Rectangle) uint64 {
	dst := image.NewRGBA(image.Rect(0, 0, gridW, gridH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, sr, draw.Src, nil)

	var lum [gridH][gridW]uint16
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW; x++ {
			lum[y][x] = color.Gray16Model.Convert(dst.At(x, y)).(color.Gray16).Y
		}
	}

	var h uint64
	for y := 0; y < gridH; y++ {
		for x := 0; x < gridW-1; x++ {
			if lum[y][x] > lum[y][x+1] {
				h |= 1 << uint(RegionBits-1-(y*(gridW-1)+x))
			}
		}
	}
	return h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
