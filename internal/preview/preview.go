// Package preview renders top-down biome and height maps of a world
// region to PNG.
package preview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"worldgen/internal/biome"
)

// Sampler resolves terrain at a world position.
type Sampler interface {
	TerrainAt(x, z float64) (biome.Cell, error)
}

// Options selects the rendered region. One pixel covers Step world units
// before the image is upscaled by Scale.
type Options struct {
	OriginX, OriginZ float64
	Width, Height    int
	Step             float64
	Scale            int
	// MaxHeight enables height shading when positive.
	MaxHeight float64
	Legend    bool
}

var errEmptyRegion = errors.New("preview: empty region")

const (
	legendRow    = 16
	legendSwatch = 10
)

// Render samples the region and returns the finished image.
func Render(s Sampler, opts Options) (*image.RGBA, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, errEmptyRegion
	}
	if opts.Step <= 0 {
		opts.Step = 1
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	src := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	colors := make(map[string]mgl64.Vec3)
	for pz := 0; pz < opts.Height; pz++ {
		for px := 0; px < opts.Width; px++ {
			x := opts.OriginX + float64(px)*opts.Step
			z := opts.OriginZ + float64(pz)*opts.Step
			cell, err := s.TerrainAt(x, z)
			if err != nil {
				return nil, fmt.Errorf("preview: sample (%v, %v): %w", x, z, err)
			}
			if _, ok := colors[cell.Biome]; !ok {
				colors[cell.Biome] = cell.Color
			}
			c := cell.Color
			if opts.MaxHeight > 0 {
				c = c.Mul(0.5 + 0.5*cell.Height/opts.MaxHeight)
			}
			src.SetRGBA(px, pz, toRGBA(c))
		}
	}

	w, h := opts.Width*opts.Scale, opts.Height*opts.Scale
	names := make([]string, 0, len(colors))
	for name := range colors {
		names = append(names, name)
	}
	slices.Sort(names)
	legendH := 0
	if opts.Legend {
		legendH = len(names)*legendRow + 4
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h+legendH))
	xdraw.NearestNeighbor.Scale(dst, image.Rect(0, 0, w, h), src, src.Bounds(), draw.Src, nil)
	if opts.Legend {
		drawLegend(dst, h, names, colors)
	}
	return dst, nil
}

func drawLegend(dst *image.RGBA, top int, names []string, colors map[string]mgl64.Vec3) {
	draw.Draw(dst, image.Rect(0, top, dst.Bounds().Dx(), dst.Bounds().Dy()), image.NewUniform(color.RGBA{24, 24, 24, 255}), image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
	}
	for i, name := range names {
		y := top + 4 + i*legendRow
		swatch := image.Rect(4, y, 4+legendSwatch, y+legendSwatch)
		draw.Draw(dst, swatch, image.NewUniform(toRGBA(colors[name])), image.Point{}, draw.Src)
		d.Dot = fixed.P(8+legendSwatch, y+legendSwatch)
		d.DrawString(name)
	}
}

func toRGBA(c mgl64.Vec3) color.RGBA {
	conv := func(v float64) uint8 {
		return uint8(mgl64.Clamp(v, 0, 1)*255 + 0.5)
	}
	return color.RGBA{conv(c.X()), conv(c.Y()), conv(c.Z()), 255}
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("preview: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("preview: encode %s: %w", path, err)
	}
	return f.Close()
}
