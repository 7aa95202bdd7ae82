package volume

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette maps material indices to packed RGBA8 colors, red in the low byte.
type Palette [PaletteSize]uint32

// PackColor packs c as non-premultiplied RGBA8: r | g<<8 | b<<16 | a<<24.
func PackColor(c color.Color) uint32 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return uint32(n.R) | uint32(n.G)<<8 | uint32(n.B)<<16 | uint32(n.A)<<24
}

// UnpackColor is the inverse of PackColor.
func UnpackColor(packed uint32) color.NRGBA {
	return color.NRGBA{
		R: uint8(packed),
		G: uint8(packed >> 8),
		B: uint8(packed >> 16),
		A: uint8(packed >> 24),
	}
}

// ParseHex packs an opaque "#rrggbb" color.
func ParseHex(s string) (uint32, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return 0, fmt.Errorf("bad color %q: %v", s, err)
	}
	r, g, b := c.RGB255()
	return PackColor(color.NRGBA{R: r, G: g, B: b, A: 0xff}), nil
}

// SetColor stores c at palette entry i.
func (p *Palette) SetColor(i uint8, c color.Color) {
	p[i] = PackColor(c)
}

// SetHex stores an opaque "#rrggbb" color at palette entry i.
func (p *Palette) SetHex(i uint8, s string) error {
	packed, err := ParseHex(s)
	if err != nil {
		return err
	}
	p[i] = packed
	return nil
}

// Hex returns entry i as "#rrggbb", dropping alpha.
func (p *Palette) Hex(i uint8) string {
	n := UnpackColor(p[i])
	return colorful.Color{R: float64(n.R) / 255, G: float64(n.G) / 255, B: float64(n.B) / 255}.Hex()
}
