package graphics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// maxByte is the maximum value of a byte, used for color normalization.
const maxByte = 255.0

// Color is stored as ARGB (0xAARRGGBB).
type Color uint32

// RGBA constructs a Color from red, green, blue bytes and alpha (0-1).
func RGBA(r, g, b uint8, a float64) Color {
	return Color(uint32(alpha01ToByte(a))<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGBA8 constructs a Color from red, green, blue, alpha bytes (all 0-255).
func RGBA8(r, g, b, a uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB constructs an opaque Color from red, green, blue bytes.
func RGB(r, g, b uint8) Color {
	return RGBA8(r, g, b, 0xFF)
}

// Alpha returns the alpha component as a value from 0.0 (transparent) to 1.0 (opaque).
func (c Color) Alpha() float64 {
	return float64(uint8(c>>24)) / maxByte
}

// WithAlpha returns a copy of the color with the given alpha (0-1).
func (c Color) WithAlpha(a float64) Color {
	return Color(uint32(alpha01ToByte(a))<<24 | uint32(c)&0x00FFFFFF)
}

func (c Color) colorful() colorful.Color {
	return colorful.Color{
		R: float64(uint8(c>>16)) / maxByte,
		G: float64(uint8(c>>8)) / maxByte,
		B: float64(uint8(c)) / maxByte,
	}
}

func fromColorful(cf colorful.Color, alpha float64) Color {
	r, g, b := cf.Clamped().RGB255()
	return RGBA(r, g, b, alpha)
}

// String formats the color as #rrggbb, or #rrggbbaa when translucent.
func (c Color) String() string {
	hex := c.colorful().Hex()
	if a := uint8(c >> 24); a != 0xFF {
		return fmt.Sprintf("%s%02x", hex, a)
	}
	return hex
}

// LerpColor blends a toward b in Lab space, which keeps mid-transition hues
// from going muddy. Alpha is interpolated linearly.
func LerpColor(a, b Color, t float64) Color {
	switch {
	case t <= 0:
		return a
	case t >= 1:
		return b
	}
	alpha := a.Alpha() + (b.Alpha()-a.Alpha())*t
	return fromColorful(a.colorful().BlendLab(b.colorful(), t), alpha)
}

var namedColors = map[string]Color{
	"transparent": ColorTransparent,
	"black":       ColorBlack,
	"white":       ColorWhite,
	"red":         ColorRed,
	"green":       RGB(0, 128, 0),
	"lime":        ColorGreen,
	"blue":        ColorBlue,
	"yellow":      RGB(255, 255, 0),
	"gray":        RGB(128, 128, 128),
	"grey":        RGB(128, 128, 128),
	"orange":      RGB(255, 165, 0),
	"purple":      RGB(128, 0, 128),
}

// ParseColor parses #rgb, #rrggbb, #rrggbbaa, rgb(), rgba() and a small set
// of named colors.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}
	switch {
	case strings.HasPrefix(s, "#"):
		return parseHex(s)
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgba("):len(s)-1], true)
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		return parseFunc(s[len("rgb("):len(s)-1], false)
	}
	return 0, fmt.Errorf("unrecognized color %q", s)
}

func parseHex(s string) (Color, error) {
	alpha := 1.0
	switch len(s) {
	case 4:
		s = "#" + strings.Repeat(s[1:2], 2) + strings.Repeat(s[2:3], 2) + strings.Repeat(s[3:4], 2)
	case 9:
		a, err := strconv.ParseUint(s[7:9], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("bad alpha in %q: %w", s, err)
		}
		alpha = float64(a) / maxByte
		s = s[:7]
	}
	cf, err := colorful.Hex(s)
	if err != nil {
		return 0, err
	}
	return fromColorful(cf, alpha), nil
}

func parseFunc(args string, withAlpha bool) (Color, error) {
	parts := strings.Split(args, ",")
	want := 3
	if withAlpha {
		want = 4
	}
	if len(parts) != want {
		return 0, fmt.Errorf("expected %d components, got %d", want, len(parts))
	}
	var rgb [3]uint8
	for i := range 3 {
		v, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || v < 0 || v > 255 {
			return 0, fmt.Errorf("bad color component %q", parts[i])
		}
		rgb[i] = uint8(v)
	}
	alpha := 1.0
	if withAlpha {
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil {
			return 0, fmt.Errorf("bad alpha %q", parts[3])
		}
		alpha = a
	}
	return RGBA(rgb[0], rgb[1], rgb[2], alpha), nil
}

// alpha01ToByte converts a 0-1 alpha to 0-255 with proper rounding.
func alpha01ToByte(a float64) uint8 {
	return uint8(math.Round(clamp01(a) * 255))
}

// clamp01 clamps a value to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Common colors.
const (
	ColorTransparent = Color(0x00000000)
	ColorBlack       = Color(0xFF000000)
	ColorWhite       = Color(0xFFFFFFFF)
	ColorRed         = Color(0xFFFF0000)
	ColorGreen       = Color(0xFF00FF00)
	ColorBlue        = Color(0xFF0000FF)
)
