package render

import (
	"image/color"
	"strconv"
	"strings"
)

// tailwind holds the background classes the editor offers, by color then shade
var tailwind = map[string]map[int]uint32{
	"gray":    {100: 0xf3f4f6, 200: 0xe5e7eb, 300: 0xd1d5db, 400: 0x9ca3af, 500: 0x6b7280, 600: 0x4b5563, 700: 0x374151},
	"slate":   {300: 0xcbd5e1, 400: 0x94a3b8, 500: 0x64748b},
	"red":     {300: 0xfca5a5, 400: 0xf87171, 500: 0xef4444, 600: 0xdc2626},
	"orange":  {300: 0xfdba74, 400: 0xfb923c, 500: 0xf97316},
	"amber":   {300: 0xfcd34d, 400: 0xfbbf24, 500: 0xf59e0b},
	"yellow":  {300: 0xfde047, 400: 0xfacc15, 500: 0xeab308},
	"lime":    {300: 0xbef264, 400: 0xa3e635, 500: 0x84cc16},
	"green":   {300: 0x86efac, 400: 0x4ade80, 500: 0x22c55e, 600: 0x16a34a},
	"emerald": {300: 0x6ee7b7, 400: 0x34d399, 500: 0x10b981},
	"teal":    {300: 0x5eead4, 400: 0x2dd4bf, 500: 0x14b8a6},
	"cyan":    {300: 0x67e8f9, 400: 0x22d3ee, 500: 0x06b6d4},
	"sky":     {300: 0x7dd3fc, 400: 0x38bdf8, 500: 0x0ea5e9},
	"blue":    {300: 0x93c5fd, 400: 0x60a5fa, 500: 0x3b82f6, 600: 0x2563eb},
	"indigo":  {300: 0xa5b4fc, 400: 0x818cf8, 500: 0x6366f1},
	"violet":  {300: 0xc4b5fd, 400: 0xa78bfa, 500: 0x8b5cf6},
	"purple":  {300: 0xd8b4fe, 400: 0xc084fc, 500: 0xa855f7},
	"fuchsia": {300: 0xf0abfc, 400: 0xe879f9, 500: 0xd946ef},
	"pink":    {300: 0xf9a8d4, 400: 0xf472b6, 500: 0xec4899},
	"rose":    {300: 0xfda4af, 400: 0xfb7185, 500: 0xf43f5e},
}

var (
	emptyColor     = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	gridLineColor  = color.RGBA{0xe5, 0xe7, 0xeb, 0xff}
	borderColor    = color.RGBA{0x1f, 0x29, 0x37, 0xff}
	fallbackColor  = color.RGBA{0xd1, 0xd5, 0xdb, 0xff}
	darkTextColor  = color.RGBA{0x11, 0x18, 0x27, 0xff}
	lightTextColor = color.RGBA{0xff, 0xff, 0xff, 0xff}
)

// ParseColor converts a Tailwind background class (bg-green-300, bg-white) or a
// #rrggbb value to RGBA
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		return parseHex(s[1:])
	}

	name := strings.TrimPrefix(s, "bg-")
	switch name {
	case "white":
		return color.RGBA{0xff, 0xff, 0xff, 0xff}, true
	case "black":
		return color.RGBA{0x00, 0x00, 0x00, 0xff}, true
	case "empty":
		return emptyColor, true
	}

	i := strings.LastIndex(name, "-")
	if i < 0 {
		return color.RGBA{}, false
	}
	shade, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return color.RGBA{}, false
	}
	rgb, ok := tailwind[name[:i]][shade]
	if !ok {
		return color.RGBA{}, false
	}
	return rgba(rgb), true
}

// ColorOrFallback is ParseColor with a neutral gray for unknown values
func ColorOrFallback(s string) color.RGBA {
	if c, ok := ParseColor(s); ok {
		return c
	}
	return fallbackColor
}

func parseHex(h string) (color.RGBA, bool) {
	if len(h) != 6 {
		return color.RGBA{}, false
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, false
	}
	return rgba(uint32(v)), true
}

func rgba(v uint32) color.RGBA {
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// textColorFor picks dark or light text for legibility on bg
func textColorFor(bg color.RGBA) color.RGBA {
	// perceived luminance, ITU-R BT.601 weights
	lum := 299*int(bg.R) + 587*int(bg.G) + 114*int(bg.B)
	if lum > 140*1000 {
		return darkTextColor
	}
	return lightTextColor
}
