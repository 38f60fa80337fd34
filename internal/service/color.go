package service

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Label display colors: a random hue with fixed saturation/lightness so
// every label gets a distinct but equally vivid color.
const (
	labelSaturation = 0.70
	labelLightness  = 0.55
)

// RandomLabelColor returns a hex display color with a random hue.
func RandomLabelColor() string {
	return hslToHex(rand.Float64()*360, labelSaturation, labelLightness)
}

// hslToHex converts HSL (h in degrees, s and l in [0,1]) to "#rrggbb".
func hslToHex(h, s, l float64) string {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}

	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return fmt.Sprintf("#%02x%02x%02x",
		int(math.Round((r+m)*255)),
		int(math.Round((g+m)*255)),
		int(math.Round((b+m)*255)))
}
