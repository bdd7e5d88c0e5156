// Package render provides the drawing targets used by the visualizer and the ambient animation.
package render

import "fmt"

// Color is an sRGB color with straight alpha in [0, 1].
type Color struct {
	R, G, B uint8
	A       float64
}

// RGB returns an opaque color. Components are clamped to [0, 255] and rounded.
func RGB(r, g, b float64) Color {
	return Color{R: channel(r), G: channel(g), B: channel(b), A: 1}
}

// RGBA returns a translucent color. Alpha is clamped to [0, 1].
func RGBA(r, g, b, a float64) Color {
	c := RGB(r, g, b)
	c.A = min(max(a, 0), 1)
	return c
}

func (c Color) String() string {
	if c.A >= 1 {
		return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
	}
	return fmt.Sprintf("rgba(%d,%d,%d,%.3f)", c.R, c.G, c.B, c.A)
}

func channel(v float64) uint8 {
	if v <= 0 || v != v {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// Point is a canvas coordinate.
type Point struct {
	X, Y float64
}

// Canvas is a 2D drawing target. Drawing calls are made from the loop; Flush publishes the
// frame drawn so far to readers.
type Canvas interface {
	Size() (width, height int)
	Clear()
	Fill(c Color)
	FillRect(x, y, w, h float64, c Color)
	FillCircle(cx, cy, r float64, c Color)
	Line(x0, y0, x1, y1, width float64, c Color)
	Polyline(pts []Point, width float64, c Color)
	Flush()
}
