package render

import (
	"bytes"
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
)

// Raster draws into an in-memory RGBA image. Frames are drawn on a back buffer and copied
// to the front buffer by Flush, so snapshots never observe a half-drawn frame.
type Raster struct {
	back *image.RGBA
	dc   *gg.Context

	mu    sync.RWMutex
	front *image.RGBA
}

// NewRaster creates a transparent canvas.
func NewRaster(width, height int) *Raster {
	width = max(width, 1)
	height = max(height, 1)
	rect := image.Rect(0, 0, width, height)
	back := image.NewRGBA(rect)
	dc := gg.NewContextForRGBA(back)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	return &Raster{back: back, dc: dc, front: image.NewRGBA(rect)}
}

func (r *Raster) Size() (int, int) {
	return r.dc.Width(), r.dc.Height()
}

// Clear resets every pixel to transparent.
func (r *Raster) Clear() {
	clear(r.back.Pix)
}

func (r *Raster) Fill(c Color) {
	r.dc.SetColor(nrgba(c))
	r.dc.Clear()
}

func (r *Raster) FillRect(x, y, w, h float64, c Color) {
	if w <= 0 || h <= 0 || c.A <= 0 {
		return
	}
	r.dc.DrawRectangle(x, y, w, h)
	r.fill(c)
}

func (r *Raster) FillCircle(cx, cy, radius float64, c Color) {
	if radius <= 0 || c.A <= 0 {
		return
	}
	r.dc.DrawCircle(cx, cy, radius)
	r.fill(c)
}

func (r *Raster) Line(x0, y0, x1, y1, width float64, c Color) {
	if c.A <= 0 {
		return
	}
	r.dc.DrawLine(x0, y0, x1, y1)
	r.stroke(width, c)
}

func (r *Raster) Polyline(pts []Point, width float64, c Color) {
	if len(pts) < 2 || c.A <= 0 {
		return
	}
	r.dc.MoveTo(pts[0].X, pts[0].Y)
	for _, p := range pts[1:] {
		r.dc.LineTo(p.X, p.Y)
	}
	r.stroke(width, c)
}

// Flush publishes the back buffer.
func (r *Raster) Flush() {
	r.mu.Lock()
	copy(r.front.Pix, r.back.Pix)
	r.mu.Unlock()
}

// At returns a published pixel.
func (r *Raster) At(x, y int) color.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.front.RGBAAt(x, y)
}

// PNG encodes the last published frame.
func (r *Raster) PNG() ([]byte, error) {
	r.mu.RLock()
	img := image.NewRGBA(r.front.Bounds())
	copy(img.Pix, r.front.Pix)
	r.mu.RUnlock()

	var buf bytes.Buffer
	if err := gg.NewContextForRGBA(img).EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Raster) fill(c Color) {
	r.dc.SetColor(nrgba(c))
	r.dc.Fill()
}

func (r *Raster) stroke(width float64, c Color) {
	r.dc.SetColor(nrgba(c))
	r.dc.SetLineWidth(max(width, 1))
	r.dc.Stroke()
}

func nrgba(c Color) color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(c.A*255 + 0.5)}
}
