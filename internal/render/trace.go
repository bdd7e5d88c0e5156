package render

// Op is one recorded drawing call.
type Op struct {
	Kind   string
	Args   []float64
	Points []Point
	Color  Color
}

// Trace records drawing calls instead of rasterizing them.
type Trace struct {
	Width, Height int
	Ops           []Op
	Flushes       int
}

// NewTrace creates a recording canvas of the given size.
func NewTrace(width, height int) *Trace {
	return &Trace{Width: width, Height: height}
}

func (t *Trace) Size() (int, int) { return t.Width, t.Height }

func (t *Trace) Clear() {
	t.Ops = append(t.Ops[:0], Op{Kind: "clear"})
}

func (t *Trace) Fill(c Color) {
	t.Ops = append(t.Ops, Op{Kind: "fill", Color: c})
}

func (t *Trace) FillRect(x, y, w, h float64, c Color) {
	t.Ops = append(t.Ops, Op{Kind: "rect", Args: []float64{x, y, w, h}, Color: c})
}

func (t *Trace) FillCircle(cx, cy, r float64, c Color) {
	t.Ops = append(t.Ops, Op{Kind: "circle", Args: []float64{cx, cy, r}, Color: c})
}

func (t *Trace) Line(x0, y0, x1, y1, width float64, c Color) {
	t.Ops = append(t.Ops, Op{Kind: "line", Args: []float64{x0, y0, x1, y1, width}, Color: c})
}

func (t *Trace) Polyline(pts []Point, width float64, c Color) {
	t.Ops = append(t.Ops, Op{Kind: "polyline", Args: []float64{width}, Points: append([]Point(nil), pts...), Color: c})
}

func (t *Trace) Flush() { t.Flushes++ }

// Count returns how many recorded ops have the given kind.
func (t *Trace) Count(kind string) int {
	n := 0
	for _, op := range t.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops every recorded op.
func (t *Trace) Reset() {
	t.Ops = t.Ops[:0]
}
