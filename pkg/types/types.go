package types

// Box represents a normalized bounding box with coordinates in [0,1] range,
// relative to the dimensions of the image it was measured on.
type Box struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	W float64 `json:"w" yaml:"w"`
	H float64 `json:"h" yaml:"h"`
}

// Full is the box covering the whole image.
var Full = Box{X: 0, Y: 0, W: 1, H: 1}

// Right returns the right edge of the box.
func (b Box) Right() float64 { return b.X + b.W }

// Bottom returns the bottom edge of the box.
func (b Box) Bottom() float64 { return b.Y + b.H }

// Contains reports whether o lies entirely inside b.
func (b Box) Contains(o Box) bool {
	const eps = 1e-9
	return o.X >= b.X-eps && o.Y >= b.Y-eps && o.Right() <= b.Right()+eps && o.Bottom() <= b.Bottom()+eps
}

// Bounds is a tight pixel rectangle of content, relative to the top-left
// corner of the image it was measured on.
type Bounds struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Area returns the area of the bounds
func (b Bounds) Area() int {
	return b.Width * b.Height
}

// Empty reports whether the bounds cover no pixel.
func (b Bounds) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Rect is a rectangle in floating point canvas coordinates.
type Rect struct {
	X float64
	Y float64
	W float64
	H float64
}

// Right returns the right edge of the rectangle.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns the bottom edge of the rectangle.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// CenterX returns the horizontal center of the rectangle.
func (r Rect) CenterX() float64 { return r.X + r.W/2 }

// CenterY returns the vertical center of the rectangle.
func (r Rect) CenterY() float64 { return r.Y + r.H/2 }
