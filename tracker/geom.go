package tracker

import "math"

// Point is a single 2D keypoint location in image coordinates.
// A missing keypoint is represented by NaN coordinates.
type Point struct {
	X float64
	Y float64
}

// NewPoint creates a point at the given coordinates.
func NewPoint(x, y float64) Point {
	return Point{X: x, Y: y}
}

// MissingPoint returns the sentinel value for a keypoint that was not detected.
func MissingPoint() Point {
	return Point{X: math.NaN(), Y: math.NaN()}
}

// IsMissing reports whether either coordinate is NaN.
func (p Point) IsMissing() bool {
	return math.IsNaN(p.X) || math.IsNaN(p.Y)
}

// Rectangle is an axis-aligned bounding box.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// NewRect creates a rectangle from its top-left corner and size.
func NewRect(x, y, width, height float64) Rectangle {
	return Rectangle{
		X:      x,
		Y:      y,
		Width:  width,
		Height: height,
	}
}

// IoU calculates Intersection over Union between two rectangles.
// NaN coordinates (e.g. from a box over zero visible keypoints) propagate to
// a NaN result rather than panicking.
func IoU(r1, r2 Rectangle) float64 {
	xA := math.Max(r1.X, r2.X)
	yA := math.Max(r1.Y, r2.Y)
	xB := math.Min(r1.X+r1.Width, r2.X+r2.Width)
	yB := math.Min(r1.Y+r1.Height, r2.Y+r2.Height)

	interArea := math.Max(0, xB-xA) * math.Max(0, yB-yA)
	if interArea == 0 {
		return 0.0
	}

	r1Area := r1.Width * r1.Height
	r2Area := r2.Width * r2.Height

	return interArea / (r1Area + r2Area - interArea)
}

func euclideanDistance(p1, p2 Point) float64 {
	return math.Sqrt(math.Pow(p1.X-p2.X, 2) + math.Pow(p1.Y-p2.Y, 2))
}
