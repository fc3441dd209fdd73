package tracker

import (
	"math"
	"sort"
)

// Skeleton describes the keypoint topology shared by all instances of one
// animal type. Instances reference a skeleton, they never own it.
type Skeleton struct {
	Name  string
	Nodes []string
}

// NewSkeleton creates a skeleton with the given node names.
func NewSkeleton(name string, nodes ...string) *Skeleton {
	return &Skeleton{Name: name, Nodes: nodes}
}

// Instance is one detected animal in a single frame: an ordered, fixed-length
// set of 2D keypoints plus a reference to the shared skeleton. The tracker
// never mutates its input instances; tracked output is built from copies with
// Track and TrackingScore filled in.
type Instance struct {
	Points        []Point
	Skeleton      *Skeleton
	Frame         int
	Track         *Track
	TrackingScore float64
}

// NewInstance creates an untracked instance for the given frame.
func NewInstance(points []Point, skeleton *Skeleton, frame int) *Instance {
	return &Instance{
		Points:   points,
		Skeleton: skeleton,
		Frame:    frame,
	}
}

// GetPoints returns the instance's keypoint array.
func (inst *Instance) GetPoints() []Point {
	return inst.Points
}

// GetTrack returns the track assigned to this instance, nil if untracked.
func (inst *Instance) GetTrack() *Track {
	return inst.Track
}

// NumVisiblePoints returns the number of keypoints that are not missing.
func (inst *Instance) NumVisiblePoints() int {
	return numVisible(inst.Points)
}

// Centroid returns the component-wise median over visible keypoints.
// Both components are NaN when no keypoint is visible.
func (inst *Instance) Centroid() Point {
	return centroidOf(inst.Points)
}

// BoundingBox returns the axis-aligned box over visible keypoints.
// All fields are NaN when no keypoint is visible.
func (inst *Instance) BoundingBox() Rectangle {
	return boundingBoxOf(inst.Points)
}

func numVisible(points []Point) int {
	n := 0
	for _, p := range points {
		if !p.IsMissing() {
			n++
		}
	}
	return n
}

func centroidOf(points []Point) Point {
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		if !p.IsMissing() {
			xs = append(xs, p.X)
			ys = append(ys, p.Y)
		}
	}
	return Point{X: median(xs), Y: median(ys)}
}

// median averages the two middle values for even-length input, matching the
// convention used by the rest of the pipeline.
func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2.0
}

func boundingBoxOf(points []Point) Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	any := false
	for _, p := range points {
		if p.IsMissing() {
			continue
		}
		any = true
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	if !any {
		nan := math.NaN()
		return Rectangle{X: nan, Y: nan, Width: nan, Height: nan}
	}
	return Rectangle{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
