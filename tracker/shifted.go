package tracker

// ShiftedInstance is an ephemeral candidate produced by projecting a
// historical instance into the current frame (optical flow or motion
// prediction). It is created fresh per tracking step and never mutated after
// construction. Keypoints the projection could not carry over are missing.
type ShiftedInstance struct {
	Points   []Point
	Skeleton *Skeleton
	// SrcFrame is the frame index of the originating instance.
	SrcFrame int
	Track    *Track
	// ShiftScore is the projection confidence, higher is more reliable.
	ShiftScore float64
}

// NewShiftedInstance derives a shifted instance from its source instance.
// The skeleton reference is not carried over; candidates only need geometry.
func NewShiftedInstance(src *Instance, points []Point, shiftScore float64) *ShiftedInstance {
	return &ShiftedInstance{
		Points:     points,
		SrcFrame:   src.Frame,
		Track:      src.Track,
		ShiftScore: shiftScore,
	}
}

// GetPoints returns the projected keypoint array.
func (si *ShiftedInstance) GetPoints() []Point {
	return si.Points
}

// GetTrack returns the originating instance's track.
func (si *ShiftedInstance) GetTrack() *Track {
	return si.Track
}

// NumVisiblePoints returns the number of successfully projected keypoints.
func (si *ShiftedInstance) NumVisiblePoints() int {
	return numVisible(si.Points)
}

// Centroid returns the component-wise median over projected keypoints.
func (si *ShiftedInstance) Centroid() Point {
	return centroidOf(si.Points)
}

// BoundingBox returns the axis-aligned box over projected keypoints.
func (si *ShiftedInstance) BoundingBox() Rectangle {
	return boundingBoxOf(si.Points)
}
