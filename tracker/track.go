package tracker

import "github.com/google/uuid"

// Track is a persistent identity assigned to instances across frames.
// Tracks are created exactly once by the Tracker when a detection spawns a new
// identity, and are compared by the identity assigned at spawn time (the
// pointer / ID), never by structural value.
type Track struct {
	ID        uuid.UUID
	SpawnedOn int
	Name      string
}

// Candidate is anything that can be proposed as the continuation of a track:
// a raw historical instance or a derived (flow-shifted, motion-predicted)
// instance. Getter-style to match the tracked-object interface convention.
type Candidate interface {
	GetPoints() []Point
	GetTrack() *Track
	NumVisiblePoints() int
	Centroid() Point
	BoundingBox() Rectangle
}
