package tracker

import "gocv.io/x/gocv"

// CandidateMaker produces the pool of candidate instances to match new
// detections against, drawn from the sliding window of recent match results.
// Every returned candidate carries a track.
type CandidateMaker interface {
	// Candidates returns the candidate pool for timestep t. img is the
	// current frame and may be empty for makers that do not use images.
	Candidates(queue *MatchQueue, t int, img gocv.Mat) []Candidate
}

// SimpleCandidateMaker proposes raw historical instances directly: every
// instance in the queue with at least MinPoints visible keypoints becomes a
// candidate. Candidates from multiple timesteps for the same track coexist
// in the pool.
type SimpleCandidateMaker struct {
	MinPoints int
}

// Candidates implements CandidateMaker.
func (m *SimpleCandidateMaker) Candidates(queue *MatchQueue, _ int, _ gocv.Mat) []Candidate {
	var pool []Candidate
	for _, entry := range queue.Entries() {
		for _, inst := range entry.Instances {
			if inst.NumVisiblePoints() >= m.MinPoints {
				pool = append(pool, inst)
			}
		}
	}
	return pool
}
