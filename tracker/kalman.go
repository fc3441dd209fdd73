package tracker

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// Kalman filter props, shared by every per-track filter.
const (
	kalmanInputCx = 1.0
	kalmanInputCy = 1.0
	kalmanInputW  = 0.0
	kalmanInputH  = 0.0
	kalmanStdDevA = 2.0
	kalmanStdDevM = 0.1
)

type trackFilter struct {
	kf *kalman_filter.KalmanBBox
	// lastT is the newest timestep whose measurement has been folded in.
	lastT int
}

// KalmanCandidateMaker proposes candidates by predicting each track's motion
// with a constant-velocity bounding-box Kalman filter. The track's most
// recent instance is shifted by the predicted bbox-center displacement and
// proposed in the current frame. No frame image is needed.
type KalmanCandidateMaker struct {
	// MinPoints is the minimum visible keypoint count for an instance to be
	// proposed as a candidate.
	MinPoints int
	// Dt is the filter time step per frame.
	Dt float64

	filters map[uuid.UUID]*trackFilter
}

// Candidates implements CandidateMaker. Filters are fed any queue
// measurements newer than what they have seen, filters for tracks that left
// the window are dropped, and one predicted candidate is emitted per track.
func (m *KalmanCandidateMaker) Candidates(queue *MatchQueue, t int, _ gocv.Mat) []Candidate {
	if m.filters == nil {
		m.filters = make(map[uuid.UUID]*trackFilter)
	}
	dt := m.Dt
	if dt <= 0 {
		dt = 1.0
	}

	var trackOrder []uuid.UUID
	latest := make(map[uuid.UUID]*Instance)
	latestT := make(map[uuid.UUID]int)

	for _, entry := range queue.Entries() {
		for _, inst := range entry.Instances {
			track := inst.Track
			if track == nil || inst.NumVisiblePoints() == 0 {
				continue
			}
			bbox := inst.BoundingBox()
			cx := bbox.X + bbox.Width/2.0
			cy := bbox.Y + bbox.Height/2.0

			tf, ok := m.filters[track.ID]
			if !ok {
				kf := kalman_filter.NewKalmanBBox(
					dt, kalmanInputCx, kalmanInputCy, kalmanInputW, kalmanInputH,
					kalmanStdDevA, kalmanStdDevM, kalmanStdDevM, kalmanStdDevM, kalmanStdDevM,
					kalman_filter.WithStateBBox(cx, cy, bbox.Width, bbox.Height),
				)
				tf = &trackFilter{kf: kf, lastT: entry.T}
				m.filters[track.ID] = tf
			} else if entry.T > tf.lastT {
				tf.kf.Predict()
				if err := tf.kf.Update(cx, cy, bbox.Width, bbox.Height); err == nil {
					tf.lastT = entry.T
				}
			}

			if _, ok := latest[track.ID]; !ok {
				trackOrder = append(trackOrder, track.ID)
			}
			if prevT, ok := latestT[track.ID]; !ok || entry.T > prevT {
				latest[track.ID] = inst
				latestT[track.ID] = entry.T
			}
		}
	}

	// Drop filters for tracks no longer inside the window.
	for id := range m.filters {
		if _, ok := latest[id]; !ok {
			delete(m.filters, id)
		}
	}

	var pool []Candidate
	for _, id := range trackOrder {
		inst := latest[id]
		if inst.NumVisiblePoints() < m.MinPoints {
			continue
		}
		tf := m.filters[id]
		if tf == nil {
			continue
		}

		// Project the filter state forward to t without mutating it.
		cx, cy, _, _ := tf.kf.GetState()
		vx, vy, _, _ := tf.kf.GetVelocity()
		steps := float64(t - tf.lastT)
		predCx := cx + vx*dt*steps
		predCy := cy + vy*dt*steps

		bbox := inst.BoundingBox()
		instCx := bbox.X + bbox.Width/2.0
		instCy := bbox.Y + bbox.Height/2.0
		dx := predCx - instCx
		dy := predCy - instCy

		points := make([]Point, len(inst.Points))
		for i, p := range inst.Points {
			if p.IsMissing() {
				points[i] = MissingPoint()
				continue
			}
			points[i] = Point{X: p.X + dx, Y: p.Y + dy}
		}

		shiftScore := 0.0
		if md, err := tf.kf.MahalanobisDistance(instCx, instCy, bbox.Width, bbox.Height); err == nil {
			shiftScore = -md
		}
		pool = append(pool, NewShiftedInstance(inst, points, shiftScore))
	}
	return pool
}
