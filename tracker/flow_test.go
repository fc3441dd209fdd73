package tracker

import (
	"math"
	"math/rand"
	"testing"

	"gocv.io/x/gocv"
)

// noiseImage builds a deterministic textured grayscale image so the flow
// solver has gradients to lock onto.
func noiseImage(rows, cols int, seed int64) gocv.Mat {
	img := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC1)
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			img.SetUCharAt(y, x, uint8(rng.Intn(256)))
		}
	}
	return img
}

// colorNoiseImage is the 3-channel variant of noiseImage, used to exercise
// the grayscale conversion path.
func colorNoiseImage(rows, cols int, seed int64) gocv.Mat {
	img := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	rng := rand.New(rand.NewSource(seed))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols*3; x++ {
			img.SetUCharAt(y, x, uint8(rng.Intn(256)))
		}
	}
	return img
}

func trackedInst(track *Track, frame int, coords ...float64) *Instance {
	inst := instAt(frame, coords...)
	inst.Track = track
	return inst
}

func defaultFlowMaker() *FlowCandidateMaker {
	cfg := DefaultConfig()
	return &FlowCandidateMaker{
		MinPoints:  cfg.MinPoints,
		ImgScale:   cfg.ImgScale,
		WindowSize: cfg.OFWindowSize,
		MaxLevels:  cfg.OFMaxLevels,
	}
}

func TestFlowIdenticalFrames(t *testing.T) {
	img := noiseImage(128, 128, 1)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := trackedInst(track, 0, 30, 30, 60, 40, 90, 80)

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	maker := defaultFlowMaker()
	pool := maker.Candidates(q, 1, img)
	if len(pool) != 1 {
		t.Fatalf("expected 1 shifted candidate, got %d", len(pool))
	}
	cand := pool[0]
	if cand.GetTrack() != track {
		t.Error("shifted instance should inherit the originating track")
	}
	for i, p := range cand.GetPoints() {
		if p.IsMissing() {
			t.Fatalf("point %d not found between identical frames", i)
		}
		if math.Abs(p.X-src.Points[i].X) > 2 || math.Abs(p.Y-src.Points[i].Y) > 2 {
			t.Errorf("point %d drifted between identical frames: %v -> %v", i, src.Points[i], p)
		}
	}
	si := cand.(*ShiftedInstance)
	if math.IsNaN(si.ShiftScore) || si.ShiftScore > 0 {
		t.Errorf("shift score should be a non-positive negative-error value, got %v", si.ShiftScore)
	}
	if len(cand.GetPoints()) != len(src.Points) {
		t.Errorf("shifted points length %d != source length %d", len(cand.GetPoints()), len(src.Points))
	}
}

func TestFlowSkipsEntriesWithoutImage(t *testing.T) {
	img := noiseImage(128, 128, 2)
	defer img.Close()

	track := &Track{Name: "track_0"}
	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{
		T:         0,
		Instances: []*Instance{trackedInst(track, 0, 30, 30)},
		Img:       gocv.NewMat(),
	})

	maker := defaultFlowMaker()
	if pool := maker.Candidates(q, 1, img); len(pool) != 0 {
		t.Errorf("entries without a stored image should yield no candidates, got %d", len(pool))
	}
}

func TestFlowMinPointsIsStrict(t *testing.T) {
	img := noiseImage(128, 128, 3)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := trackedInst(track, 0, 30, 30, 60, 40, 90, 80)

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	// Keeping a shifted instance requires strictly more found points than
	// MinPoints.
	maker := defaultFlowMaker()
	maker.MinPoints = 3
	if pool := maker.Candidates(q, 1, img); len(pool) != 0 {
		t.Errorf("3 found points must not exceed MinPoints=3, got %d candidates", len(pool))
	}
	maker.MinPoints = 2
	if pool := maker.Candidates(q, 1, img); len(pool) != 1 {
		t.Errorf("3 found points should exceed MinPoints=2, got %d candidates", len(pool))
	}
}

func TestFlowPreservesMissingPoints(t *testing.T) {
	img := noiseImage(128, 128, 4)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := &Instance{
		Points: []Point{NewPoint(30, 30), MissingPoint(), NewPoint(90, 80)},
		Track:  track,
	}

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	pool := defaultFlowMaker().Candidates(q, 1, img)
	if len(pool) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(pool))
	}
	points := pool[0].GetPoints()
	if len(points) != 3 {
		t.Fatalf("shifted points must keep the source length, got %d", len(points))
	}
	if !points[1].IsMissing() {
		t.Error("missing source point must stay missing after shifting")
	}
	if points[0].IsMissing() || points[2].IsMissing() {
		t.Error("visible points should be found between identical frames")
	}
}

func TestFlowScaleRoundTrip(t *testing.T) {
	img := noiseImage(128, 128, 5)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := trackedInst(track, 0, 40, 40, 80, 60)

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	maker := defaultFlowMaker()
	maker.ImgScale = 0.5
	pool := maker.Candidates(q, 1, img)
	if len(pool) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(pool))
	}
	for i, p := range pool[0].GetPoints() {
		if p.IsMissing() {
			continue
		}
		if math.Abs(p.X-src.Points[i].X) > 4 || math.Abs(p.Y-src.Points[i].Y) > 4 {
			t.Errorf("point %d not scaled back to image coordinates: %v -> %v", i, src.Points[i], p)
		}
	}
}

func TestFlowColorFrames(t *testing.T) {
	img := colorNoiseImage(128, 128, 8)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := trackedInst(track, 0, 30, 30, 60, 40, 90, 80)

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	for _, scale := range []float64{1.0, 0.5} {
		maker := defaultFlowMaker()
		maker.ImgScale = scale
		pool := maker.Candidates(q, 1, img)
		if len(pool) != 1 {
			t.Fatalf("scale %v: expected 1 candidate from 3-channel frames, got %d", scale, len(pool))
		}
		if pool[0].GetTrack() != track {
			t.Errorf("scale %v: shifted instance should inherit the originating track", scale)
		}
		for i, p := range pool[0].GetPoints() {
			if p.IsMissing() {
				t.Fatalf("scale %v: point %d not found between identical frames", scale, i)
			}
			if math.Abs(p.X-src.Points[i].X) > 4 || math.Abs(p.Y-src.Points[i].Y) > 4 {
				t.Errorf("scale %v: point %d drifted: %v -> %v", scale, i, src.Points[i], p)
			}
		}
	}
}

func TestFlowSaveShifted(t *testing.T) {
	img := noiseImage(128, 128, 6)
	defer img.Close()

	track := &Track{Name: "track_0"}
	src := trackedInst(track, 0, 30, 30, 60, 40)

	q := NewMatchQueue(5)
	defer q.Close()
	q.Append(MatchedFrame{T: 0, Instances: []*Instance{src}, Img: img.Clone()})

	maker := defaultFlowMaker()
	maker.SaveShifted = true
	maker.Candidates(q, 3, img)
	if len(maker.Shifted[[2]int{0, 3}]) != 1 {
		t.Errorf("expected saved shifted instances under key (0, 3), got %v", maker.Shifted)
	}
}

func TestFlowTrackerContinuity(t *testing.T) {
	img := noiseImage(128, 128, 7)
	defer img.Close()

	tr := NewFlowTracker(5)
	defer tr.Close()

	frame0 := tr.TrackAt([]*Instance{instAt(0, 30, 30, 60, 40)}, img, 0)
	if len(frame0) != 1 {
		t.Fatalf("expected 1 tracked instance at frame 0, got %d", len(frame0))
	}
	track0 := frame0[0].Track

	frame1 := tr.TrackAt([]*Instance{instAt(1, 30, 30, 60, 40)}, img, 1)
	if len(frame1) != 1 {
		t.Fatalf("expected 1 tracked instance at frame 1, got %d", len(frame1))
	}
	if frame1[0].Track != track0 {
		t.Error("static instance between identical frames should keep its track")
	}
	if len(tr.SpawnedTracks()) != 1 {
		t.Errorf("expected a single spawned track, got %d", len(tr.SpawnedTracks()))
	}
}
