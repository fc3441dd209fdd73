package tracker

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
)

// Tracker assigns per-frame pose detections to persistent identities. Each
// call to Track runs one step: candidates are drawn from the sliding history
// window, scored against the new detections, assigned by the matching solver,
// and leftover detections spawn new tracks.
//
// A Tracker is strictly frame-sequential and not safe for concurrent use; the
// history queue and spawned track list are mutated in place. Process videos
// in parallel with independent Tracker instances, never by sharing one.
type Tracker struct {
	trackWindow       int
	scorer            Scorer
	matcher           Matcher
	candidateMaker    CandidateMaker
	minNewTrackPoints int

	queue   *MatchQueue
	spawned []*Track

	saveTracked bool
	trackedByT  map[int][]*Instance
}

// NewTracker creates a tracker from cfg. Configuration constraints are
// validated here; the tracking path itself never fails.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid tracker config")
	}
	tr := &Tracker{
		trackWindow:       cfg.TrackWindow,
		scorer:            cfg.scorer(),
		matcher:           cfg.matcher(),
		candidateMaker:    cfg.candidateMaker(),
		minNewTrackPoints: cfg.MinNewTrackPoints,
		queue:             NewMatchQueue(cfg.TrackWindow),
		saveTracked:       cfg.SaveTrackedInstances,
	}
	if tr.saveTracked {
		tr.trackedByT = make(map[int][]*Instance)
	}
	return tr, nil
}

// NewFlowTracker creates a tracker pre-configured for optical-flow-shifted
// candidates with keypoint similarity and greedy matching.
func NewFlowTracker(trackWindow int) *Tracker {
	cfg := DefaultConfig()
	cfg.TrackWindow = trackWindow
	tr, err := NewTracker(cfg)
	if err != nil {
		panic(err)
	}
	return tr
}

// NewSimpleTracker creates a tracker pre-configured for raw historical
// candidates with IoU similarity and optimal matching.
func NewSimpleTracker(trackWindow int) *Tracker {
	cfg := DefaultConfig()
	cfg.TrackWindow = trackWindow
	cfg.Similarity = SimilarityIoU
	cfg.Matching = MatchingOptimal
	cfg.Candidates = CandidatesSimple
	tr, err := NewTracker(cfg)
	if err != nil {
		panic(err)
	}
	return tr
}

// Track performs one tracking step at the timestep following the last queue
// entry (0 for an empty queue). img may be empty for candidate makers that do
// not use frame images.
func (tr *Tracker) Track(untracked []*Instance, img gocv.Mat) []*Instance {
	t := 0
	if last, ok := tr.queue.Last(); ok {
		t = last.T + 1
	}
	return tr.TrackAt(untracked, img, t)
}

// TrackAt performs one tracking step at an explicit timestep.
//
// Every detection ends in exactly one of three states: matched to an existing
// track, spawned as a new track, or dropped (unmatched with fewer than the
// spawn threshold of visible keypoints). The returned instances are copies of
// the input with Track and TrackingScore set, in detection-input order with
// dropped detections omitted. An empty detection list still records an empty
// history entry for the timestep.
func (tr *Tracker) TrackAt(untracked []*Instance, img gocv.Mat, t int) []*Instance {
	resolved := make(map[int]*Instance, len(untracked))

	if len(untracked) > 0 {
		candidates := tr.candidateMaker.Candidates(tr.queue, t, img)
		if len(candidates) > 0 {
			tr.matchCandidates(untracked, candidates, resolved)
		}
	}

	// Spawn a new track for each unmatched detection that qualifies.
	for i, inst := range untracked {
		if _, ok := resolved[i]; ok {
			continue
		}
		if inst.NumVisiblePoints() < tr.minNewTrackPoints {
			continue
		}
		tracked := *inst
		tracked.Track = tr.spawnTrack(t)
		resolved[i] = &tracked
	}

	trackedInstances := make([]*Instance, 0, len(resolved))
	for i := range untracked {
		if inst, ok := resolved[i]; ok {
			trackedInstances = append(trackedInstances, inst)
		}
	}

	frameImg := gocv.NewMat()
	if !img.Closed() && !img.Empty() {
		frameImg.Close()
		frameImg = img.Clone()
	}
	tr.queue.Append(MatchedFrame{T: t, Instances: trackedInstances, Img: frameImg})

	if tr.saveTracked {
		tr.trackedByT[t] = trackedInstances
	}
	return trackedInstances
}

// matchCandidates scores detections against the best candidate per track,
// solves the assignment and fills resolved with the matched detections.
func (tr *Tracker) matchCandidates(untracked []*Instance, candidates []Candidate, resolved map[int]*Instance) {
	// Group candidates by track, preserving first-seen track order.
	var trackOrder []*Track
	byTrack := make(map[*Track][]Candidate)
	for _, cand := range candidates {
		track := cand.GetTrack()
		if _, ok := byTrack[track]; !ok {
			trackOrder = append(trackOrder, track)
		}
		byTrack[track] = append(byTrack[track], cand)
	}

	// Similarity matrix between detections and the best candidate per track.
	cache := NewScoreCache()
	nDet, nTracks := len(untracked), len(trackOrder)
	sims := mat.NewDense(nDet, nTracks, nil)
	best := make([][]Candidate, nDet)
	for i, inst := range untracked {
		best[i] = make([]Candidate, nTracks)
		for j, track := range trackOrder {
			trackCandidates := byTrack[track]
			// A NaN score never displaces a finite one in either direction,
			// so a track only costs +Inf when all its candidates score NaN.
			bestIdx := 0
			bestScore := tr.scorer.Score(cache, inst, trackCandidates[0])
			for k := 1; k < len(trackCandidates); k++ {
				score := tr.scorer.Score(cache, inst, trackCandidates[k])
				if score > bestScore || (math.IsNaN(bestScore) && !math.IsNaN(score)) {
					bestIdx, bestScore = k, score
				}
			}
			best[i][j] = trackCandidates[bestIdx]
			sims.Set(i, j, bestScore)
		}
	}

	// Costs are negated similarities with NaN normalized to +Inf.
	cost := mat.NewDense(nDet, nTracks, nil)
	for i := 0; i < nDet; i++ {
		for j := 0; j < nTracks; j++ {
			s := sims.At(i, j)
			if math.IsNaN(s) {
				cost.Set(i, j, math.Inf(1))
			} else {
				cost.Set(i, j, -s)
			}
		}
	}

	for _, edge := range tr.matcher.Match(cost) {
		tracked := *untracked[edge.Detection]
		tracked.Track = best[edge.Detection][edge.Track].GetTrack()
		tracked.TrackingScore = sims.At(edge.Detection, edge.Track)
		resolved[edge.Detection] = &tracked
	}
}

func (tr *Tracker) spawnTrack(t int) *Track {
	track := &Track{
		ID:        uuid.New(),
		SpawnedOn: t,
		Name:      fmt.Sprintf("track_%d", len(tr.spawned)),
	}
	tr.spawned = append(tr.spawned, track)
	return track
}

// SpawnedTracks returns every track created so far, in spawn order.
func (tr *Tracker) SpawnedTracks() []*Track {
	return tr.spawned
}

// UniqueTracksInQueue returns the distinct tracks present in the history
// window, in first-seen order.
func (tr *Tracker) UniqueTracksInQueue() []*Track {
	var tracks []*Track
	seen := make(map[*Track]struct{})
	for _, entry := range tr.queue.Entries() {
		for _, inst := range entry.Instances {
			if inst.Track == nil {
				continue
			}
			if _, ok := seen[inst.Track]; ok {
				continue
			}
			seen[inst.Track] = struct{}{}
			tracks = append(tracks, inst.Track)
		}
	}
	return tracks
}

// TrackedInstances returns the saved per-timestep output. Nil unless
// SaveTrackedInstances was enabled.
func (tr *Tracker) TrackedInstances() map[int][]*Instance {
	return tr.trackedByT
}

// Close releases the frame images held by the history window.
func (tr *Tracker) Close() {
	tr.queue.Close()
}
