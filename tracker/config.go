package tracker

import "github.com/pkg/errors"

// SimilarityType selects the pairwise instance similarity scorer.
type SimilarityType uint16

const (
	// SimilarityKeypoint scores by per-keypoint proximity.
	SimilarityKeypoint SimilarityType = iota
	// SimilarityCentroid scores by negative centroid distance.
	SimilarityCentroid
	// SimilarityIoU scores by bounding box overlap.
	SimilarityIoU
)

// MatchingType selects the bipartite assignment solver.
type MatchingType uint16

const (
	// MatchingGreedy picks the cheapest remaining edge repeatedly.
	MatchingGreedy MatchingType = iota
	// MatchingOptimal solves the linear assignment problem (Kuhn-Munkres).
	MatchingOptimal
)

// CandidateType selects the candidate generation strategy.
type CandidateType uint16

const (
	// CandidatesSimple reuses raw historical instances directly.
	CandidatesSimple CandidateType = iota
	// CandidatesFlow projects historical instances via optical flow.
	CandidatesFlow
	// CandidatesKalman predicts per-track motion with a Kalman filter.
	CandidatesKalman
)

// ParseSimilarity maps a configuration name to a SimilarityType.
func ParseSimilarity(name string) (SimilarityType, error) {
	switch name {
	case "keypoint":
		return SimilarityKeypoint, nil
	case "centroid":
		return SimilarityCentroid, nil
	case "iou":
		return SimilarityIoU, nil
	}
	return 0, errors.Errorf("unknown similarity function %q", name)
}

// ParseMatching maps a configuration name to a MatchingType.
func ParseMatching(name string) (MatchingType, error) {
	switch name {
	case "greedy":
		return MatchingGreedy, nil
	case "optimal":
		return MatchingOptimal, nil
	}
	return 0, errors.Errorf("unknown matching function %q", name)
}

// ParseCandidates maps a configuration name to a CandidateType.
func ParseCandidates(name string) (CandidateType, error) {
	switch name {
	case "simple":
		return CandidatesSimple, nil
	case "flow":
		return CandidatesFlow, nil
	case "kalman":
		return CandidatesKalman, nil
	}
	return 0, errors.Errorf("unknown candidate maker %q", name)
}

// Config holds every tracker knob. Start from DefaultConfig and override.
type Config struct {
	// TrackWindow is how many recent frames to keep as matching history.
	TrackWindow int
	Similarity  SimilarityType
	Matching    MatchingType
	Candidates  CandidateType

	// MinPoints gates candidate instances by visible keypoint count.
	MinPoints int
	// ImgScale, OFWindowSize and OFMaxLevels configure the optical flow
	// computation of the flow candidate maker.
	ImgScale     float64
	OFWindowSize int
	OFMaxLevels  int
	// KalmanDt is the per-frame time step of the kalman candidate maker.
	KalmanDt float64

	// MinNewTrackPoints is the visible keypoint count an unmatched detection
	// needs to spawn a new track.
	MinNewTrackPoints int

	// SaveShiftedInstances retains flow-shifted candidates for diagnostics.
	SaveShiftedInstances bool
	// SaveTrackedInstances retains tracked output per timestep.
	SaveTrackedInstances bool
}

// DefaultConfig returns the stock tracker configuration.
func DefaultConfig() Config {
	return Config{
		TrackWindow:  5,
		Similarity:   SimilarityKeypoint,
		Matching:     MatchingGreedy,
		Candidates:   CandidatesFlow,
		MinPoints:    0,
		ImgScale:     1.0,
		OFWindowSize: 21,
		OFMaxLevels:  3,
		KalmanDt:     1.0,
	}
}

func (cfg Config) validate() error {
	if cfg.TrackWindow < 0 {
		return errors.Errorf("track window must be >= 0, got %d", cfg.TrackWindow)
	}
	if cfg.MinPoints < 0 {
		return errors.Errorf("min points must be >= 0, got %d", cfg.MinPoints)
	}
	if cfg.MinNewTrackPoints < 0 {
		return errors.Errorf("min new track points must be >= 0, got %d", cfg.MinNewTrackPoints)
	}
	switch cfg.Similarity {
	case SimilarityKeypoint, SimilarityCentroid, SimilarityIoU:
	default:
		return errors.Errorf("unknown similarity function %d", cfg.Similarity)
	}
	switch cfg.Matching {
	case MatchingGreedy, MatchingOptimal:
	default:
		return errors.Errorf("unknown matching function %d", cfg.Matching)
	}
	switch cfg.Candidates {
	case CandidatesSimple:
	case CandidatesFlow:
		if cfg.ImgScale <= 0 {
			return errors.Errorf("image scale must be > 0, got %f", cfg.ImgScale)
		}
		if cfg.OFWindowSize < 3 {
			return errors.Errorf("optical flow window size must be >= 3, got %d", cfg.OFWindowSize)
		}
		if cfg.OFMaxLevels < 0 {
			return errors.Errorf("optical flow max levels must be >= 0, got %d", cfg.OFMaxLevels)
		}
	case CandidatesKalman:
		if cfg.KalmanDt < 0 {
			return errors.Errorf("kalman time step must be >= 0, got %f", cfg.KalmanDt)
		}
	default:
		return errors.Errorf("unknown candidate maker %d", cfg.Candidates)
	}
	return nil
}

func (cfg Config) scorer() Scorer {
	switch cfg.Similarity {
	case SimilarityCentroid:
		return CentroidSimilarity{}
	case SimilarityIoU:
		return IoUSimilarity{}
	default:
		return KeypointSimilarity{}
	}
}

func (cfg Config) matcher() Matcher {
	if cfg.Matching == MatchingOptimal {
		return HungarianMatcher{}
	}
	return GreedyMatcher{}
}

func (cfg Config) candidateMaker() CandidateMaker {
	switch cfg.Candidates {
	case CandidatesSimple:
		return &SimpleCandidateMaker{MinPoints: cfg.MinPoints}
	case CandidatesKalman:
		return &KalmanCandidateMaker{MinPoints: cfg.MinPoints, Dt: cfg.KalmanDt}
	default:
		return &FlowCandidateMaker{
			MinPoints:   cfg.MinPoints,
			ImgScale:    cfg.ImgScale,
			WindowSize:  cfg.OFWindowSize,
			MaxLevels:   cfg.OFMaxLevels,
			SaveShifted: cfg.SaveShiftedInstances,
		}
	}
}
