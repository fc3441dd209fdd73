package tracker

import "math"

// ScoreCache memoizes per-candidate centroids and bounding boxes within a
// single tracking step. It is keyed by candidate identity and created fresh
// for every step; nothing in this package holds a cache across steps.
type ScoreCache struct {
	centroids map[Candidate]Point
	bboxes    map[Candidate]Rectangle
}

// NewScoreCache creates an empty cache for one tracking step.
func NewScoreCache() *ScoreCache {
	return &ScoreCache{
		centroids: make(map[Candidate]Point),
		bboxes:    make(map[Candidate]Rectangle),
	}
}

func (c *ScoreCache) centroid(inst Candidate) Point {
	if p, ok := c.centroids[inst]; ok {
		return p
	}
	p := inst.Centroid()
	c.centroids[inst] = p
	return p
}

func (c *ScoreCache) boundingBox(inst Candidate) Rectangle {
	if r, ok := c.bboxes[inst]; ok {
		return r
	}
	r := inst.BoundingBox()
	c.bboxes[inst] = r
	return r
}

// Scorer computes a pairwise similarity between a reference candidate and a
// query instance. Higher is more similar. Scorers must return a finite value
// or NaN, never panic on mismatched visibility.
type Scorer interface {
	Score(cache *ScoreCache, ref, query Candidate) float64
}

// KeypointSimilarity scores by per-keypoint proximity: the sum of
// exp(-squared distance) over keypoints visible in both candidates, divided
// by the reference's visible keypoint count. NaN when the reference has no
// visible keypoints.
type KeypointSimilarity struct{}

// Score implements Scorer.
func (KeypointSimilarity) Score(_ *ScoreCache, ref, query Candidate) float64 {
	refPts := ref.GetPoints()
	queryPts := query.GetPoints()

	refVisible := 0
	sum := 0.0
	for i, rp := range refPts {
		if !rp.IsMissing() {
			refVisible++
		}
		if i >= len(queryPts) {
			continue
		}
		qp := queryPts[i]
		if rp.IsMissing() || qp.IsMissing() {
			continue
		}
		dx := qp.X - rp.X
		dy := qp.Y - rp.Y
		sum += math.Exp(-(dx*dx + dy*dy))
	}
	return sum / float64(refVisible)
}

// CentroidSimilarity scores by the negative euclidean distance between the
// median-keypoint centroids of the two candidates. Centroids are memoized in
// the step cache.
type CentroidSimilarity struct{}

// Score implements Scorer.
func (CentroidSimilarity) Score(cache *ScoreCache, ref, query Candidate) float64 {
	a := cache.centroid(ref)
	b := cache.centroid(query)
	return -euclideanDistance(a, b)
}

// IoUSimilarity scores by the intersection-over-union of the candidates'
// keypoint bounding boxes. Boxes are memoized in the step cache.
type IoUSimilarity struct{}

// Score implements Scorer.
func (IoUSimilarity) Score(cache *ScoreCache, ref, query Candidate) float64 {
	return IoU(cache.boundingBox(ref), cache.boundingBox(query))
}
