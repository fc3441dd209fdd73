package tracker

import (
	"image"

	"gocv.io/x/gocv"
)

// FlowCandidateMaker proposes candidates by projecting historical instances
// into the current frame with pyramidal Lucas-Kanade optical flow. Keypoints
// the flow solver cannot carry over become missing in the resulting
// ShiftedInstance, and instances that keep too few keypoints are discarded.
type FlowCandidateMaker struct {
	// MinPoints is the number of found keypoints a shifted instance must
	// exceed to be kept as a candidate.
	MinPoints int
	// ImgScale downscales both images before flow computation. Keypoints are
	// scaled by the same factor before the call and divided back after.
	ImgScale float64
	// WindowSize is the flow window considered at each pyramid level.
	WindowSize int
	// MaxLevels is the number of pyramid scale levels.
	MaxLevels int

	// SaveShifted retains every produced shifted instance in Shifted, keyed
	// by (source timestep, destination timestep), for diagnostics.
	SaveShifted bool
	Shifted     map[[2]int][]*ShiftedInstance
}

// Candidates implements CandidateMaker. Queue entries without a stored frame
// image or without instances contribute nothing.
func (m *FlowCandidateMaker) Candidates(queue *MatchQueue, t int, img gocv.Mat) []Candidate {
	if img.Closed() || img.Empty() {
		return nil
	}
	var pool []Candidate
	for _, entry := range queue.Entries() {
		if entry.Img.Closed() || entry.Img.Empty() || len(entry.Instances) == 0 {
			continue
		}
		shifted := m.shiftInstances(entry.Instances, entry.Img, img)
		for _, si := range shifted {
			pool = append(pool, si)
		}
		if m.SaveShifted {
			if m.Shifted == nil {
				m.Shifted = make(map[[2]int][]*ShiftedInstance)
			}
			m.Shifted[[2]int{entry.T, t}] = shifted
		}
	}
	return pool
}

// shiftInstances projects every reference instance from refImg into newImg.
func (m *FlowCandidateMaker) shiftInstances(refInstances []*Instance, refImg, newImg gocv.Mat) []*ShiftedInstance {
	refGray, refOwned := toGray(refImg)
	newGray, newOwned := toGray(newImg)

	scale := m.ImgScale
	if scale != 1.0 {
		// The intermediate grayscale Mats are released here once the scaled
		// copies take over; each Mat gets exactly one Close.
		scaledRef := gocv.NewMat()
		gocv.Resize(refGray, &scaledRef, image.Point{}, scale, scale, gocv.InterpolationLinear)
		if refOwned {
			refGray.Close()
		}
		refGray, refOwned = scaledRef, true

		scaledNew := gocv.NewMat()
		gocv.Resize(newGray, &scaledNew, image.Point{}, scale, scale, gocv.InterpolationLinear)
		if newOwned {
			newGray.Close()
		}
		newGray, newOwned = scaledNew, true
	}
	if refOwned {
		defer refGray.Close()
	}
	if newOwned {
		defer newGray.Close()
	}

	// Flatten the visible keypoints of all instances into one point matrix.
	// Missing keypoints cannot be tracked and are re-inserted as missing when
	// the results are split back per instance.
	total := 0
	for _, inst := range refInstances {
		total += inst.NumVisiblePoints()
	}
	if total == 0 {
		return nil
	}
	prevPts := gocv.NewMatWithSize(total, 1, gocv.MatTypeCV32FC2)
	defer prevPts.Close()
	k := 0
	for _, inst := range refInstances {
		for _, p := range inst.Points {
			if p.IsMissing() {
				continue
			}
			prevPts.SetFloatAt(k, 0, float32(p.X*scale))
			prevPts.SetFloatAt(k, 1, float32(p.Y*scale))
			k++
		}
	}

	nextPts := gocv.NewMat()
	defer nextPts.Close()
	status := gocv.NewMat()
	defer status.Close()
	flowErr := gocv.NewMat()
	defer flowErr.Close()

	criteria := gocv.NewTermCriteria(gocv.Count|gocv.EPS, 30, 0.01)
	gocv.CalcOpticalFlowPyrLKWithParams(
		refGray, newGray, prevPts, nextPts, &status, &flowErr,
		image.Pt(m.WindowSize, m.WindowSize), m.MaxLevels, criteria, 0, 1e-4,
	)

	// Split results back per instance.
	shifted := make([]*ShiftedInstance, 0, len(refInstances))
	k = 0
	for _, inst := range refInstances {
		points := make([]Point, len(inst.Points))
		found := 0
		errSum := 0.0
		for i, p := range inst.Points {
			if p.IsMissing() {
				points[i] = MissingPoint()
				continue
			}
			if status.GetUCharAt(k, 0) == 1 {
				points[i] = Point{
					X: float64(nextPts.GetFloatAt(k, 0)) / scale,
					Y: float64(nextPts.GetFloatAt(k, 1)) / scale,
				}
				errSum += float64(flowErr.GetFloatAt(k, 0))
				found++
			} else {
				points[i] = MissingPoint()
			}
			k++
		}
		if found > m.MinPoints {
			shiftScore := -errSum / float64(found)
			shifted = append(shifted, NewShiftedInstance(inst, points, shiftScore))
		}
	}
	return shifted
}

// toGray converts a multi-channel image to single-channel grayscale. The
// returned bool reports whether the caller owns (and must close) the result.
func toGray(img gocv.Mat) (gocv.Mat, bool) {
	if img.Channels() == 1 {
		return img, false
	}
	gray := gocv.NewMat()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	return gray, true
}
