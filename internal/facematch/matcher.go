// Package facematch compares the portrait on an identity document against a
// live photo using classical computer vision: cascade face detection across
// rotations, CLAHE contrast normalization, and ORB feature matching. It is
// deliberately not a face-recognition embedding system; the score is a count
// of strong local feature matches on a fixed 0-5 scale.
package facematch

import (
	"fmt"
	"image"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	// faceCanvasSize is the square side both face crops are resized to
	// before feature extraction.
	faceCanvasSize = 128

	// maxFeatureMatches caps the raw score.
	maxFeatureMatches = 5

	// loweRatio rejects a nearest-neighbor match unless it is this much
	// closer than the second-nearest.
	loweRatio = 0.75

	// DefaultMatchThreshold is the minimum raw score for a pass.
	DefaultMatchThreshold = 4
)

// Outcome is the result of one face comparison. FaceA and FaceB hold the
// processed 128x128 crops re-encoded as PNG when both faces were isolated.
type Outcome struct {
	Match   bool
	Score   int
	Message string
	FaceA   []byte
	FaceB   []byte
}

// Matcher owns the cascade detector for its lifetime. It is constructed once
// at startup and shared read-only across concurrent comparisons.
type Matcher struct {
	cascade       gocv.CascadeClassifier
	cascadeLoaded bool
	threshold     int
	logger        *zap.Logger
}

// NewMatcher loads the Haar cascade at cascadePath. A missing or unloadable
// cascade does not fail construction: isolation degrades to a deterministic
// center-weighted crop instead.
func NewMatcher(cascadePath string, threshold int, logger *zap.Logger) *Matcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	m := &Matcher{
		cascade:   gocv.NewCascadeClassifier(),
		threshold: threshold,
		logger:    logger.Named("facematch"),
	}
	if cascadePath != "" && m.cascade.Load(cascadePath) {
		m.cascadeLoaded = true
	} else {
		m.logger.Warn("face cascade not loaded, falling back to center crop",
			zap.String("cascade_path", cascadePath))
	}
	return m
}

// Close releases the detector.
func (m *Matcher) Close() {
	m.cascade.Close() //nolint:errcheck
}

// Compare runs the full isolate/preprocess/match pipeline on two raw image
// buffers. It never fails hard: every internal error becomes a non-matching
// outcome with the error text in the message.
func (m *Matcher) Compare(imageA, imageB []byte) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("face comparison panicked", zap.Any("panic", r))
			outcome = Outcome{Score: 0, Message: fmt.Sprintf("face comparison failed: %v", r)}
		}
	}()

	faceA, ok := m.isolateFace(imageA)
	if !ok {
		return Outcome{Score: 0, Message: "no face found in the first image"}
	}
	defer faceA.Close()

	faceB, ok := m.isolateFace(imageB)
	if !ok {
		return Outcome{Score: 0, Message: "no face found in the second image"}
	}
	defer faceB.Close()

	normA := m.preprocess(faceA)
	defer normA.Close()
	normB := m.preprocess(faceB)
	defer normB.Close()

	score, message := m.compareFeatures(normA, normB)
	matched := score >= m.threshold

	outcome = Outcome{
		Match:   matched,
		Score:   score,
		Message: fmt.Sprintf("%s; score %d/%d", message, score, maxFeatureMatches),
		FaceA:   encodePNG(normA),
		FaceB:   encodePNG(normB),
	}
	if matched {
		outcome.Message = fmt.Sprintf("faces match; score %d/%d", score, maxFeatureMatches)
	}

	m.logger.Info("face comparison completed",
		zap.Int("score", score),
		zap.Bool("match", matched))
	return outcome
}

// isolateFace decodes the buffer and hunts for the largest detectable face
// across the four clockwise rotations. The returned Mat is owned by the
// caller.
func (m *Matcher) isolateFace(data []byte) (gocv.Mat, bool) {
	img, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil || img.Empty() {
		return gocv.Mat{}, false
	}
	defer img.Close()

	if img.Channels() == 4 {
		bgr := gocv.NewMat()
		gocv.CvtColor(img, &bgr, gocv.ColorBGRAToBGR)
		img.Close()
		img = bgr
	}

	if m.cascadeLoaded {
		if face, ok := m.detectAcrossRotations(img); ok {
			return face, true
		}
		return gocv.Mat{}, false
	}

	return centerWeightedCrop(img), true
}

// rotationFlags covers 90, 180 and 270 degrees clockwise; the unrotated
// attempt is handled separately.
var rotationFlags = []gocv.RotateFlag{
	gocv.Rotate90Clockwise,
	gocv.Rotate180Clockwise,
	gocv.Rotate90CounterClockwise,
}

func (m *Matcher) detectAcrossRotations(img gocv.Mat) (gocv.Mat, bool) {
	var best gocv.Mat
	bestArea := 0
	found := false

	consider := func(candidate gocv.Mat) {
		rect, ok := m.detectLargestFace(candidate)
		if !ok {
			return
		}
		area := rect.Dx() * rect.Dy()
		if area <= bestArea {
			return
		}
		region := candidate.Region(rect)
		crop := region.Clone()
		region.Close()
		if found {
			best.Close()
		}
		best = crop
		bestArea = area
		found = true
	}

	consider(img)
	for _, flag := range rotationFlags {
		rotated := gocv.NewMat()
		gocv.Rotate(img, &rotated, flag)
		consider(rotated)
		rotated.Close()
	}

	if !found {
		return gocv.Mat{}, false
	}
	return best, true
}

// detectLargestFace runs the cascade on a grayscale copy and returns the
// biggest detected rectangle.
func (m *Matcher) detectLargestFace(img gocv.Mat) (image.Rectangle, bool) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	const (
		scaleFactor  = 1.1
		minNeighbors = 4
	)
	minSize := image.Pt(30, 30)
	noMaxSize := image.Pt(0, 0)
	rects := m.cascade.DetectMultiScaleWithParams(gray, scaleFactor, minNeighbors, 0, minSize, noMaxSize)
	if len(rects) == 0 {
		return image.Rectangle{}, false
	}

	best := rects[0]
	for _, r := range rects[1:] {
		if r.Dx()*r.Dy() > best.Dx()*best.Dy() {
			best = r
		}
	}
	return best, true
}

// centerWeightedCrop is the detector-unavailable fallback: a square centered
// horizontally, anchored a third of the way down, sized at half the smaller
// image dimension, clamped to the image bounds.
func centerWeightedCrop(img gocv.Mat) gocv.Mat {
	width := img.Cols()
	height := img.Rows()

	side := width
	if height < side {
		side = height
	}
	side /= 2
	if side < 1 {
		side = 1
	}

	x := (width - side) / 2
	y := height / 3
	if x+side > width {
		x = width - side
	}
	if y+side > height {
		y = height - side
	}
	if x < 0 {
		x = 0
	}
	if y < 0 {
		y = 0
	}

	region := img.Region(image.Rect(x, y, x+side, y+side))
	defer region.Close()
	return region.Clone()
}

// preprocess normalizes a face crop for feature extraction: grayscale, CLAHE
// local contrast equalization, back to three channels, fixed 128x128 canvas.
// Any failure degrades to a plain resize of the original crop; preprocessing
// must never abort a comparison.
func (m *Matcher) preprocess(face gocv.Mat) gocv.Mat {
	normalized := gocv.NewMat()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("preprocess: %v", r)
			}
		}()

		gray := gocv.NewMat()
		defer gray.Close()
		gocv.CvtColor(face, &gray, gocv.ColorBGRToGray)

		clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
		defer clahe.Close()
		equalized := gocv.NewMat()
		defer equalized.Close()
		clahe.Apply(gray, &equalized)

		restored := gocv.NewMat()
		defer restored.Close()
		gocv.CvtColor(equalized, &restored, gocv.ColorGrayToBGR)

		gocv.Resize(restored, &normalized, image.Pt(faceCanvasSize, faceCanvasSize), 0, 0, gocv.InterpolationLinear)
		return nil
	}()
	if err == nil && !normalized.Empty() {
		return normalized
	}
	if err != nil {
		m.logger.Warn("face preprocessing failed, using plain resize", zap.Error(err))
	}
	normalized.Close()

	resized := gocv.NewMat()
	gocv.Resize(face, &resized, image.Pt(faceCanvasSize, faceCanvasSize), 0, 0, gocv.InterpolationLinear)
	return resized
}

// compareFeatures extracts ORB keypoints on both normalized faces, matches
// descriptors with k-nearest-neighbor Hamming distance, filters through
// Lowe's ratio test, and scores by the surviving match count capped at five.
func (m *Matcher) compareFeatures(faceA, faceB gocv.Mat) (int, string) {
	orb := gocv.NewORB()
	defer orb.Close()

	maskA := gocv.NewMat()
	defer maskA.Close()
	maskB := gocv.NewMat()
	defer maskB.Close()

	_, descA := orb.DetectAndCompute(faceA, maskA)
	defer descA.Close()
	_, descB := orb.DetectAndCompute(faceB, maskB)
	defer descB.Close()

	if descA.Empty() || descB.Empty() {
		return 0, "features could not be extracted from one or both faces"
	}

	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	knn := matcher.KnnMatch(descA, descB, 2)
	score := ScoreRatioMatches(knn)
	if score == 0 {
		return 0, "no strong feature matches between faces"
	}
	return score, "feature matches found"
}

// ScoreRatioMatches applies Lowe's ratio test to raw KNN match pairs, sorts
// the survivors by distance, and returns the count of the closest matches
// capped at five.
func ScoreRatioMatches(knn [][]gocv.DMatch) int {
	good := make([]gocv.DMatch, 0, len(knn))
	for _, pair := range knn {
		if len(pair) < 2 {
			continue
		}
		if pair[0].Distance < loweRatio*pair[1].Distance {
			good = append(good, pair[0])
		}
	}

	// Only the match count matters, so sorting by distance then capping is
	// equivalent to taking the five strongest matches.
	if len(good) > maxFeatureMatches {
		return maxFeatureMatches
	}
	return len(good)
}

func encodePNG(img gocv.Mat) []byte {
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil
	}
	defer buf.Close()
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	return data
}
