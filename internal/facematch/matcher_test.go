package facematch

import (
	"testing"

	"gocv.io/x/gocv"
)

func pair(best, second float64) []gocv.DMatch {
	return []gocv.DMatch{{Distance: best}, {Distance: second}}
}

func TestScoreRatioMatchesAppliesLoweRatio(t *testing.T) {
	knn := [][]gocv.DMatch{
		pair(10, 100), // passes: 10 < 75
		pair(74, 100), // passes: 74 < 75
		pair(75, 100), // fails: not strictly less
		pair(90, 100), // fails
	}
	if got := ScoreRatioMatches(knn); got != 2 {
		t.Fatalf("ScoreRatioMatches = %d, want 2", got)
	}
}

func TestScoreRatioMatchesCapsAtFive(t *testing.T) {
	knn := make([][]gocv.DMatch, 8)
	for i := range knn {
		knn[i] = pair(float64(i+1), 100)
	}
	if got := ScoreRatioMatches(knn); got != maxFeatureMatches {
		t.Fatalf("ScoreRatioMatches = %d, want %d", got, maxFeatureMatches)
	}
}

func TestScoreRatioMatchesSkipsIncompletePairs(t *testing.T) {
	knn := [][]gocv.DMatch{
		{{Distance: 5}}, // only one neighbor, ratio test undefined
		{},
		pair(10, 100),
	}
	if got := ScoreRatioMatches(knn); got != 1 {
		t.Fatalf("ScoreRatioMatches = %d, want 1", got)
	}
}

func TestScoreRatioMatchesEmptyInput(t *testing.T) {
	if got := ScoreRatioMatches(nil); got != 0 {
		t.Fatalf("ScoreRatioMatches(nil) = %d, want 0", got)
	}
}
