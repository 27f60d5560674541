package vectorstore

import "math"

// ScoreFromL2 normalizes an L2 distance into a [0,1] similarity score.
// 1/(1+dist) is the canonical conversion for this index; thresholds
// across the platform assume it.
func ScoreFromL2(dist float64) float64 {
	return 1 / (1 + dist)
}

// ScoreFromAtlasEuclidean converts the score Atlas reports for a
// euclidean vector index, 1/(1+d^2), into the canonical 1/(1+d) form so
// thresholds mean the same thing on both search paths.
func ScoreFromAtlasEuclidean(atlasScore float64) float64 {
	if atlasScore <= 0 {
		return 0
	}
	if atlasScore >= 1 {
		return 1
	}
	return ScoreFromL2(math.Sqrt(1/atlasScore - 1))
}

// L2Distance computes the euclidean distance between two vectors. A
// dimension mismatch yields +Inf so the record scores near zero
// instead of corrupting the ranking.
func L2Distance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
