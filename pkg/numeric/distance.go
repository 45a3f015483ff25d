package numeric

// SqDist returns the squared Euclidean distance between samples i and j of a
// channel-major matrix (channels[d][sample]).
func SqDist(channels [][]float64, i, j int) float64 {
	var dist float64
	for _, ch := range channels {
		diff := ch[i] - ch[j]
		dist += diff * diff
	}
	return dist
}

// PairwiseSqDist returns the condensed vector of squared distances between
// every unordered pair of samples, ordered (0,1), (0,2), ..., (n-2,n-1).
func PairwiseSqDist(channels [][]float64) []float64 {
	if len(channels) == 0 {
		return nil
	}
	n := len(channels[0])
	if n < 2 {
		return nil
	}
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, SqDist(channels, i, j))
		}
	}
	return out
}

// MedianHeuristicGamma returns 1/median of all pairwise squared distances,
// the usual bandwidth default for a Gaussian kernel. Signals with fewer than
// two samples, or whose median distance is zero, get gamma = 1.
func MedianHeuristicGamma(channels [][]float64) float64 {
	dists := PairwiseSqDist(channels)
	if len(dists) == 0 {
		return 1.0
	}
	median := MedianInPlace(dists)
	if median == 0 {
		return 1.0
	}
	return 1.0 / median
}
