package quality

import "math"

// zScore is the 95% two-sided normal quantile used by the Wilson interval.
const zScore = 1.96

// flagPenalty is subtracted from the score once per flag.
const flagPenalty = 0.1

// WilsonLower is the Wilson score lower bound for a binomial proportion:
// the pessimistic estimate of the true upvote rate given n observed votes.
func WilsonLower(upvotes, downvotes int) float64 {
	n := float64(upvotes + downvotes)
	if n == 0 {
		return 0.5
	}
	z := zScore
	phat := float64(upvotes) / n
	num := phat + z*z/(2*n) - z*math.Sqrt(phat*(1-phat)/n+z*z/(4*n*n))
	return num / (1 + z*z/n)
}

// Score converts a vote tally into the bounded quality score: Wilson lower
// bound minus the flag penalty, clamped to [0,1]. Zero votes score the
// neutral prior 0.5.
func Score(upvotes, downvotes, flags int) float64 {
	score := WilsonLower(upvotes, downvotes)
	score -= flagPenalty * float64(flags)
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
