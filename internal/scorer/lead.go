// Package scorer computes lead-worthiness scores for discovered businesses.
//
// The scorer is a pure function over a Business: identical input always
// produces an identical score, so results can be cached and unit-tested in
// isolation. Absence of a website is the strongest positive signal, since
// those are the businesses most likely to buy web work.
package scorer

import "github.com/sells-group/leadscout/internal/model"

// Rubric weights. These are design parameters, not incidental constants;
// changing one changes every stored score going forward.
const (
	noWebsitePoints = 50

	ratingExcellentPoints = 15 // rating >= 4.5
	ratingGoodPoints      = 10 // rating >= 4.0
	ratingOkayPoints      = 5  // rating >= 3.0

	reviewsManyPoints = 15 // >= 100 reviews
	reviewsSomePoints = 10 // >= 20 reviews
	reviewsFewPoints  = 5  // >= 1 review

	phonePoints   = 10
	addressPoints = 10

	maxScore = 100
)

// Band labels a score for presentation.
type Band string

// Score bands. The thresholds live here because the scorer owns them.
const (
	BandHot  Band = "hot"  // score >= 65
	BandWarm Band = "warm" // score >= 35
	BandCold Band = "cold"
)

// Score returns the lead score for a business, in [0, 100].
func Score(b model.Business) int {
	score := 0

	if !b.HasWebsite() {
		score += noWebsitePoints
	}

	if b.Rating != nil {
		switch r := *b.Rating; {
		case r >= 4.5:
			score += ratingExcellentPoints
		case r >= 4.0:
			score += ratingGoodPoints
		case r >= 3.0:
			score += ratingOkayPoints
		}
	}

	if b.ReviewCount != nil {
		switch n := *b.ReviewCount; {
		case n >= 100:
			score += reviewsManyPoints
		case n >= 20:
			score += reviewsSomePoints
		case n >= 1:
			score += reviewsFewPoints
		}
	}

	if b.Phone != nil && *b.Phone != "" {
		score += phonePoints
	}
	if b.Address != nil && *b.Address != "" {
		score += addressPoints
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// BandFor maps a score to its presentation band.
func BandFor(score int) Band {
	switch {
	case score >= 65:
		return BandHot
	case score >= 35:
		return BandWarm
	default:
		return BandCold
	}
}
