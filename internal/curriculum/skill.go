package curriculum

import (
	"math"
	"slices"

	"github.com/cp-path-builder/backend/internal/domain"
)

const maxVolumeBonus = 200

// EstimateSkill derives a topic rating from the ratings of problems solved
// under that topic.
//
// The 75th percentile solve is the baseline. Volume adds up to 200 on a log
// scale, and a gap between the hardest solve and the median subtracts a
// quarter of itself. The result is clamped to the rating scale; no history
// means the floor rating.
func EstimateSkill(ratings []int) int {
	if len(ratings) == 0 {
		return domain.MinRating
	}

	sorted := slices.Clone(ratings)
	slices.Sort(sorted)
	n := len(sorted)

	baseline := sorted[min(int(float64(n)*0.75), n-1)]
	volumeBonus := min(int(math.Log(float64(n+1))*40), maxVolumeBonus)

	median := sorted[n/2]
	consistencyPenalty := max(0, (sorted[n-1]-median)/4)

	estimated := baseline + volumeBonus - consistencyPenalty
	return max(domain.MinRating, min(domain.MaxRating, estimated))
}
