package curriculum

import (
	"cmp"
	"maps"
	"math"
	"slices"

	"github.com/cp-path-builder/backend/internal/domain"
)

// Quotas maps a band key to the number of problems drawn from that band
type Quotas map[int]int

// Total sums all quotas
func (q Quotas) Total() int {
	total := 0
	for _, n := range q {
		total += n
	}
	return total
}

// Keys returns the band keys in ascending order
func (q Quotas) Keys() []int {
	return slices.Sorted(maps.Keys(q))
}

// modeWeights returns the per-band weight for n bands in ascending rating order
func modeWeights(mode domain.PathMode, n int) []int {
	weights := make([]int, n)
	for i := range weights {
		switch mode {
		case domain.PathModeLearning:
			weights[i] = n - i
		case domain.PathModeChallenge:
			weights[i] = i + 1
		default:
			weights[i] = 1
		}
	}
	return weights
}

// Allocate decides how many problems each non-empty band contributes.
//
// Each band first receives its weighted share of target, rounded half to
// even, at least 1 and at most the band size. The sum is then reconciled:
// a shortfall is handed to bands with the most spare capacity, a surplus is
// taken from bands with the largest quota without dropping any band below 1.
// When target is smaller than the number of bands the sum stays above
// target; the caller truncates the ordered result.
func Allocate(bands []Band, mode domain.PathMode, target int) Quotas {
	quotas := make(Quotas)
	if target <= 0 {
		return quotas
	}

	nonEmpty := make([]Band, 0, len(bands))
	for _, b := range bands {
		if b.Size() > 0 {
			nonEmpty = append(nonEmpty, b)
		}
	}
	if len(nonEmpty) == 0 {
		return quotas
	}

	weights := modeWeights(mode, len(nonEmpty))
	totalWeight := 0
	for _, w := range weights {
		totalWeight += w
	}

	allocated := 0
	for i, b := range nonEmpty {
		share := math.RoundToEven(float64(target) * float64(weights[i]) / float64(totalWeight))
		q := min(max(1, int(share)), b.Size())
		quotas[b.Key] = q
		allocated += q
	}

	diff := target - allocated
	switch {
	case diff > 0:
		order := slices.Clone(nonEmpty)
		slices.SortStableFunc(order, func(a, b Band) int {
			return cmp.Compare(b.Size()-quotas[b.Key], a.Size()-quotas[a.Key])
		})
		for _, b := range order {
			add := min(diff, b.Size()-quotas[b.Key])
			quotas[b.Key] += add
			diff -= add
			if diff == 0 {
				break
			}
		}
	case diff < 0:
		order := slices.Clone(nonEmpty)
		slices.SortStableFunc(order, func(a, b Band) int {
			return cmp.Compare(quotas[b.Key], quotas[a.Key])
		})
		for _, b := range order {
			remove := min(-diff, quotas[b.Key]-1)
			quotas[b.Key] -= remove
			diff += remove
			if diff == 0 {
				break
			}
		}
	}

	return quotas
}
