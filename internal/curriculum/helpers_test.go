package curriculum

import (
	"github.com/cp-path-builder/backend/internal/domain"
)

func problem(id int64, rating int, solved int, tags ...string) domain.Problem {
	p := domain.Problem{
		ID:          id,
		ContestID:   1000 + int(id),
		Index:       "A",
		SolvedCount: solved,
		Tags:        tags,
	}
	if rating > 0 {
		r := rating
		p.Rating = &r
	}
	return p
}

func ids(problems []domain.Problem) []int64 {
	out := make([]int64, len(problems))
	for i := range problems {
		out[i] = problems[i].ID
	}
	return out
}

// stubSource returns a fixed draw and optionally reverses shuffled ranges
type stubSource struct {
	value   float64
	reverse bool
}

func (s stubSource) Float64() float64 { return s.value }

func (s stubSource) Shuffle(n int, swap func(i, j int)) {
	if !s.reverse {
		return
	}
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

func band(key int, problems ...domain.Problem) Band {
	return Band{Key: key, Problems: problems}
}

func sizedBand(key, size int) Band {
	problems := make([]domain.Problem, size)
	for i := range problems {
		problems[i] = problem(int64(key*1000+i), key, 10, "dp")
	}
	return band(key, problems...)
}
