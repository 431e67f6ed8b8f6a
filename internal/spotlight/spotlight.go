// Package spotlight picks one repository to highlight using activity-weighted sampling.
package spotlight

import (
	"math/rand/v2"

	"ecosystem-dashboard/internal/model"
)

// Source yields uniform floats in [0, 1).
type Source interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// Default draws from the process-wide generator and is safe for concurrent use.
var Default Source = globalSource{}

// Weight balances recent activity against obscurity. n is the number of candidates.
func Weight(r model.Repository, n int) float64 {
	activity := r.Activity()
	if activity < 0 {
		activity = 0
	}
	return float64(activity)/float64(n) + 1/float64(r.Stars+1)
}

// Weights returns Weight for every repository in list order and their sum.
func Weights(repos []model.Repository) ([]float64, float64) {
	weights := make([]float64, len(repos))
	var total float64
	for i, r := range repos {
		weights[i] = Weight(r, len(repos))
		total += weights[i]
	}
	return weights, total
}

// Pick draws a repository from src. ok is false when repos is empty.
func Pick(repos []model.Repository, src Source) (model.Repository, bool) {
	if len(repos) == 0 {
		return model.Repository{}, false
	}
	_, total := Weights(repos)
	return SelectAt(repos, src.Float64()*total)
}

// SelectAt returns the first repository whose cumulative weight strictly exceeds draw.
// The last repository is returned when rounding lets the walk run off the end.
func SelectAt(repos []model.Repository, draw float64) (model.Repository, bool) {
	if len(repos) == 0 {
		return model.Repository{}, false
	}
	weights, _ := Weights(repos)
	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if draw < cumulative {
			return repos[i], true
		}
	}
	return repos[len(repos)-1], true
}
