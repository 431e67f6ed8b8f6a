// Package rollup folds deduplicated commit records into per-contributor and
// per-repository statistics.
package rollup

import (
	"time"

	"ecosystem-dashboard/internal/model"
)

// Windows are the trailing-window cut-offs of a run, fixed at its start.
type Windows struct {
	Month time.Time
	Week  time.Time
}

// WindowsAt returns the 30 and 7 day cut-offs relative to now.
func WindowsAt(now time.Time) Windows {
	return Windows{Month: now.AddDate(0, 0, -30), Week: now.AddDate(0, 0, -7)}
}

// InMonth reports whether t falls strictly inside the trailing 30 days.
func (w Windows) InMonth(t time.Time) bool { return t.After(w.Month) }

// InWeek reports whether t falls strictly inside the trailing 7 days.
func (w Windows) InWeek(t time.Time) bool { return t.After(w.Week) }

// Result is the immutable outcome of a fold.
type Result struct {
	// Contributors in the order their login was first seen.
	Contributors []model.Contributor
	// Activity holds only repositories with at least one commit in the last 30 days.
	Activity map[string]model.RepoActivity
}

type contributorAcc struct {
	contributor model.Contributor
	repos       map[string]struct{}
}

// Fold aggregates commits. It expects commits to be deduplicated and attributed
// to a login already.
func Fold(commits []model.Commit, w Windows) Result {
	order := make([]string, 0)
	accs := make(map[string]*contributorAcc)
	activity := make(map[string]model.RepoActivity)

	for _, c := range commits {
		acc, ok := accs[c.Author]
		if !ok {
			acc = &contributorAcc{
				contributor: model.Contributor{Login: c.Author, AvatarURL: c.AuthorAvatarURL, Repos: []string{}},
				repos:       make(map[string]struct{}),
			}
			accs[c.Author] = acc
			order = append(order, c.Author)
		}

		acc.contributor.Contributions++
		if _, seen := acc.repos[c.RepoSlug]; !seen {
			acc.repos[c.RepoSlug] = struct{}{}
			acc.contributor.Repos = append(acc.contributor.Repos, c.RepoSlug)
		}

		if !w.InMonth(c.Date) {
			continue
		}
		acc.contributor.LastMonth++
		a := activity[c.RepoSlug]
		a.Commits30d++
		if w.InWeek(c.Date) {
			a.Commits7d++
		}
		activity[c.RepoSlug] = a
	}

	contributors := make([]model.Contributor, 0, len(order))
	for _, login := range order {
		contributors = append(contributors, accs[login].contributor)
	}
	return Result{Contributors: contributors, Activity: activity}
}
