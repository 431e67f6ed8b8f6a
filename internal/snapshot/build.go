// Package snapshot computes the read-optimized dashboard bundle and publishes it
// to the fast read store.
package snapshot

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"ecosystem-dashboard/internal/model"
)

// DefaultMaxEvents is the length of the recent-commit feed.
const DefaultMaxEvents = 35

// Build derives a Snapshot from one generation of collections. Inputs are not modified.
func Build(c model.Collections, maxEvents int, generatedAt time.Time) *model.Snapshot {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	repos := slices.Clone(c.Repositories)
	slices.SortStableFunc(repos, func(a, b model.Repository) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return &model.Snapshot{
		Repos:        nonNil(repos),
		Contributors: RankContributors(c.Contributors),
		Commits:      WeeklyHistogram(c.Commits),
		Milestones:   nonNil(slices.Clone(c.Milestones)),
		DevList:      nonNil(slices.Clone(c.Profiles)),
		Events:       RecentCommits(c.Commits, maxEvents),
		GeneratedAt:  generatedAt.UTC(),
	}
}

// RankContributors orders by contributions then by number of repositories, both descending.
func RankContributors(contributors []model.Contributor) []model.RankedContributor {
	ranked := make([]model.RankedContributor, 0, len(contributors))
	for _, c := range contributors {
		ranked = append(ranked, model.RankedContributor{Contributor: c, ReposCount: len(c.Repos)})
	}
	slices.SortStableFunc(ranked, func(a, b model.RankedContributor) int {
		if n := cmp.Compare(b.Contributions, a.Contributions); n != 0 {
			return n
		}
		return cmp.Compare(b.ReposCount, a.ReposCount)
	})
	return ranked
}

// WeeklyHistogram counts commits per ISO year and week, oldest bucket first.
func WeeklyHistogram(commits []model.Commit) []model.WeekBucket {
	type week struct{ year, week int }
	counts := make(map[week]int)
	for _, c := range commits {
		y, w := c.Date.UTC().ISOWeek()
		counts[week{y, w}]++
	}

	buckets := make([]model.WeekBucket, 0, len(counts))
	for k, n := range counts {
		buckets = append(buckets, model.WeekBucket{
			Year:  k.year,
			Week:  k.week,
			Date:  fmt.Sprintf("%d|%d", k.year, k.week),
			Count: n,
		})
	}
	slices.SortFunc(buckets, func(a, b model.WeekBucket) int {
		if n := cmp.Compare(a.Year, b.Year); n != 0 {
			return n
		}
		return cmp.Compare(a.Week, b.Week)
	})
	return buckets
}

// RecentCommits returns at most limit commits, newest first.
func RecentCommits(commits []model.Commit, limit int) []model.Commit {
	sorted := slices.Clone(commits)
	slices.SortStableFunc(sorted, func(a, b model.Commit) int {
		return b.Date.Compare(a.Date)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return nonNil(sorted)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
