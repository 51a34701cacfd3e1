package usecase

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/naka-gawa/profile-stats/internal/domain"
	"github.com/naka-gawa/profile-stats/internal/render"
)

// FormatPlural returns the suffix for a count: "" for exactly one, "s" otherwise.
func FormatPlural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// FormatCount renders n with thousands separators, e.g. 100,000.
func FormatCount(n int) string {
	return humanize.Comma(int64(n))
}

// FormatUptime describes the time between born and now in calendar years,
// months and days. A cake is appended on the anniversary day.
func FormatUptime(born, now time.Time) string {
	born = born.In(now.Location())
	total := (now.Year()-born.Year())*12 + int(now.Month()) - int(born.Month())
	anchor := addMonths(born, total)
	if anchor.After(now) {
		total--
		anchor = addMonths(born, total)
	}
	years, months := total/12, total%12
	days := int(now.Sub(anchor).Hours() / 24)

	out := fmt.Sprintf("%d year%s, %d month%s, %d day%s",
		years, FormatPlural(years), months, FormatPlural(months), days, FormatPlural(days))
	if months == 0 && days == 0 {
		out += " 🎂"
	}
	return out
}

// addMonths moves t forward n months, clamping the day to the end of the target month.
func addMonths(t time.Time, n int) time.Time {
	m := int(t.Month()) - 1 + n
	year, month := t.Year()+m/12, time.Month(m%12+1)
	// Day 0 of the following month is the last day of month.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day()
	return time.Date(year, month, min(t.Day(), last), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// NewCard formats stats for a template. The account age is measured up to now.
func NewCard(stats domain.ProfileStats, animated bool, now time.Time) render.Card {
	card := render.Card{
		Commits:   FormatCount(stats.Commits),
		Stars:     FormatCount(stats.Stars),
		Repos:     FormatCount(stats.Repos),
		Followers: FormatCount(stats.Followers),
		Loc: render.LocCard{
			Added:    FormatCount(stats.Loc.Additions),
			Removed:  FormatCount(stats.Loc.Deletions),
			Net:      FormatCount(stats.Loc.Net()),
			Animated: animated,
		},
	}
	if !stats.User.CreatedAt.IsZero() {
		card.Age = FormatUptime(stats.User.CreatedAt, now)
	}
	return card
}
