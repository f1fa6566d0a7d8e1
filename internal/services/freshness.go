package services

import "time"

// Category names a refreshable slice of a user record.
type Category string

const (
	CategoryText    Category = "text"
	CategoryImages  Category = "images"
	CategoryNews    Category = "news"
	CategoryWeather Category = "weather"
)

var freshnessWindows = map[Category]time.Duration{
	CategoryText:    24 * time.Hour,
	CategoryImages:  7 * 24 * time.Hour,
	CategoryNews:    2 * time.Hour,
	CategoryWeather: 30 * time.Minute,
}

// FreshnessPolicy decides whether a cached category must be refetched before
// being served. Pure; the clock is injectable for tests.
type FreshnessPolicy struct {
	now func() time.Time
}

func NewFreshnessPolicy() *FreshnessPolicy {
	return &FreshnessPolicy{now: time.Now}
}

// NewFreshnessPolicyAt pins the policy's clock. Test constructor.
func NewFreshnessPolicyAt(now func() time.Time) *FreshnessPolicy {
	return &FreshnessPolicy{now: now}
}

// IsStale reports whether a category last refreshed at last must be
// refetched. A zero instant (never fetched) is always stale; an age of
// exactly the window counts as stale. Unknown categories are stale so a
// miswired caller refetches rather than serving junk forever.
func (p *FreshnessPolicy) IsStale(last time.Time, category Category) bool {
	window, ok := freshnessWindows[category]
	if !ok {
		return true
	}
	if last.IsZero() {
		return true
	}
	return p.now().Sub(last) >= window
}

// Window exposes the configured staleness window for a category.
func Window(category Category) time.Duration {
	return freshnessWindows[category]
}
