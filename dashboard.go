package climb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
)

// RecentLimit is how many sessions and routes the dashboard shows
const RecentLimit = 5

// MaxCalendarRange bounds a calendar query
const MaxCalendarRange = 366 * 24 * time.Hour

// DashboardSummary aggregates the activity of one user
type DashboardSummary struct {
	TotalRoutes     int        `json:"totalRoutes"`
	CompletedRoutes int        `json:"completedRoutes"`
	TotalSessions   int        `json:"totalSessions"`
	TotalTime       int        `json:"totalTime"`
	RecentRoutes    []*Route   `json:"recentRoutes"`
	RecentSessions  []*Session `json:"recentSessions"`
}

// CalendarDay is the activity logged on one calendar day
type CalendarDay struct {
	Date      string   `json:"date"`
	Sessions  int      `json:"sessions"`
	Minutes   int      `json:"minutes"`
	Routes    int      `json:"routes"`
	Completed int      `json:"completed"`
	Locations []string `json:"locations"`
}

// Dashboard reads aggregates over a user's sessions and routes
type Dashboard struct {
	sessions Sessions
	routes   Routes
}

// NewDashboard wires the dashboard to the owner scoped repositories
func NewDashboard(repo RepositoryManager) *Dashboard {
	return &Dashboard{
		sessions: repo.Sessions(),
		routes:   repo.Routes(),
	}
}

// Summary returns the dashboard totals for owner. TotalTime covers every
// session, not only the recent ones.
func (d *Dashboard) Summary(ctx context.Context, owner uuid.UUID) (*DashboardSummary, error) {
	out := &DashboardSummary{}
	var err error

	if out.TotalRoutes, err = d.routes.Count(ctx, owner); err != nil {
		return nil, StoreUnavailable(err, "failed to count routes")
	}
	if out.CompletedRoutes, err = d.routes.CountCompleted(ctx, owner); err != nil {
		return nil, StoreUnavailable(err, "failed to count completed routes")
	}
	if out.TotalSessions, err = d.sessions.Count(ctx, owner); err != nil {
		return nil, StoreUnavailable(err, "failed to count sessions")
	}
	if out.TotalTime, err = d.sessions.TotalDuration(ctx, owner); err != nil {
		return nil, StoreUnavailable(err, "failed to sum session time")
	}
	if out.RecentRoutes, err = d.routes.Recent(ctx, owner, RecentLimit); err != nil {
		return nil, StoreUnavailable(err, "failed to load recent routes")
	}
	if out.RecentSessions, err = d.sessions.List(ctx, owner, ListOptions{Limit: RecentLimit}); err != nil {
		return nil, StoreUnavailable(err, "failed to load recent sessions")
	}

	return out, nil
}

// Calendar returns one entry per day in [from, to] that has any activity,
// in ascending date order.
func (d *Dashboard) Calendar(ctx context.Context, owner uuid.UUID, from, to time.Time) ([]CalendarDay, error) {
	from = startOfDay(from)
	end := startOfDay(to).Add(24 * time.Hour)

	if !end.After(from) || end.Sub(from) > MaxCalendarRange {
		return nil, NewValidationError("invalid calendar range", map[string]string{
			"range": "to must not be before from and the range must not exceed one year",
		})
	}

	sessions, err := d.sessions.List(ctx, owner, ListOptions{From: &from, To: &end})
	if err != nil {
		return nil, StoreUnavailable(err, "failed to load sessions for calendar")
	}

	routes, err := d.routes.List(ctx, owner, ListOptions{From: &from, To: &end})
	if err != nil {
		return nil, StoreUnavailable(err, "failed to load routes for calendar")
	}

	return buildCalendar(sessions, routes), nil
}

func buildCalendar(sessions []*Session, routes []*Route) []CalendarDay {
	days := map[string]*CalendarDay{}
	seenLocation := map[string]map[string]bool{}

	day := func(t time.Time) *CalendarDay {
		key := dayKey(t)
		if d, ok := days[key]; ok {
			return d
		}
		d := &CalendarDay{Date: key, Locations: []string{}}
		days[key] = d
		seenLocation[key] = map[string]bool{}
		return d
	}

	addLocation := func(d *CalendarDay, location string) {
		if location == "" || seenLocation[d.Date][location] {
			return
		}
		seenLocation[d.Date][location] = true
		d.Locations = append(d.Locations, location)
	}

	for _, s := range sessions {
		d := day(s.Date)
		d.Sessions++
		d.Minutes += s.Duration
		addLocation(d, s.Location)
	}

	for _, r := range routes {
		d := day(r.Date)
		d.Routes++
		if r.Completed {
			d.Completed++
		}
		addLocation(d, r.Location)
	}

	out := make([]CalendarDay, 0, len(days))
	for _, d := range days {
		sort.Strings(d.Locations)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date < out[j].Date
	})

	return out
}
