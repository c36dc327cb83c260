package engine

import (
	"slices"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

// State is a full copy of the engine's collections.
type State struct {
	Users        []models.User
	DailyLogs    []models.DailyLogEntry
	Appointments []models.Appointment
	Feed         []models.FeedPost
	Settings     models.AppSettings
	ThemeMode    string
	Snapshots    []models.DailySnapshot
	CurrentUser  models.ID
	RememberUser bool
}

// Load replaces every collection. It does not persist anything.
func (e *Engine) Load(s State) {
	e.users.do(func(v *[]models.User) { *v = slices.Clone(s.Users) })
	e.logs.do(func(v *[]models.DailyLogEntry) { *v = slices.Clone(s.DailyLogs) })
	e.appointments.do(func(v *[]models.Appointment) { *v = slices.Clone(s.Appointments) })
	e.feed.do(func(v *[]models.FeedPost) { *v = cloneFeed(s.Feed) })
	theme := s.ThemeMode
	if theme == "" {
		theme = models.ThemeSystem
	}
	e.prefs.do(func(p *prefs) {
		p.settings = s.Settings
		p.theme = theme
		p.snapshots = slices.Clone(s.Snapshots)
		p.currentUser = s.CurrentUser
		p.remember = s.RememberUser
	})
}

func (e *Engine) Snapshot() State {
	p := read(e.prefs, func(p prefs) prefs { return p })
	return State{
		Users:        e.Users(),
		DailyLogs:    e.DailyLogs(),
		Appointments: e.Appointments(),
		Feed:         e.Feed(),
		Settings:     p.settings,
		ThemeMode:    p.theme,
		Snapshots:    slices.Clone(p.snapshots),
		CurrentUser:  p.currentUser,
		RememberUser: p.remember,
	}
}

func (e *Engine) Users() []models.User {
	return read(e.users, slices.Clone[[]models.User])
}

func (e *Engine) DailyLogs() []models.DailyLogEntry {
	return read(e.logs, slices.Clone[[]models.DailyLogEntry])
}

func (e *Engine) Appointments() []models.Appointment {
	return read(e.appointments, slices.Clone[[]models.Appointment])
}

// Feed returns the posts newest first with their likes and comments.
func (e *Engine) Feed() []models.FeedPost {
	return read(e.feed, cloneFeed)
}

func (e *Engine) Settings() models.AppSettings {
	return read(e.prefs, func(p prefs) models.AppSettings { return p.settings })
}

func (e *Engine) ThemeMode() string {
	return read(e.prefs, func(p prefs) string { return p.theme })
}

func (e *Engine) Snapshots() []models.DailySnapshot {
	return read(e.prefs, func(p prefs) []models.DailySnapshot { return slices.Clone(p.snapshots) })
}

func (e *Engine) User(id models.ID) (models.User, bool) {
	return read(e.users, func(us []models.User) findResult[models.User] {
		return find(us, func(u models.User) bool { return u.ID == id })
	}).get()
}

func cloneFeed(posts []models.FeedPost) []models.FeedPost {
	if posts == nil {
		return nil
	}
	out := make([]models.FeedPost, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

type findResult[T any] struct {
	v  T
	ok bool
}

func (r findResult[T]) get() (T, bool) { return r.v, r.ok }

func find[T any](items []T, match func(T) bool) findResult[T] {
	if i := slices.IndexFunc(items, match); i >= 0 {
		return findResult[T]{v: items[i], ok: true}
	}
	return findResult[T]{}
}
