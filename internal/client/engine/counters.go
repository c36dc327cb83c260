package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
)

// Increment adds one to today's count of category for user. Reaching the
// goal exactly fires a celebration, and reviews and callbacks post an
// automatic feed message.
func (e *Engine) Increment(ctx context.Context, user models.ID, category models.Category) (models.DailyLogEntry, error) {
	u, err := e.counterTarget(ctx, user, category)
	if err != nil {
		return models.DailyLogEntry{}, err
	}

	e.counterMu.Lock()
	entry := e.writeCount(ctx, user, category, func(n int) int { return n + 1 })
	settings := e.Settings()
	if settings.CelebrationsEnabled && entry.Count == u.Goals.For(category) {
		e.notifier.GoalReached(ctx, u, category, entry.Count)
	}
	e.counterMu.Unlock()

	if settings.AutoPostEnabled {
		if msg, ok := e.autoPost(category); ok {
			if _, err := e.addPost(ctx, user, msg, category, true); err != nil {
				e.logger.Warn(ctx, "auto post failed", "error", err)
			}
		}
	}
	return entry, nil
}

// Decrement removes one from today's count, never going below zero.
func (e *Engine) Decrement(ctx context.Context, user models.ID, category models.Category) (models.DailyLogEntry, error) {
	if _, err := e.counterTarget(ctx, user, category); err != nil {
		return models.DailyLogEntry{}, err
	}

	e.counterMu.Lock()
	defer e.counterMu.Unlock()
	if cur, ok := e.todayEntry(user, category); ok && cur.Count == 0 {
		return cur, nil
	} else if !ok {
		return models.DailyLogEntry{
			DailyLogFields: models.DailyLogFields{UserID: user, Date: e.today(), Category: category},
		}, nil
	}
	return e.writeCount(ctx, user, category, func(n int) int { return max(n-1, 0) }), nil
}

func (e *Engine) counterTarget(ctx context.Context, user models.ID, category models.Category) (models.User, error) {
	if _, err := models.ParseCategory(string(category)); err != nil {
		return models.User{}, e.reject(ctx, invalid("Category", "oneof"))
	}
	u, ok := e.User(user)
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", user, ErrNotFound)
	}
	return u, nil
}

// writeCount runs one counter step. Callers hold counterMu.
func (e *Engine) writeCount(ctx context.Context, user models.ID, category models.Category, next func(int) int) models.DailyLogEntry {
	cur, exists := e.todayEntry(user, category)
	fields := models.DailyLogFields{UserID: user, Date: e.today(), Category: category}
	if exists {
		fields.Count = cur.Count
	}
	fields.Count = next(fields.Count)

	entry := models.DailyLogEntry{ID: cur.ID, CreatedAt: cur.CreatedAt, DailyLogFields: fields}
	if !exists {
		entry.ID = e.minter.Next()
		entry.CreatedAt = e.now()
	}
	var local models.ID
	if entry.ID.Kind() == models.KindProvisional {
		local = entry.ID
	}
	if row, ok := e.dispatch(ctx, queue.UpsertDailyLog{LocalID: local, Fields: fields}, user); ok {
		entry.ID = models.Confirmed(row.ID)
		if !row.CreatedAt.IsZero() {
			entry.CreatedAt = row.CreatedAt
		}
	}

	e.logs.do(func(ls *[]models.DailyLogEntry) {
		*ls = slices.DeleteFunc(*ls, func(l models.DailyLogEntry) bool {
			return l.UserID == user && l.Date == fields.Date && l.Category == category && l.ID != entry.ID
		})
		*ls = upsert(*ls, entry, logID)
	})
	e.persistLater(store.KeyDailyLogs)
	return entry
}

func (e *Engine) todayEntry(user models.ID, category models.Category) (models.DailyLogEntry, bool) {
	date := e.today()
	return read(e.logs, func(ls []models.DailyLogEntry) findResult[models.DailyLogEntry] {
		return find(ls, func(l models.DailyLogEntry) bool {
			return l.UserID == user && l.Date == date && l.Category == category
		})
	}).get()
}

// TodayCount is user's count of category today.
func (e *Engine) TodayCount(user models.ID, category models.Category) int {
	entry, _ := e.todayEntry(user, category)
	return entry.Count
}

type LeaderboardEntry struct {
	User  models.User
	Count int
	Goal  int
}

// Leaderboard ranks every user by today's count of category.
func (e *Engine) Leaderboard(category models.Category) []LeaderboardEntry {
	users := e.Users()
	out := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		out = append(out, LeaderboardEntry{User: u, Count: e.TodayCount(u.ID, category), Goal: u.Goals.For(category)})
	}
	slices.SortStableFunc(out, func(a, b LeaderboardEntry) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.User.Name, b.User.Name)
	})
	return out
}

// SnapshotDay stores every user's counts for date under dailySnapshots,
// replacing an earlier snapshot of the same date.
func (e *Engine) SnapshotDay(ctx context.Context, date string) (models.DailySnapshot, error) {
	snap := models.DailySnapshot{Date: date, Counts: make(map[string]map[models.Category]int)}
	if err := e.validate.Var(date, "required,datetime=2006-01-02"); err != nil {
		return snap, e.reject(ctx, invalid("Date", "datetime"))
	}
	for _, l := range e.DailyLogs() {
		if l.Date != date {
			continue
		}
		key := l.UserID.String()
		if snap.Counts[key] == nil {
			snap.Counts[key] = make(map[models.Category]int)
		}
		snap.Counts[key][l.Category] = l.Count
	}
	e.prefs.do(func(p *prefs) {
		p.snapshots = slices.DeleteFunc(p.snapshots, func(s models.DailySnapshot) bool { return s.Date == date })
		p.snapshots = append(p.snapshots, snap)
	})
	e.persistLater(store.KeyDailySnapshots)
	return snap, nil
}

func logID(l *models.DailyLogEntry) *models.ID { return &l.ID }
