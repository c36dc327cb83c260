package engine

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"golang.org/x/sync/errgroup"
)

// RemoteState is every collection as the remote store currently has it.
type RemoteState struct {
	Users        []models.User
	DailyLogs    []models.DailyLogEntry
	Appointments []models.Appointment
	Feed         []models.FeedPost
}

// collectionFor maps a remote table to the local collection key it feeds.
func collectionFor(table string) (string, bool) {
	switch table {
	case common.TableUsers:
		return store.KeyUsers, true
	case common.TableDailyLogs:
		return store.KeyDailyLogs, true
	case common.TableAppointments:
		return store.KeyAppointments, true
	case common.TableFeedPosts, common.TableFeedLikes, common.TableFeedComments:
		return store.KeyFeed, true
	}
	return "", false
}

// HandleNotification refetches the collection a change notification belongs
// to. Notifications for a collection that is already being fetched collapse
// into one trailing fetch.
func (e *Engine) HandleNotification(n common.Notification) {
	key, ok := collectionFor(n.Table)
	if !ok || e.closed.Load() {
		return
	}

	e.refreshMu.Lock()
	if e.refreshing[key] {
		e.rerun[key] = true
		e.refreshMu.Unlock()
		return
	}
	e.refreshing[key] = true
	e.refreshWG.Add(1)
	e.refreshMu.Unlock()

	go func() {
		defer e.refreshWG.Done()
		ctx := context.Background()
		for {
			if err := e.Refresh(ctx, key); err != nil {
				e.logger.Warn(ctx, "refetch after change notification failed", "collection", key, "error", err)
			}
			e.refreshMu.Lock()
			if !e.rerun[key] {
				e.refreshing[key] = false
				e.refreshMu.Unlock()
				return
			}
			e.rerun[key] = false
			e.refreshMu.Unlock()
		}
	}()
}

// Refresh replaces one collection with the remote copy and mirrors it to the
// local store. Records still waiting for a server id are kept.
func (e *Engine) Refresh(ctx context.Context, key string) error {
	switch key {
	case store.KeyUsers:
		us, err := e.fetchUsers(ctx)
		if err != nil {
			return err
		}
		e.users.do(func(v *[]models.User) { *v = mergeRemote(us, *v, userID) })
	case store.KeyDailyLogs:
		ls, err := e.fetchLogs(ctx)
		if err != nil {
			return err
		}
		e.logs.do(func(v *[]models.DailyLogEntry) { *v = mergeLogs(ls, *v) })
	case store.KeyAppointments:
		as, err := e.fetchAppointments(ctx)
		if err != nil {
			return err
		}
		e.appointments.do(func(v *[]models.Appointment) { *v = mergeRemote(as, *v, appointmentID) })
	case store.KeyFeed:
		ps, err := e.fetchFeed(ctx)
		if err != nil {
			return err
		}
		e.feed.do(func(v *[]models.FeedPost) { *v = mergeFeed(ps, *v) })
	default:
		return fmt.Errorf("unknown collection %q", key)
	}
	if e.autosave.Load() {
		e.persistNow(ctx, key)
	}
	return nil
}

// PullRemote fetches every collection concurrently.
func (e *Engine) PullRemote(ctx context.Context) (RemoteState, error) {
	var rs RemoteState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		rs.Users, err = e.fetchUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		rs.DailyLogs, err = e.fetchLogs(gctx)
		return err
	})
	g.Go(func() (err error) {
		rs.Appointments, err = e.fetchAppointments(gctx)
		return err
	})
	g.Go(func() (err error) {
		rs.Feed, err = e.fetchFeed(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return RemoteState{}, err
	}
	return rs, nil
}

// ApplyRemote gives the remote copy precedence over the loaded local state.
func (e *Engine) ApplyRemote(rs RemoteState) {
	e.users.do(func(v *[]models.User) { *v = mergeRemote(rs.Users, *v, userID) })
	e.logs.do(func(v *[]models.DailyLogEntry) { *v = mergeLogs(rs.DailyLogs, *v) })
	e.appointments.do(func(v *[]models.Appointment) { *v = mergeRemote(rs.Appointments, *v, appointmentID) })
	e.feed.do(func(v *[]models.FeedPost) { *v = mergeFeed(rs.Feed, *v) })
}

func (e *Engine) selectRows(ctx context.Context, table string) ([]common.Row, error) {
	if e.remote == nil || !e.remote.Configured() {
		return nil, fmt.Errorf("select %s: remote store not configured", table)
	}
	return e.remote.Select(ctx, table)
}

// decodeRows decodes every row, skipping the ones that do not decode.
func decodeRows[T any](ctx context.Context, e *Engine, rows []common.Row, decode func(common.Row) (T, error)) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := decode(r)
		if err != nil {
			e.logger.Warn(ctx, "skipping undecodable row", "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (e *Engine) fetchUsers(ctx context.Context) ([]models.User, error) {
	rows, err := e.selectRows(ctx, common.TableUsers)
	if err != nil {
		return nil, err
	}
	return decodeRows(ctx, e, rows, models.UserFromRow), nil
}

func (e *Engine) fetchLogs(ctx context.Context) ([]models.DailyLogEntry, error) {
	rows, err := e.selectRows(ctx, common.TableDailyLogs)
	if err != nil {
		return nil, err
	}
	return decodeRows(ctx, e, rows, models.DailyLogFromRow), nil
}

func (e *Engine) fetchAppointments(ctx context.Context) ([]models.Appointment, error) {
	rows, err := e.selectRows(ctx, common.TableAppointments)
	if err != nil {
		return nil, err
	}
	as := decodeRows(ctx, e, rows, models.AppointmentFromRow)
	slices.SortStableFunc(as, func(a, b models.Appointment) int { return a.ScheduledAt.Compare(b.ScheduledAt) })
	return as, nil
}

// fetchFeed reads posts, likes and comments and nests them, newest post
// first.
func (e *Engine) fetchFeed(ctx context.Context) ([]models.FeedPost, error) {
	var postRows, likeRows, commentRows []common.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		postRows, err = e.selectRows(gctx, common.TableFeedPosts)
		return err
	})
	g.Go(func() (err error) {
		likeRows, err = e.selectRows(gctx, common.TableFeedLikes)
		return err
	})
	g.Go(func() (err error) {
		commentRows, err = e.selectRows(gctx, common.TableFeedComments)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	posts := decodeRows(ctx, e, postRows, models.FeedPostFromRow)
	index := make(map[models.ID]int, len(posts))
	for i := range posts {
		index[posts[i].ID] = i
	}
	for _, l := range decodeRows(ctx, e, likeRows, models.FeedLikeFromRow) {
		if i, ok := index[l.PostID]; ok {
			posts[i].Likes = append(posts[i].Likes, l)
		}
	}
	for _, c := range decodeRows(ctx, e, commentRows, models.FeedCommentFromRow) {
		if i, ok := index[c.PostID]; ok {
			posts[i].Comments = append(posts[i].Comments, c)
		}
	}
	for i := range posts {
		slices.SortStableFunc(posts[i].Comments, func(a, b models.FeedComment) int { return a.CreatedAt.Compare(b.CreatedAt) })
	}
	slices.SortStableFunc(posts, func(a, b models.FeedPost) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID.String(), a.ID.String()))
	})
	return posts, nil
}

func pending[T any](local []T, idOf func(*T) *models.ID) []T {
	var out []T
	for i := range local {
		if idOf(&local[i]).Kind() == models.KindProvisional {
			out = append(out, local[i])
		}
	}
	return out
}

// mergeRemote is the remote copy plus local records without a server id.
func mergeRemote[T any](remote, local []T, idOf func(*T) *models.ID) []T {
	return append(slices.Clone(remote), pending(local, idOf)...)
}

func mergeLogs(remote, local []models.DailyLogEntry) []models.DailyLogEntry {
	out := slices.Clone(remote)
	for _, l := range pending(local, logID) {
		if !slices.ContainsFunc(remote, func(r models.DailyLogEntry) bool {
			return r.UserID == l.UserID && r.Date == l.Date && r.Category == l.Category
		}) {
			out = append(out, l)
		}
	}
	return out
}

func mergeFeed(remote, local []models.FeedPost) []models.FeedPost {
	byID := make(map[models.ID]models.FeedPost, len(local))
	for _, p := range local {
		byID[p.ID] = p
	}
	out := cloneFeed(remote)
	for i := range out {
		lp, ok := byID[out[i].ID]
		if !ok {
			continue
		}
		out[i].Likes = append(out[i].Likes, pending(lp.Likes, likeID)...)
		out[i].Comments = append(out[i].Comments, pending(lp.Comments, commentID)...)
	}
	return append(pending(cloneFeed(local), postID), out...)
}
