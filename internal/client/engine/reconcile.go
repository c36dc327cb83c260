package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
	"github.com/dmitrijs2005/goalboard/internal/common"
)

// HandleAck adopts the server id of a record created while offline. The
// provisional id is replaced everywhere it appears, records that were kept
// local because they referenced it are queued, and local changes made after
// the create was queued are sent as an update. A record deleted locally
// before the acknowledgement is deleted remotely.
func (e *Engine) HandleAck(ctx context.Context, op common.Operation, row common.Row) {
	if op.Type != common.OpInsert && op.Type != common.OpUpsert {
		return
	}
	local := models.ParseID(op.LocalID)
	if local.Kind() != models.KindProvisional || row.ID == "" {
		return
	}
	server := models.Confirmed(row.ID)
	e.logger.Debug(ctx, "adopting server id", "table", op.Table, "local", local.String(), "server", row.ID)

	switch op.Table {
	case common.TableUsers:
		e.remapUser(ctx, local, server, row.CreatedAt, op.Data)
	case common.TableDailyLogs:
		e.remapLog(local, server, row.CreatedAt)
	case common.TableAppointments:
		e.remapAppointment(ctx, local, server, row.CreatedAt, op.Data)
	case common.TableFeedPosts:
		e.remapPost(ctx, local, server, row.CreatedAt, op.Data)
	case common.TableFeedLikes:
		e.remapLike(ctx, local, server, row.CreatedAt)
	case common.TableFeedComments:
		e.remapComment(ctx, local, server, row.CreatedAt)
	}
}

// adopt renames local to server in items, dropping a copy of server that a
// refetch may already have added. It returns the index of the renamed
// element or -1. items is left untouched when local is not present, which
// happens when several queued upserts of one record are acknowledged.
func adopt[T any](items []T, local, server models.ID, idOf func(*T) *models.ID) ([]T, int) {
	i := slices.IndexFunc(items, func(v T) bool { return *idOf(&v) == local })
	if i < 0 {
		return items, -1
	}
	*idOf(&items[i]) = server

	out, at := items[:0], -1
	for j := range items {
		if j != i && *idOf(&items[j]) == server {
			continue
		}
		if j == i {
			at = len(out)
		}
		out = append(out, items[j])
	}
	return out, at
}

// without drops every element carrying id. Records deleted locally before
// their create was acknowledged use it to discard a refetched copy.
func without[T any](items []T, id models.ID, idOf func(*T) *models.ID) []T {
	return slices.DeleteFunc(items, func(v T) bool { return *idOf(&v) == id })
}

func setCreated(dst *time.Time, at time.Time) {
	if !at.IsZero() {
		*dst = at
	}
}

// changed reports whether fields no longer encode to the payload that was
// sent.
func changed(sent json.RawMessage, fields any) bool {
	b, err := models.Payload(fields)
	return err == nil && !bytes.Equal(b, sent)
}

func (e *Engine) remapUser(ctx context.Context, local, server models.ID, createdAt time.Time, sent json.RawMessage) {
	var (
		u     models.User
		found bool
	)
	e.users.do(func(us *[]models.User) {
		var i int
		if *us, i = adopt(*us, local, server, userID); i >= 0 {
			setCreated(&(*us)[i].CreatedAt, createdAt)
			u, found = (*us)[i], true
			return
		}
		*us = without(*us, server, userID)
	})
	if !found {
		e.enqueue(ctx, queue.DeleteUser{ID: server})
		e.persistLater(store.KeyUsers)
		return
	}
	if changed(sent, u.UserFields) {
		e.enqueue(ctx, queue.UpdateUser{ID: server, Fields: u.UserFields})
	}

	owner := func(id *models.ID) {
		if *id == local {
			*id = server
		}
	}
	e.logs.do(func(ls *[]models.DailyLogEntry) {
		for i := range *ls {
			owner(&(*ls)[i].UserID)
		}
	})
	e.appointments.do(func(as *[]models.Appointment) {
		for i := range *as {
			owner(&(*as)[i].UserID)
		}
	})
	e.feed.do(func(ps *[]models.FeedPost) {
		for i := range *ps {
			p := &(*ps)[i]
			owner(&p.UserID)
			for j := range p.Likes {
				owner(&p.Likes[j].UserID)
			}
			for j := range p.Comments {
				owner(&p.Comments[j].UserID)
			}
		}
	})
	e.prefs.do(func(p *prefs) { owner(&p.currentUser) })

	for _, l := range e.DailyLogs() {
		if l.UserID == server && l.ID.Kind() == models.KindProvisional {
			e.enqueue(ctx, queue.UpsertDailyLog{LocalID: l.ID, Fields: l.DailyLogFields})
		}
	}
	for _, a := range e.Appointments() {
		if a.UserID == server && a.ID.Kind() == models.KindProvisional {
			e.enqueue(ctx, queue.InsertAppointment{LocalID: a.ID, Fields: a.AppointmentFields})
		}
	}
	for _, p := range e.Feed() {
		if p.UserID == server && p.ID.Kind() == models.KindProvisional {
			e.enqueue(ctx, queue.InsertFeedPost{LocalID: p.ID, Fields: p.FeedPostFields})
			continue
		}
		if p.ID.Kind() == models.KindConfirmed {
			e.promoteReactions(ctx, p, server)
		}
	}
	e.persistLater(store.KeyUsers, store.KeyDailyLogs, store.KeyAppointments, store.KeyFeed, store.KeyCurrentUser)
}

// promoteReactions queues the provisional likes and comments of a confirmed
// post whose author is confirmed. A zero user matches every author.
func (e *Engine) promoteReactions(ctx context.Context, p models.FeedPost, user models.ID) {
	for _, l := range p.Likes {
		if l.ID.Kind() == models.KindProvisional && l.UserID.Kind() == models.KindConfirmed && (user.IsZero() || l.UserID == user) {
			e.enqueue(ctx, queue.InsertFeedLike{LocalID: l.ID, Fields: l.FeedLikeFields})
		}
	}
	for _, c := range p.Comments {
		if c.ID.Kind() == models.KindProvisional && c.UserID.Kind() == models.KindConfirmed && (user.IsZero() || c.UserID == user) {
			e.enqueue(ctx, queue.InsertFeedComment{LocalID: c.ID, Fields: c.FeedCommentFields})
		}
	}
}

func (e *Engine) remapLog(local, server models.ID, createdAt time.Time) {
	e.logs.do(func(ls *[]models.DailyLogEntry) {
		var i int
		if *ls, i = adopt(*ls, local, server, logID); i >= 0 {
			setCreated(&(*ls)[i].CreatedAt, createdAt)
		}
	})
	e.persistLater(store.KeyDailyLogs)
}

func (e *Engine) remapAppointment(ctx context.Context, local, server models.ID, createdAt time.Time, sent json.RawMessage) {
	var (
		a     models.Appointment
		found bool
	)
	e.appointments.do(func(as *[]models.Appointment) {
		var i int
		if *as, i = adopt(*as, local, server, appointmentID); i >= 0 {
			setCreated(&(*as)[i].CreatedAt, createdAt)
			a, found = (*as)[i], true
			return
		}
		*as = without(*as, server, appointmentID)
	})
	e.persistLater(store.KeyAppointments)
	switch {
	case !found:
		e.enqueue(ctx, queue.DeleteAppointment{ID: server})
	case changed(sent, a.AppointmentFields):
		e.enqueue(ctx, queue.UpdateAppointment{ID: server, Fields: a.AppointmentFields})
	}
}

func (e *Engine) remapPost(ctx context.Context, local, server models.ID, createdAt time.Time, sent json.RawMessage) {
	var (
		p     models.FeedPost
		found bool
	)
	e.feed.do(func(ps *[]models.FeedPost) {
		var i int
		if *ps, i = adopt(*ps, local, server, postID); i < 0 {
			*ps = without(*ps, server, postID)
			return
		}
		post := &(*ps)[i]
		setCreated(&post.CreatedAt, createdAt)
		for j := range post.Likes {
			post.Likes[j].PostID = server
		}
		for j := range post.Comments {
			post.Comments[j].PostID = server
		}
		p, found = post.Clone(), true
	})
	e.persistLater(store.KeyFeed)
	if !found {
		e.enqueue(ctx, queue.DeleteFeedPost{ID: server})
		return
	}
	if changed(sent, p.FeedPostFields) {
		e.enqueue(ctx, queue.UpdateFeedPost{ID: server, Fields: p.FeedPostFields})
	}
	e.promoteReactions(ctx, p, models.ID{})
}

func (e *Engine) remapLike(ctx context.Context, local, server models.ID, createdAt time.Time) {
	var found bool
	e.feed.do(func(ps *[]models.FeedPost) {
		for i := range *ps {
			p := &(*ps)[i]
			var j int
			if p.Likes, j = adopt(p.Likes, local, server, likeID); j >= 0 {
				setCreated(&p.Likes[j].CreatedAt, createdAt)
				found = true
			}
		}
		if !found {
			for i := range *ps {
				(*ps)[i].Likes = without((*ps)[i].Likes, server, likeID)
			}
		}
	})
	e.persistLater(store.KeyFeed)
	if !found {
		e.enqueue(ctx, queue.DeleteFeedLike{ID: server})
	}
}

func (e *Engine) remapComment(ctx context.Context, local, server models.ID, createdAt time.Time) {
	var found bool
	e.feed.do(func(ps *[]models.FeedPost) {
		for i := range *ps {
			p := &(*ps)[i]
			var j int
			if p.Comments, j = adopt(p.Comments, local, server, commentID); j >= 0 {
				setCreated(&p.Comments[j].CreatedAt, createdAt)
				found = true
			}
		}
		if !found {
			for i := range *ps {
				(*ps)[i].Comments = without((*ps)[i].Comments, server, commentID)
			}
		}
	})
	e.persistLater(store.KeyFeed)
	if !found {
		e.enqueue(ctx, queue.DeleteFeedComment{ID: server})
	}
}
