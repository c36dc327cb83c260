package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/queue"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
)

// CreateUser adds a team member. A nil goals pointer takes the team defaults.
func (e *Engine) CreateUser(ctx context.Context, name, role string, goals *models.Goals) (models.User, error) {
	fields := models.UserFields{Name: name, Role: role, Goals: e.Settings().DefaultGoals}
	if goals != nil {
		fields.Goals = *goals
	}
	if err := e.check(fields); err != nil {
		return models.User{}, e.reject(ctx, err)
	}
	fields.Name = Sanitize(fields.Name)
	if fields.Name == "" {
		return models.User{}, e.reject(ctx, invalid("Name", "required"))
	}

	id, createdAt := e.create(ctx, func(local models.ID) queue.Mutation {
		return queue.InsertUser{LocalID: local, Fields: fields}
	})
	u := models.User{ID: id, CreatedAt: createdAt, UserFields: fields}
	e.users.do(func(us *[]models.User) { *us = upsert(*us, u, userID) })
	e.persistLater(store.KeyUsers)

	e.logger.Info(ctx, "user created", "user", id.String())
	return u, nil
}

func (e *Engine) DeleteUser(ctx context.Context, id models.ID) error {
	var found bool
	e.users.do(func(us *[]models.User) {
		n := len(*us)
		*us = slices.DeleteFunc(*us, func(u models.User) bool { return u.ID == id })
		found = len(*us) != n
	})
	if !found {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	keys := []string{store.KeyUsers}
	if cur, ok := e.currentUserID(); ok && cur == id {
		e.prefs.do(func(p *prefs) { p.currentUser = models.ID{} })
		keys = append(keys, store.KeyCurrentUser)
	}
	e.persistLater(keys...)
	e.dispatch(ctx, queue.DeleteUser{ID: id}, id)
	return nil
}

func (e *Engine) UpdateGoals(ctx context.Context, id models.ID, goals models.Goals) (models.User, error) {
	if err := e.check(goals); err != nil {
		return models.User{}, e.reject(ctx, err)
	}
	var (
		u     models.User
		found bool
	)
	e.users.do(func(us *[]models.User) {
		i := slices.IndexFunc(*us, func(u models.User) bool { return u.ID == id })
		if i < 0 {
			return
		}
		(*us)[i].Goals = goals
		u, found = (*us)[i], true
	})
	if !found {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	e.persistLater(store.KeyUsers)
	e.dispatch(ctx, queue.UpdateUser{ID: id, Fields: u.UserFields}, id)
	return u, nil
}

// SetCurrentUser selects who is signed in on this device. A zero id signs
// out.
func (e *Engine) SetCurrentUser(ctx context.Context, id models.ID, remember bool) error {
	if !id.IsZero() {
		if _, ok := e.User(id); !ok {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
	}
	e.prefs.do(func(p *prefs) {
		p.currentUser = id
		p.remember = remember
	})
	e.persistLater(store.KeyCurrentUser, store.KeyRememberUser)
	return nil
}

func (e *Engine) CurrentUser() (models.User, bool) {
	id, ok := e.currentUserID()
	if !ok {
		return models.User{}, false
	}
	return e.User(id)
}

func (e *Engine) currentUserID() (models.ID, bool) {
	id := read(e.prefs, func(p prefs) models.ID { return p.currentUser })
	return id, !id.IsZero()
}

func userID(u *models.User) *models.ID { return &u.ID }

// upsert replaces the element with v's id, or appends v.
func upsert[T any](items []T, v T, idOf func(*T) *models.ID) []T {
	id := *idOf(&v)
	for i := range items {
		if *idOf(&items[i]) == id {
			items[i] = v
			return items
		}
	}
	return append(items, v)
}
