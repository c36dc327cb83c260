package cli

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

// resolveUser accepts a user id or a case-insensitive name.
func (a *App) resolveUser(arg string) (models.User, error) {
	id := models.ParseID(arg)
	if u, ok := a.engine.User(id); ok {
		return u, nil
	}

	var matches []models.User
	for _, u := range a.engine.Users() {
		if strings.EqualFold(u.Name, arg) {
			matches = append(matches, u)
		}
	}
	switch len(matches) {
	case 0:
		return models.User{}, fmt.Errorf("unknown user %q", arg)
	case 1:
		return matches[0], nil
	default:
		return models.User{}, fmt.Errorf("user name %q is ambiguous, use the id", arg)
	}
}

func (a *App) resolvePost(arg string) (models.FeedPost, error) {
	id := models.ParseID(arg)
	for _, p := range a.engine.Feed() {
		if p.ID == id {
			return p, nil
		}
	}
	return models.FeedPost{}, fmt.Errorf("unknown post %q", arg)
}

// currentOr resolves arg, falling back to the signed-in user when arg is empty.
func (a *App) currentOr(arg string) (models.User, error) {
	if arg != "" {
		return a.resolveUser(arg)
	}
	if u, ok := a.engine.CurrentUser(); ok {
		return u, nil
	}
	return models.User{}, fmt.Errorf("no user given and nobody is signed in")
}
