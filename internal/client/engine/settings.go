package engine

import (
	"context"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/store"
)

type settingsInput struct {
	TeamName     string `validate:"required,max=80"`
	DefaultGoals models.Goals
}

// UpdateSettings replaces the team settings. Settings are device-local.
func (e *Engine) UpdateSettings(ctx context.Context, s models.AppSettings) (models.AppSettings, error) {
	if err := e.check(settingsInput{TeamName: s.TeamName, DefaultGoals: s.DefaultGoals}); err != nil {
		return models.AppSettings{}, e.reject(ctx, err)
	}
	if s.TeamName = Sanitize(s.TeamName); s.TeamName == "" {
		return models.AppSettings{}, e.reject(ctx, invalid("TeamName", "required"))
	}
	e.prefs.do(func(p *prefs) { p.settings = s })
	e.persistLater(store.KeyAppSettings)
	return s, nil
}

func (e *Engine) SetThemeMode(ctx context.Context, mode string) error {
	if err := e.validate.Var(mode, "oneof=light dark system"); err != nil {
		return e.reject(ctx, invalid("ThemeMode", "oneof"))
	}
	e.prefs.do(func(p *prefs) { p.theme = mode })
	e.persistLater(store.KeyThemeMode)
	return nil
}
