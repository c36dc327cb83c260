package engine

import (
	"context"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

type ToastLevel string

const (
	ToastInfo    ToastLevel = "info"
	ToastWarning ToastLevel = "warning"
	ToastError   ToastLevel = "error"
)

// Notifier surfaces transient messages and goal celebrations to the user.
type Notifier interface {
	Toast(ctx context.Context, level ToastLevel, msg string)
	GoalReached(ctx context.Context, user models.User, category models.Category, goal int)
}

type nopNotifier struct{}

func (nopNotifier) Toast(context.Context, ToastLevel, string) {}

func (nopNotifier) GoalReached(context.Context, models.User, models.Category, int) {}
