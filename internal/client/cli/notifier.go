package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

// printer renders toasts and celebrations as plain lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) Toast(_ context.Context, level engine.ToastLevel, msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", level, msg)
}

func (p *printer) GoalReached(_ context.Context, u models.User, c models.Category, goal int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "*** %s reached the %s goal of %d! ***\n", u.Name, c, goal)
}
