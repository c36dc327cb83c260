package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

// executor is the command surface the watch loop drives. *session satisfies
// it; tests provide a stub.
type executor interface {
	Board(ctx context.Context, category string) error
	Count(ctx context.Context, category, user string, up bool) error
	SignIn(ctx context.Context, user string) error
	SignOut(ctx context.Context) error
	View(ctx context.Context, view string) error
	Who(ctx context.Context) error
	Feed(ctx context.Context) error
	Like(ctx context.Context, post string) error
	Status(ctx context.Context) string
}

// runREPL reads one command per line and dispatches it to x until EOF or
// "exit". Handler errors are printed and the loop continues.
//
//	board [category]        today's leaderboard
//	inc|dec <category> [u]  change a counter
//	signin <user> | signout
//	view <name>             announce the current view
//	who                     people online
//	feed | like <post>
//	exit | quit
func runREPL(ctx context.Context, x executor, in *bufio.Scanner, out io.Writer) {
	for {
		fmt.Fprintf(out, "goalboard %s> ", x.Status(ctx))
		if !in.Scan() {
			fmt.Fprintln(out)
			return
		}
		parts := strings.Fields(in.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			fmt.Fprintln(out, "Available commands: board, inc, dec, signin, signout, view, who, feed, like, exit")
		case "board":
			err = x.Board(ctx, optArg(args, 0))
		case "inc", "dec":
			if len(args) == 0 {
				fmt.Fprintf(out, "Usage: %s <category> [user]\n", cmd)
				continue
			}
			err = x.Count(ctx, args[0], optArg(args, 1), cmd == "inc")
		case "signin":
			if len(args) == 0 {
				fmt.Fprintln(out, "Usage: signin <user>")
				continue
			}
			err = x.SignIn(ctx, strings.Join(args, " "))
		case "signout":
			err = x.SignOut(ctx)
		case "view":
			if len(args) == 0 {
				fmt.Fprintln(out, "Usage: view <name>")
				continue
			}
			err = x.View(ctx, args[0])
		case "who":
			err = x.Who(ctx)
		case "feed":
			err = x.Feed(ctx)
		case "like":
			if len(args) == 0 {
				fmt.Fprintln(out, "Usage: like <post>")
				continue
			}
			err = x.Like(ctx, args[0])
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
		if err != nil {
			fmt.Fprintln(out, "error:", err)
		}
	}
}

type session struct {
	app *App
	out io.Writer
}

func (s *session) Status(context.Context) string {
	var parts []string
	if u, ok := s.app.engine.CurrentUser(); ok {
		parts = append(parts, u.Name)
	}
	if s.app.Online() {
		parts = append(parts, "online")
	} else {
		parts = append(parts, "offline")
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func (s *session) Board(_ context.Context, category string) error {
	cats := models.Categories
	if category != "" {
		c, err := models.ParseCategory(category)
		if err != nil {
			return err
		}
		cats = []models.Category{c}
	}
	for _, c := range cats {
		if err := printBoard(s.out, c, s.app.engine.Leaderboard(c)); err != nil {
			return err
		}
	}
	return nil
}

func (s *session) Count(ctx context.Context, category, user string, up bool) error {
	c, err := models.ParseCategory(category)
	if err != nil {
		return err
	}
	u, err := s.app.currentOr(user)
	if err != nil {
		return err
	}
	var entry models.DailyLogEntry
	if up {
		entry, err = s.app.engine.Increment(ctx, u.ID, c)
	} else {
		entry, err = s.app.engine.Decrement(ctx, u.ID, c)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "%s %s: %d/%d\n", u.Name, c, entry.Count, u.Goals.For(c))
	return nil
}

func (s *session) SignIn(ctx context.Context, user string) error {
	u, err := s.app.resolveUser(user)
	if err != nil {
		return err
	}
	return s.app.session.SignIn(ctx, u.ID, true)
}

func (s *session) SignOut(ctx context.Context) error {
	return s.app.session.SignOut(ctx)
}

func (s *session) View(ctx context.Context, view string) error {
	return s.app.session.SetView(ctx, view)
}

func (s *session) Who(context.Context) error {
	roster := s.app.session.Presence.Roster()
	if len(roster) == 0 {
		fmt.Fprintln(s.out, "nobody else is online")
		return nil
	}
	return table(s.out, "NAME\tROLE\tVIEW", func(w io.Writer) {
		for _, e := range roster {
			fmt.Fprintf(w, "%s\t%s\t%s\n", e.UserName, e.UserRole, e.CurrentView)
		}
	})
}

func (s *session) Feed(context.Context) error {
	printFeed(s.out, s.app.engine.Feed())
	return nil
}

func (s *session) Like(ctx context.Context, post string) error {
	u, err := s.app.currentOr("")
	if err != nil {
		return err
	}
	p, err := s.app.resolvePost(post)
	if err != nil {
		return err
	}
	_, err = s.app.engine.LikePost(ctx, p.ID, u.ID)
	return err
}

func (r *root) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep a live session open and read commands from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, true, func(ctx context.Context, a *App) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Welcome to %s (type 'help' for commands)\n", a.engine.Settings().TeamName)
				runREPL(ctx, &session{app: a, out: out}, bufio.NewScanner(cmd.InOrStdin()), out)
				return nil
			})
		},
	}
}
