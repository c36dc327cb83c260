package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/goalboard/internal/client/engine"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
)

func (r *root) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, bootstrap phase and queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				pending, err := a.queue.Len(ctx)
				if err != nil {
					return err
				}
				failed, err := a.queue.Failed(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				conn := "offline"
				if a.Online() {
					conn = "online"
				}
				if !a.remote.Configured() {
					conn = "local only"
				}
				fmt.Fprintf(out, "team:        %s\n", a.engine.Settings().TeamName)
				fmt.Fprintf(out, "remote:      %s\n", conn)
				fmt.Fprintf(out, "phase:       %s\n", a.session.Sequencer().Phase())
				fmt.Fprintf(out, "queued:      %d pending, %d failed\n", pending, len(failed))
				if u, ok := a.engine.CurrentUser(); ok {
					fmt.Fprintf(out, "signed in:   %s\n", u.Name)
				}
				return nil
			})
		},
	}
}

func (r *root) boardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "board [category]",
		Short: "Show today's leaderboard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := models.Categories
			if len(args) == 1 {
				c, err := models.ParseCategory(args[0])
				if err != nil {
					return err
				}
				cats = []models.Category{c}
			}
			return r.withApp(cmd, false, func(_ context.Context, a *App) error {
				for _, c := range cats {
					if err := printBoard(cmd.OutOrStdout(), c, a.engine.Leaderboard(c)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func (r *root) counterCommand(use, short string, up bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <category> [user]",
		Short: short,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := models.ParseCategory(args[0])
			if err != nil {
				return err
			}
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.currentOr(optArg(args, 1))
				if err != nil {
					return err
				}
				var entry models.DailyLogEntry
				if up {
					entry, err = a.engine.Increment(ctx, u.ID, c)
				} else {
					entry, err = a.engine.Decrement(ctx, u.ID, c)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %d/%d\n", u.Name, c, entry.Count, u.Goals.For(c))
				return nil
			})
		},
	}
}

func optArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

type goalFlags struct {
	reviews, demos, callbacks int
}

func (g *goalFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&g.reviews, "reviews", 0, "daily reviews goal")
	cmd.Flags().IntVar(&g.demos, "demos", 0, "daily demos goal")
	cmd.Flags().IntVar(&g.callbacks, "callbacks", 0, "daily callbacks goal")
}

// apply overlays the explicitly set goal flags onto base.
func (g *goalFlags) apply(cmd *cobra.Command, base models.Goals) (models.Goals, bool) {
	changed := false
	set := func(name string, dst *int, v int) {
		if cmd.Flags().Changed(name) {
			*dst, changed = v, true
		}
	}
	set("reviews", &base.Reviews, g.reviews)
	set("demos", &base.Demos, g.demos)
	set("callbacks", &base.Callbacks, g.callbacks)
	return base, changed
}

func (r *root) userCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage team members"}

	var role string
	var goals goalFlags
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				var gp *models.Goals
				if g, changed := goals.apply(cmd, a.engine.Settings().DefaultGoals); changed {
					gp = &g
				}
				u, err := a.engine.CreateUser(ctx, args[0], role, gp)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", u.Name, u.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&role, "role", "agent", "agent, manager or admin")
	goals.register(add)

	list := &cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(_ context.Context, a *App) error {
				cur, _ := a.engine.CurrentUser()
				return printUsers(cmd.OutOrStdout(), a.engine.Users(), cur.ID)
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <user>",
		Short: "Remove a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.resolveUser(args[0])
				if err != nil {
					return err
				}
				return a.engine.DeleteUser(ctx, u.ID)
			})
		},
	}

	var newGoals goalFlags
	setGoals := &cobra.Command{
		Use:   "goals <user>",
		Short: "Change the daily goals of a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.resolveUser(args[0])
				if err != nil {
					return err
				}
				g, _ := newGoals.apply(cmd, u.Goals)
				u, err = a.engine.UpdateGoals(ctx, u.ID, g)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: reviews %d, demos %d, callbacks %d\n",
					u.Name, u.Goals.Reviews, u.Goals.Demos, u.Goals.Callbacks)
				return nil
			})
		},
	}
	newGoals.register(setGoals)

	var remember bool
	use := &cobra.Command{
		Use:   "use <user>",
		Short: "Sign in as a team member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.resolveUser(args[0])
				if err != nil {
					return err
				}
				return a.session.SignIn(ctx, u.ID, remember)
			})
		},
	}
	use.Flags().BoolVar(&remember, "remember", true, "restore this user on the next start")

	signout := &cobra.Command{
		Use:   "signout",
		Short: "Forget the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				return a.session.SignOut(ctx)
			})
		},
	}

	cmd.AddCommand(add, list, rm, setGoals, use, signout)
	return cmd
}

func (r *root) appointmentCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "appt", Short: "Manage appointments"}

	var in struct {
		at    string
		notes string
		demo  bool
		owner string
	}
	parseAt := func() (time.Time, error) {
		if in.at == "" {
			return time.Time{}, nil
		}
		return time.ParseInLocation("2006-01-02 15:04", in.at, time.Local)
	}

	add := &cobra.Command{
		Use:   "add <client>",
		Short: "Book an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAt()
			if err != nil {
				return err
			}
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.currentOr(in.owner)
				if err != nil {
					return err
				}
				ap, err := a.engine.AddAppointment(ctx, u.ID, engine.AppointmentInput{
					ClientName:   args[0],
					ScheduledAt:  at,
					Notes:        in.notes,
					CountsAsDemo: in.demo,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "booked %s (%s)\n", ap.ClientName, ap.ID)
				return nil
			})
		},
	}
	add.Flags().StringVar(&in.at, "at", "", `local time "YYYY-MM-DD HH:MM"`)
	add.Flags().StringVar(&in.notes, "notes", "", "free-form notes")
	add.Flags().BoolVar(&in.demo, "demo", false, "the appointment counts as a demo")
	add.Flags().StringVar(&in.owner, "user", "", "owner (defaults to the signed-in user)")

	edit := &cobra.Command{
		Use:   "edit <id> <client>",
		Short: "Change an appointment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := parseAt()
			if err != nil {
				return err
			}
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				_, err := a.engine.EditAppointment(ctx, models.ParseID(args[0]), engine.AppointmentInput{
					ClientName:   args[1],
					ScheduledAt:  at,
					Notes:        in.notes,
					CountsAsDemo: in.demo,
				})
				return err
			})
		},
	}
	edit.Flags().StringVar(&in.at, "at", "", `local time "YYYY-MM-DD HH:MM"`)
	edit.Flags().StringVar(&in.notes, "notes", "", "free-form notes")
	edit.Flags().BoolVar(&in.demo, "demo", false, "the appointment counts as a demo")

	list := &cobra.Command{
		Use:   "list",
		Short: "List appointments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(_ context.Context, a *App) error {
				names := map[models.ID]string{}
				for _, u := range a.engine.Users() {
					names[u.ID] = u.Name
				}
				return printAppointments(cmd.OutOrStdout(), a.engine.Appointments(), names)
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Cancel an appointment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				return a.engine.DeleteAppointment(ctx, models.ParseID(args[0]))
			})
		},
	}

	cmd.AddCommand(add, edit, list, rm)
	return cmd
}

func (r *root) postCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "post", Short: "Read and write the team feed"}

	var author string
	withAuthor := func(c *cobra.Command) *cobra.Command {
		c.Flags().StringVar(&author, "user", "", "author (defaults to the signed-in user)")
		return c
	}

	var category string
	add := withAuthor(&cobra.Command{
		Use:   "add <content>",
		Short: "Post to the feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var c models.Category
			if category != "" {
				var err error
				if c, err = models.ParseCategory(category); err != nil {
					return err
				}
			}
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.currentOr(author)
				if err != nil {
					return err
				}
				p, err := a.engine.AddPost(ctx, u.ID, args[0], c)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "posted %s\n", p.ID)
				return nil
			})
		},
	})
	add.Flags().StringVar(&category, "category", "", "related category")

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(_ context.Context, a *App) error {
				printFeed(cmd.OutOrStdout(), a.engine.Feed())
				return nil
			})
		},
	}

	edit := &cobra.Command{
		Use:   "edit <post> <content>",
		Short: "Change a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				_, err := a.engine.EditPost(ctx, models.ParseID(args[0]), args[1])
				return err
			})
		},
	}

	rm := &cobra.Command{
		Use:   "rm <post>",
		Short: "Delete a post with its likes and comments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				return a.engine.DeletePost(ctx, models.ParseID(args[0]))
			})
		},
	}

	reaction := func(use, short string, like bool) *cobra.Command {
		return withAuthor(&cobra.Command{
			Use:   use + " <post>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
					u, err := a.currentOr(author)
					if err != nil {
						return err
					}
					p, err := a.resolvePost(args[0])
					if err != nil {
						return err
					}
					if like {
						_, err = a.engine.LikePost(ctx, p.ID, u.ID)
					} else {
						_, err = a.engine.UnlikePost(ctx, p.ID, u.ID)
					}
					return err
				})
			},
		})
	}

	comment := withAuthor(&cobra.Command{
		Use:   "comment <post> <content>",
		Short: "Comment on a post",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				u, err := a.currentOr(author)
				if err != nil {
					return err
				}
				p, err := a.resolvePost(args[0])
				if err != nil {
					return err
				}
				c, err := a.engine.CommentPost(ctx, p.ID, u.ID, args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "commented %s\n", c.ID)
				return nil
			})
		},
	})

	uncomment := &cobra.Command{
		Use:   "uncomment <post> <comment>",
		Short: "Delete a comment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				return a.engine.DeleteComment(ctx, models.ParseID(args[0]), models.ParseID(args[1]))
			})
		},
	}

	cmd.AddCommand(add, list, edit, rm,
		reaction("like", "Like a post", true),
		reaction("unlike", "Withdraw a like", false),
		comment, uncomment)
	return cmd
}

func (r *root) settingsCommand() *cobra.Command {
	var team string
	var celebrations, autoPost bool
	var goals goalFlags

	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change team settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				s := a.engine.Settings()
				changed := false
				if cmd.Flags().Changed("team") {
					s.TeamName, changed = team, true
				}
				if cmd.Flags().Changed("celebrations") {
					s.CelebrationsEnabled, changed = celebrations, true
				}
				if cmd.Flags().Changed("auto-post") {
					s.AutoPostEnabled, changed = autoPost, true
				}
				if g, ok := goals.apply(cmd, s.DefaultGoals); ok {
					s.DefaultGoals, changed = g, true
				}
				if changed {
					var err error
					if s, err = a.engine.UpdateSettings(ctx, s); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "team:          %s\n", s.TeamName)
				fmt.Fprintf(out, "default goals: reviews %d, demos %d, callbacks %d\n",
					s.DefaultGoals.Reviews, s.DefaultGoals.Demos, s.DefaultGoals.Callbacks)
				fmt.Fprintf(out, "celebrations:  %t\n", s.CelebrationsEnabled)
				fmt.Fprintf(out, "auto posts:    %t\n", s.AutoPostEnabled)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&team, "team", "", "team name")
	cmd.Flags().BoolVar(&celebrations, "celebrations", true, "announce reached goals")
	cmd.Flags().BoolVar(&autoPost, "auto-post", true, "post to the feed on reviews and callbacks")
	goals.register(cmd)
	return cmd
}

func (r *root) themeCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "theme [light|dark|system]",
		Short:     "Show or set the theme mode",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{models.ThemeLight, models.ThemeDark, models.ThemeSystem},
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				if len(args) == 1 {
					if err := a.engine.SetThemeMode(ctx, args[0]); err != nil {
						return err
					}
				}
				fmt.Fprintln(cmd.OutOrStdout(), a.engine.ThemeMode())
				return nil
			})
		},
	}
}

func (r *root) snapshotCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot [YYYY-MM-DD]",
		Short: "Freeze every user's counts for a day",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				date := optArg(args, 0)
				if date == "" {
					date = time.Now().Format(time.DateOnly)
				}
				snap, err := a.engine.SnapshotDay(ctx, date)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "snapshot %s: %d users\n", snap.Date, len(snap.Counts))
				return nil
			})
		},
	}
}
