package cli

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/goalboard/internal/client/config"
	"github.com/dmitrijs2005/goalboard/internal/logging"
)

type root struct {
	configPath string
	cfg        *config.Config
	logger     logging.Logger
	in         io.Reader
	out        io.Writer

	// appOptions lets tests inject a notifier or engine options.
	appOptions AppOptions
}

// NewRootCommand builds the goalboard command tree reading interactive input
// from in and writing to out.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	return newRoot(in, out).command()
}

func newRoot(in io.Reader, out io.Writer) *root {
	return &root{in: in, out: out}
}

func (r *root) command() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "goalboard",
		Short:         "Offline-first team goal board",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(r.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			r.cfg, r.logger = cfg, logger
			return nil
		},
	}
	cmd.SetIn(r.in)
	cmd.SetOut(r.out)

	fs := cmd.PersistentFlags()
	fs.StringVarP(&r.configPath, "config", "c", "", "path to a TOML config file")
	config.RegisterFlags(fs)

	cmd.AddCommand(
		r.statusCommand(),
		r.boardCommand(),
		r.counterCommand("inc", "Increment today's count", true),
		r.counterCommand("dec", "Decrement today's count", false),
		r.userCommand(),
		r.appointmentCommand(),
		r.postCommand(),
		r.settingsCommand(),
		r.themeCommand(),
		r.snapshotCommand(),
		r.exportCommand(),
		r.queueCommand(),
		r.chatCommand(),
		r.watchCommand(),
	)
	return cmd
}

// withApp runs fn against a started App and always tears it down.
func (r *root) withApp(cmd *cobra.Command, realtime bool, fn func(ctx context.Context, a *App) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := r.appOptions
	opts.Realtime = realtime
	a, err := NewApp(ctx, r.cfg, r.logger, cmd.OutOrStdout(), opts)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(context.WithoutCancel(ctx)))
	}()

	if err := a.Start(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}
