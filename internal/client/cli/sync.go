package cli

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/goalboard/internal/client/export"
)

func (r *root) exportCommand() *cobra.Command {
	var toS3 bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSON snapshot of the board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
				var sink export.Sink = export.FileSink{Dir: a.cfg.ExportDir}
				if toS3 {
					s := a.cfg.S3
					sink = export.NewS3Sink(export.S3Config{
						Region:    s.Region,
						AccessKey: s.AccessKey,
						SecretKey: s.SecretKey,
						Endpoint:  s.Endpoint,
						Bucket:    s.Bucket,
						Prefix:    s.Prefix,
					}, &http.Client{Timeout: time.Minute})
				}

				res, err := export.Write(ctx, sink, export.FromState(a.engine.Snapshot(), time.Now()))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "exported %d bytes to %s\n", res.Size, res.Location)
				fmt.Fprintf(out, "blake2b: %s\n", res.Digest)
				if res.URL != "" {
					fmt.Fprintf(out, "link (valid %s): %s\n", export.LinkExpiry, res.URL)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&toS3, "s3", false, "upload to the configured S3 bucket instead of a local file")
	return cmd
}

func (r *root) queueCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "queue", Short: "Inspect the sync queue"}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List pending operations in drain order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
					entries, err := a.queue.Pending(ctx)
					if err != nil {
						return err
					}
					return printEntries(cmd.OutOrStdout(), entries)
				})
			},
		},
		&cobra.Command{
			Use:   "failed",
			Short: "List operations the remote store rejected",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
					entries, err := a.queue.Failed(ctx)
					if err != nil {
						return err
					}
					return printEntries(cmd.OutOrStdout(), entries)
				})
			},
		},
		&cobra.Command{
			Use:   "drain",
			Short: "Send pending operations now",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
					if !a.Online() {
						return fmt.Errorf("remote store is not reachable")
					}
					res, err := a.queue.Process(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "applied %d, failed %d, remaining %d\n", res.Applied, res.Failed, res.Remaining)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "flush",
			Short: "Discard every pending operation",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return r.withApp(cmd, false, func(ctx context.Context, a *App) error {
					n, err := a.queue.Flush(ctx)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "dropped %d operations\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}
