// Command lqaboss works with LQA job packages from the command line: list
// them on a storage backend, inspect their review state, apply edits and
// candidate choices, export review reports, and pack new packages.
//
// Usage:
//
//	lqaboss [--backend local|gdrive|dropbox|capture] [--root DIR] <command> ...
//
// Configuration comes from the environment (LQABOSS_*, GDRIVE_*, DROPBOX_*,
// REDIS_URL); --backend and --root override it.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/l10nmonster/lqa-boss-sub001/internal/config"
	"github.com/l10nmonster/lqa-boss-sub001/internal/logging"
	"github.com/l10nmonster/lqa-boss-sub001/internal/notice"
	"github.com/l10nmonster/lqa-boss-sub001/internal/session"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage/capture"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage/dropbox"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage/gdrive"
	"github.com/l10nmonster/lqa-boss-sub001/internal/storage/local"
)

// app is the state shared by all commands of one invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *storage.Registry
	out      io.Writer
	errOut   io.Writer
}

func newApp(cfg *config.Config, out, errOut io.Writer) *app {
	a := &app{
		cfg:    cfg,
		logger: logging.New(errOut, cfg.Log),
		out:    out,
		errOut: errOut,
	}
	a.registry = a.newRegistry()
	return a
}

func (a *app) newRegistry() *storage.Registry {
	reg := storage.NewRegistry()
	reg.Register(config.BackendLocal, func(context.Context) (storage.Backend, error) {
		s, err := local.New(a.cfg.Local.Root, a.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	reg.Register(config.BackendGDrive, func(context.Context) (storage.Backend, error) {
		return gdrive.New(gdrive.Config{
			Token:     a.cfg.GDrive.Token,
			BaseURL:   a.cfg.GDrive.BaseURL,
			UploadURL: a.cfg.GDrive.UploadURL,
			Timeout:   a.cfg.HTTPTimeout,
		}, a.logger), nil
	})
	reg.Register(config.BackendDropbox, func(context.Context) (storage.Backend, error) {
		return dropbox.New(dropbox.Config{
			Token:      a.cfg.Dropbox.Token,
			APIURL:     a.cfg.Dropbox.APIURL,
			ContentURL: a.cfg.Dropbox.ContentURL,
			Timeout:    a.cfg.HTTPTimeout,
		}, a.logger), nil
	})
	reg.Register(config.BackendCapture, func(ctx context.Context) (storage.Backend, error) {
		s, err := capture.Connect(ctx, a.cfg.Capture.RedisURL, a.logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	return reg
}

// backend opens the configured backend. The returned func releases it.
func (a *app) backend(ctx context.Context) (storage.Backend, func(), error) {
	b, err := a.registry.Open(ctx, a.cfg.Backend)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {}
	if c, ok := b.(io.Closer); ok {
		closer = func() { _ = c.Close() }
	}
	return b, closer, nil
}

// printer shows notices on the error stream.
func (a *app) printer() notice.Hook {
	return notice.HookFunc(func(_ context.Context, n notice.Notice) error {
		_, err := fmt.Fprintf(a.errOut, "%s: %s\n", n.Level, n.Message)
		return err
	})
}

// open starts a session on the configured backend and opens package id.
func (a *app) open(ctx context.Context, id string) (*session.Session, func(), error) {
	b, closeBackend, err := a.backend(ctx)
	if err != nil {
		return nil, nil, err
	}
	s := session.New(b, session.WithLogger(a.logger), session.WithHooks(a.printer()))
	if err := s.Open(ctx, id, ""); err != nil {
		closeBackend()
		return nil, nil, err
	}
	return s, func() { s.Close(); closeBackend() }, nil
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		a       *app
		backend string
		root    string
	)
	cmd := &cobra.Command{
		Use:           "lqaboss",
		Short:         "Review and reconcile LQA translation job packages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if backend != "" {
				cfg.Backend = backend
			}
			if root != "" {
				cfg.Local.Root = root
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a = newApp(cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "storage backend (local, gdrive, dropbox, capture)")
	cmd.PersistentFlags().StringVar(&root, "root", "", "root directory of the local backend")

	get := func() *app { return a }
	cmd.AddCommand(
		newLsCmd(get),
		newStatusCmd(get),
		newDiffCmd(get),
		newEditCmd(get),
		newSelectCmd(get),
		newAnnotateCmd(get),
		newReportCmd(get),
		newPackCmd(get),
		newWatchCmd(get),
		newVersionCmd(),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
