package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/evnp/graph-of-thrones/pkg/config"
	"github.com/evnp/graph-of-thrones/pkg/diagram"
	"github.com/evnp/graph-of-thrones/pkg/logging"
	"github.com/evnp/graph-of-thrones/pkg/pubsub"
	"github.com/evnp/graph-of-thrones/pkg/watcher"
	"github.com/evnp/graph-of-thrones/pkg/web"
)

const (
	quietPeriod = 300 * time.Millisecond
	maxWait     = 2 * time.Second
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the interactive chord diagram",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, cmd.Flags())
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet) error {
	// The server starts empty; the corpus is loaded in the background and
	// progress is reported on the status topic.
	d := newDiagram(cfg, nil)
	server := web.NewServer(d, cfg.WebUI)
	pub := server.Publisher()
	d.OnRebuild(func(v *diagram.View) {
		pubsub.PublishStatus(pub, "ready", fmt.Sprintf("%d characters", len(v.Names)), v.Generation)
	})

	go func() {
		if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("rebuild worker stopped", "error", err)
		}
	}()

	go func() {
		pubsub.PublishStatus(pub, "loading", "reading "+cfg.Data, 0)
		idx, _, err := loadCorpus(cfg)
		if err != nil {
			logging.Error("initial load failed", "error", err)
			pubsub.PublishStatus(pub, "error", err.Error(), 0)
			return
		}
		d.SetCorpus(idx)
		if _, err := d.Apply(ctx, cfg.Filter); err != nil {
			logging.Error("initial rebuild failed", "error", err)
			pubsub.PublishStatus(pub, "error", err.Error(), 0)
		}
	}()

	if cfg.Watch {
		if err := startWatching(ctx, cfg, flags, d, pub); err != nil {
			return err
		}
	}

	if cfg.OpenBrowser && cfg.WebUI {
		go func() {
			// Give the listener a moment to come up.
			time.Sleep(500 * time.Millisecond)
			openBrowser(fmt.Sprintf("http://localhost:%d", cfg.Port))
		}()
	}

	err := server.Start(ctx, cfg.Port)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// startWatching reloads the corpus, and the config file if one was read,
// whenever they change on disk.
func startWatching(ctx context.Context, cfg *config.Config, flags *pflag.FlagSet, d *diagram.Diagram, pub pubsub.Publisher) error {
	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(cfg.Data, watcher.ChangeTypeData); err != nil {
		return err
	}
	if cfg.File != "" {
		if err := fw.Add(cfg.File, watcher.ChangeTypeConfig); err != nil {
			return err
		}
	}

	debouncer := watcher.NewDebouncer(fw.Events(), quietPeriod, maxWait)
	fw.Start(ctx)
	debouncer.Start(ctx)

	go func() {
		current := cfg
		for event := range debouncer.Output() {
			plan := watcher.AnalyzeChanges(event)
			logging.Info("files changed", "type", event.Type.String(), "files", plan.ChangedFiles)

			if plan.ReloadConfig {
				next, err := config.Load(flags)
				if err == nil {
					err = next.Validate()
				}
				if err != nil {
					logging.Warn("keeping previous config", "error", err)
					pubsub.PublishStatus(pub, "error", err.Error(), d.View().Generation)
					continue
				}
				logging.SetLevel(next.LogLevel())
				d.SetMatrixOptions(next.MatrixOptions())
				current = next
			}

			switch {
			case plan.ReloadCorpus:
				pubsub.PublishStatus(pub, "loading", "reloading "+current.Data, d.View().Generation)
				idx, _, err := loadCorpus(current)
				if err != nil {
					logging.Warn("keeping previous corpus", "error", err)
					pubsub.PublishStatus(pub, "error", err.Error(), d.View().Generation)
					continue
				}
				if plan.ReloadConfig {
					d.SetCorpus(idx)
					d.Submit(current.Filter)
				} else {
					d.Reload(idx)
				}
			case plan.Rebuild:
				d.Submit(d.Filter())
			}
		}
	}()
	return nil
}
