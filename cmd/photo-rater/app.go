package main

import (
	"context"
	"sync"

	"github.com/fpang/photo-rater/internal/auth"
	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/cli"
	"github.com/fpang/photo-rater/internal/config"
	"github.com/fpang/photo-rater/internal/preview"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/fpang/photo-rater/internal/store"
)

// errNoBackend is the per-item failure while no credential is configured.
var errNoBackend = &auth.ValidationError{Type: auth.ErrTypeNoKey, Message: "no API key configured"}

// app wires the batch controller to the current rating backend. The backend
// can be swapped at runtime when the credential changes.
type app struct {
	cfg      *config.Config
	kv       store.KVStore
	factory  cli.BackendFactory
	previews *preview.Store
	ctrl     *batch.Controller
	pick     func() ([]string, error)

	mu       sync.RWMutex
	client   *rating.Client
	reporter *rating.Reporter
	conn     *cli.Connection
}

func newApp(c *config.Config, kv store.KVStore, factory cli.BackendFactory, opts ...batch.Option) *app {
	a := &app{
		cfg:      c,
		kv:       kv,
		factory:  factory,
		previews: preview.NewStore(preview.DefaultMaxDimension),
		pick:     pickWithDialog,
	}
	base := []batch.Option{
		batch.WithConcurrency(c.Concurrency),
		batch.WithTickInterval(c.Tick),
		batch.WithReleaser(a.previews),
	}
	a.ctrl = batch.New(a, append(base, opts...)...)
	return a
}

// connect resolves the credential and swaps in a fresh backend. On failure
// the previous backend is dropped so items fail with a clear reason.
func (a *app) connect(ctx context.Context) (*cli.Connection, error) {
	conn, err := cli.Connect(ctx, a.factory, a.cfg.Provider, a.cfg.Model, a.kv)
	if err != nil {
		a.setConnection(nil)
		return nil, err
	}
	a.setConnection(conn)
	return conn, nil
}

func (a *app) setConnection(conn *cli.Connection) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.conn = conn
	if conn == nil {
		a.client, a.reporter = nil, nil
		return
	}
	opts := []rating.Option{
		rating.WithPolicy(a.cfg.Policy()),
		rating.WithMaxDimension(a.cfg.MaxDimension),
		rating.WithSampleSize(a.cfg.ReportSample),
	}
	a.client = rating.NewClient(conn.Backend, opts...)
	a.reporter = rating.NewReporter(conn.Backend, opts...)
}

func (a *app) connection() *cli.Connection {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn
}

// Rate implements batch.Rater with whatever backend is current.
func (a *app) Rate(ctx context.Context, name string, payload []byte) rating.Result {
	a.mu.RLock()
	client := a.client
	a.mu.RUnlock()

	if client == nil {
		return rating.Result{
			Grade:    rating.FallbackGrade,
			Critique: "Rating failed: no API key is configured.",
			Err:      errNoBackend,
		}
	}
	return client.Rate(ctx, name, payload)
}

// report generates the group report over the current batch.
func (a *app) report(ctx context.Context) (*rating.Report, error) {
	a.mu.RLock()
	reporter := a.reporter
	a.mu.RUnlock()

	if reporter == nil {
		return nil, errNoBackend
	}
	return reporter.Generate(ctx, a.ctrl.Stats().Counts(), a.ctrl.Samples())
}
