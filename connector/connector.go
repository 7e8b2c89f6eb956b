// Package connector implements the connector facade (component F): it
// resolves a Transporter and Layout at construction time, then dispatches
// batched download/upload requests to a bounded worker pool and blocks
// until every task in the batch is done.
package connector

import (
	"context"
	"sync"

	"repoconnector/download"
	"repoconnector/internal"
	"repoconnector/spi"
	"repoconnector/upload"
)

// TransporterProvider attempts to produce a Transporter. Returning
// (nil, nil) means "no opinion" — the next provider in the list gets a
// chance. A non-nil error aborts resolution immediately.
type TransporterProvider func() (spi.Transporter, error)

// LayoutProvider is the Layout equivalent of TransporterProvider.
type LayoutProvider func() (spi.Layout, error)

// Config is the connector's own runtime knobs, configuration keys
// "threads" and "parallelPut".
type Config struct {
	Threads     int
	ParallelPut bool
}

// Options is everything a Connector needs at construction time.
type Options struct {
	Config Config

	TransporterProviders []TransporterProvider
	LayoutProviders      []LayoutProvider

	// Download and Upload carry every worker knob except Transporter and
	// Layout, which New fills in once capability resolution succeeds.
	Download download.Options
	Upload   upload.Options
}

// Connector is the sole owner of the live Transporter and the worker
// pools; a Download or Upload Worker owns only the session for the one
// transfer it is currently running.
type Connector struct {
	transporter spi.Transporter

	downloadWorker *download.Worker
	uploadWorker   *upload.Worker

	getPool *pool
	putPool *pool

	mu     sync.Mutex
	closed bool
}

// New resolves a Transporter and Layout from the configured providers.
// Construction fails if either capability cannot be obtained from any
// provider.
func New(ctx context.Context, opts Options) (*Connector, error) {
	transporter, err := resolveTransporter(opts.TransporterProviders)
	if err != nil {
		return nil, err
	}
	layout, err := resolveLayout(opts.LayoutProviders)
	if err != nil {
		return nil, err
	}

	threads := opts.Config.Threads
	if threads < 1 {
		threads = 5
	}
	putThreads := 1
	if opts.Config.ParallelPut {
		putThreads = threads
	}

	downloadOpts := opts.Download
	downloadOpts.Transporter = transporter
	downloadOpts.Layout = layout

	uploadOpts := opts.Upload
	uploadOpts.Transporter = transporter
	uploadOpts.Layout = layout

	return &Connector{
		transporter:    transporter,
		downloadWorker: download.NewWorker(downloadOpts),
		uploadWorker:   upload.NewWorker(uploadOpts),
		getPool:        newPool(ctx, threads),
		putPool:        newPool(ctx, putThreads),
	}, nil
}

func resolveTransporter(providers []TransporterProvider) (spi.Transporter, error) {
	for _, p := range providers {
		t, err := p()
		if err != nil {
			return nil, internal.Wrap(internal.ErrTransfer, "resolving transporter", err)
		}
		if t != nil {
			return t, nil
		}
	}
	return nil, internal.New(internal.ErrTransfer, "no connector: no transporter provider produced a transporter")
}

func resolveLayout(providers []LayoutProvider) (spi.Layout, error) {
	for _, p := range providers {
		l, err := p()
		if err != nil {
			return nil, internal.Wrap(internal.ErrTransfer, "resolving layout", err)
		}
		if l != nil {
			return l, nil
		}
	}
	return nil, internal.New(internal.ErrTransfer, "no connector: no layout provider produced a layout")
}

// Get accepts a batch, dispatches each as an independent download worker
// task to the bounded pool, and returns after every task has reached
// DONE. Per-task results are read off the requests themselves, not a
// separate return value.
func (c *Connector) Get(ctx context.Context, requests []*download.Request) error {
	if c.isClosed() {
		return internal.New(internal.ErrCancelled, "connector is closed")
	}

	waiters := make([]<-chan error, len(requests))
	for i, req := range requests {
		req := req
		waiters[i] = c.getPool.submit(func(ctx context.Context) error {
			return c.downloadWorker.Run(ctx, req)
		})
	}
	for i, done := range waiters {
		requests[i].Err = <-done
	}
	return nil
}

// Put is Get's upload counterpart; parallelism is governed separately by
// Config.ParallelPut.
func (c *Connector) Put(ctx context.Context, requests []*upload.Request) error {
	if c.isClosed() {
		return internal.New(internal.ErrCancelled, "connector is closed")
	}

	waiters := make([]<-chan error, len(requests))
	for i, req := range requests {
		req := req
		waiters[i] = c.putPool.submit(func(ctx context.Context) error {
			return c.uploadWorker.Run(ctx, req)
		})
	}
	for i, done := range waiters {
		requests[i].Err = <-done
	}
	return nil
}

func (c *Connector) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close is idempotent: it marks the connector closed, drains both pools,
// then closes the transporter. After Close, Get and Put return an error
// instead of dispatching work.
func (c *Connector) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.getPool.close()
	c.putPool.close()
	return c.transporter.Close()
}
