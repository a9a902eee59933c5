// Package dispatch performs server-to-server fan-out of sync callback URLs,
// one of the transports the protocol allows alongside redirect chains and
// script-tag fan-out. Delivery is best effort: a broker left out of sync
// self-corrects on the user's next interaction, so failures are reported,
// never retried.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Dispatcher calls sync callback URLs concurrently with bounded per-call
// timeouts.
type Dispatcher struct {
	logger  *slog.Logger
	client  *http.Client
	timeout time.Duration
	limit   int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithHTTPClient overrides the outbound client.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) { d.client = client }
}

// WithTimeout sets the per-callback timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// WithConcurrency bounds how many callbacks run at once.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) { d.limit = n }
}

func New(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		logger:  logger,
		client:  &http.Client{Timeout: 2 * time.Second},
		timeout: 2 * time.Second,
		limit:   8,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Report lists which callbacks were delivered.
type Report struct {
	Delivered []string
	Failed    []string
}

// Dispatch GETs every callback URL. It always returns a report; an
// undeliverable callback is a degraded state, not an error.
func (d *Dispatcher) Dispatch(ctx context.Context, urls []string) Report {
	var (
		mu     sync.Mutex
		report Report
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.limit)
	for _, u := range urls {
		g.Go(func() error {
			err := d.call(ctx, u)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				d.logger.WarnContext(ctx, "sync callback failed",
					"url", u,
					"error", err,
				)
				report.Failed = append(report.Failed, u)
			} else {
				report.Delivered = append(report.Delivered, u)
			}
			// Errors are recorded, not propagated; one slow broker must not
			// cancel the rest of the fan-out.
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (d *Dispatcher) call(ctx context.Context, u string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("callback returned %d", resp.StatusCode)
	}
	return nil
}
