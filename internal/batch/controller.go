// Package batch drives a list of photos through rating with a bounded number
// of requests in flight. Items move Pending -> Processing -> Completed or
// Error; the batch can be started, stopped and cleared at any time without
// losing finished work.
package batch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fpang/photo-rater/internal/filehandler"
	"github.com/fpang/photo-rater/internal/metrics"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Defaults.
const (
	DefaultConcurrency  = 4
	DefaultTickInterval = time.Second
)

// ErrNotFound is returned for unknown item ids.
var ErrNotFound = errors.New("item not found")

// Rater rates one photo. It must always return; failures are carried in the
// Result.
type Rater interface {
	Rate(ctx context.Context, name string, payload []byte) rating.Result
}

// Releaser frees the preview behind a display handle.
type Releaser interface {
	Release(handle string) bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithConcurrency sets the maximum number of rating requests in flight.
func WithConcurrency(n int) Option {
	return func(c *Controller) {
		if n < 1 {
			n = 1
		}
		c.limit = n
	}
}

// WithTickInterval sets the scheduler polling interval used by Run.
func WithTickInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithReleaser sets who frees preview handles on removal and clear.
func WithReleaser(r Releaser) Option {
	return func(c *Controller) { c.releaser = r }
}

// WithHoldNew adds new items as Idle while the batch is stopped; Start queues
// them. Items added during a run are queued right away.
func WithHoldNew(hold bool) Option {
	return func(c *Controller) { c.holdNew = hold }
}

type job struct {
	id      string
	name    string
	payload []byte
}

// Controller owns the item list. All methods are safe for concurrent use.
type Controller struct {
	rater    Rater
	releaser Releaser
	limit    int
	interval time.Duration
	holdNew  bool

	mu       sync.Mutex
	ctx      context.Context
	items    []*Item
	index    map[string]*Item
	inflight map[string]struct{}
	running  bool
	started  time.Time

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

// New creates a stopped, empty controller.
func New(rater Rater, opts ...Option) *Controller {
	c := &Controller{
		rater:    rater,
		limit:    DefaultConcurrency,
		interval: DefaultTickInterval,
		ctx:      context.Background(),
		index:    make(map[string]*Item),
		inflight: make(map[string]struct{}),
		subs:     make(map[int]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Concurrency returns the in-flight limit.
func (c *Controller) Concurrency() int {
	return c.limit
}

// Run ticks the scheduler every interval until ctx is done. Rating requests
// launched afterwards run on ctx, so canceling it is the only way to abort
// them.
func (c *Controller) Run(ctx context.Context) error {
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()

	log.Debug().
		Int("concurrency", c.limit).
		Dur("interval", c.interval).
		Msg("Batch scheduler started")

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("Batch scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Tick runs one scheduling pass: it turns running off when nothing is
// Pending or Processing, otherwise it promotes Pending items in insertion
// order until the in-flight set is full and launches their requests.
func (c *Controller) Tick() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}

	var pending []*Item
	processing := 0
	for _, it := range c.items {
		switch it.Status {
		case StatusPending:
			pending = append(pending, it)
		case StatusProcessing:
			processing++
		}
	}

	if processing == 0 && len(pending) == 0 {
		c.running = false
		stats := computeStats(c.items)
		elapsed := time.Since(c.started)
		c.mu.Unlock()

		log.Info().
			Int("total", stats.Total).
			Int("completed", stats.Completed).
			Int("failed", stats.Failed).
			Dur("duration", elapsed).
			Msg("Batch finished")
		metrics.New("PhotoRater").
			Metric("BatchDurationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
			Metric("BatchItems", float64(stats.Total), metrics.UnitCount).
			Metric("BatchFailures", float64(stats.Failed), metrics.UnitCount).
			Count("BatchesFinished").
			Flush()

		c.notify()
		return
	}

	free := c.limit - len(c.inflight)
	var jobs []job
	for _, it := range pending {
		if free <= 0 {
			break
		}
		if _, busy := c.inflight[it.ID]; busy {
			continue
		}
		it.Status = StatusProcessing
		c.inflight[it.ID] = struct{}{}
		jobs = append(jobs, job{id: it.ID, name: it.Name, payload: it.payload})
		free--
	}
	ctx := c.ctx
	c.mu.Unlock()

	if len(jobs) == 0 {
		return
	}

	log.Debug().Int("launched", len(jobs)).Int("pending", len(pending)-len(jobs)).Msg("Scheduling items")
	c.notify()
	for _, j := range jobs {
		go c.process(ctx, j)
	}
}

func (c *Controller) process(ctx context.Context, j job) {
	res := c.rater.Rate(ctx, j.name, j.payload)
	c.complete(j.id, res)
	c.Tick()
}

// complete records a result. Results for removed items are dropped.
func (c *Controller) complete(id string, res rating.Result) {
	c.mu.Lock()
	delete(c.inflight, id)
	it, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		log.Debug().Str("id", id).Msg("Dropping result for removed item")
		return
	}

	it.Attempts = res.Attempts
	it.Critique = res.Critique
	if res.Err != nil {
		it.Status = StatusError
		it.Rating = rating.GradeRejected
	} else {
		it.Status = StatusCompleted
		it.Rating = res.Grade
	}
	it.payload = nil
	name, status := it.Name, it.Status
	c.mu.Unlock()

	log.Debug().Str("id", id).Str("file", name).Str("status", string(status)).Msg("Item finished")
	c.notify()
}

// Add appends a new item. meta may be nil.
func (c *Controller) Add(name string, payload []byte, preview string, meta *filehandler.ImageMetadata) Item {
	it := &Item{
		ID:      uuid.NewString(),
		Name:    name,
		Preview: preview,
		Rating:  rating.GradeUnrated,
		Status:  StatusPending,
		AddedAt: time.Now(),
		payload: payload,
	}
	if meta != nil {
		it.Camera = meta.Camera()
		if meta.HasDate {
			taken := meta.DateTaken
			it.TakenAt = &taken
		}
	}

	c.mu.Lock()
	if c.holdNew && !c.running {
		it.Status = StatusIdle
	}
	c.items = append(c.items, it)
	c.index[it.ID] = it
	out := *it
	c.mu.Unlock()

	log.Debug().Str("id", it.ID).Str("file", name).Int("bytes", len(payload)).Msg("Item added")
	c.notify()
	return out
}

// Remove discards one item and releases its preview. An in-flight request
// for it keeps its slot until it returns; its result is then dropped.
func (c *Controller) Remove(id string) error {
	c.mu.Lock()
	it, ok := c.index[id]
	if !ok {
		c.mu.Unlock()
		return ErrNotFound
	}
	delete(c.index, id)
	for i, cur := range c.items {
		if cur.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.release(it.Preview)
	log.Debug().Str("id", id).Str("file", it.Name).Msg("Item removed")
	c.notify()
	return nil
}

// Clear discards every item, releases every preview and stops the batch.
// It returns the number of items removed.
func (c *Controller) Clear() int {
	c.mu.Lock()
	items := c.items
	c.items = nil
	c.index = make(map[string]*Item)
	c.running = false
	c.mu.Unlock()

	for _, it := range items {
		c.release(it.Preview)
	}
	log.Info().Int("items", len(items)).Msg("Batch cleared")
	c.notify()
	return len(items)
}

func (c *Controller) release(handle string) {
	if c.releaser != nil && handle != "" {
		c.releaser.Release(handle)
	}
}

// Start turns scheduling on, queues Idle items and runs a tick immediately.
func (c *Controller) Start() {
	c.mu.Lock()
	for _, it := range c.items {
		if it.Status == StatusIdle {
			it.Status = StatusPending
		}
	}
	if !c.running {
		c.started = time.Now()
	}
	c.running = true
	c.mu.Unlock()

	log.Info().Int("concurrency", c.limit).Msg("Batch started")
	c.notify()
	c.Tick()
}

// Stop turns scheduling off. Requests in flight still finish.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.running = false
	inflight := len(c.inflight)
	c.mu.Unlock()

	log.Info().Int("in_flight", inflight).Msg("Batch stopped")
	c.notify()
}

// Running reports whether scheduling is on.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// InFlight returns the number of outstanding rating requests.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Items returns copies of all items in insertion order.
func (c *Controller) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Item, len(c.items))
	for i, it := range c.items {
		out[i] = *it
	}
	return out
}

// Get returns a copy of one item.
func (c *Controller) Get(id string) (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.index[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// Stats computes the statistics of the current item list.
func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return computeStats(c.items)
}

// Samples returns the rated items for the group report, in insertion order.
func (c *Controller) Samples() []rating.Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []rating.Sample
	for _, it := range c.items {
		if it.Status == StatusCompleted {
			out = append(out, rating.Sample{Name: it.Name, Grade: it.Rating, Critique: it.Critique})
		}
	}
	return out
}

// Subscribe returns a channel that receives a value after state changes.
// Notifications coalesce: a slow reader sees one pending signal, never a
// backlog. Call the returned func to unsubscribe.
func (c *Controller) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.subMu.Unlock()

	return ch, func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

func (c *Controller) notify() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Wait blocks until the batch is not running and no request is in flight.
func (c *Controller) Wait(ctx context.Context) error {
	ch, cancel := c.Subscribe()
	defer cancel()

	for {
		c.mu.Lock()
		done := !c.running && len(c.inflight) == 0
		c.mu.Unlock()
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}
