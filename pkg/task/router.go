package task

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"
)

// Handler processes one task payload.
type Handler func(ctx context.Context, payload any) error

// Options configures dispatch and execution of a single task.
type Options struct {
	// GroupKey serializes execution for tasks sharing the same group. An
	// empty key falls back to a global group.
	GroupKey string

	// IdempotencyKey deduplicates tasks enqueued within the IdempotencyTTL
	// window.
	IdempotencyKey string

	// MaxAttempts caps retries on handler error. Zero uses the router default.
	MaxAttempts int

	// InitialBackoff is the first retry delay. Zero uses the router default.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff. Zero uses the router default.
	MaxBackoff time.Duration

	// IdempotencyTTL is how long the idempotency key dedupes. Zero uses the
	// router default.
	IdempotencyTTL time.Duration
}

// Task is one unit of work for the router.
type Task struct {
	Type    string
	Payload any
	Options Options
}

// Config tunes router-wide behavior.
type Config struct {
	DefaultMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	IdempotencyTTL     time.Duration
	GroupBuffer        int
	CleanupInterval    time.Duration
}

// Defaults returns the configuration used when fields are left zero.
func Defaults() Config {
	return Config{
		DefaultMaxAttempts: 3,
		InitialBackoff:     time.Second,
		MaxBackoff:         30 * time.Second,
		IdempotencyTTL:     time.Minute,
		GroupBuffer:        128,
		CleanupInterval:    time.Minute,
	}
}

var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key present)")
)

const globalGroup = "_global"

// Router is an in-memory dispatcher with per-group serialization,
// idempotency dedupe, and retry with exponential backoff. Refresh jobs use
// the entity id as group key so one nation is never refreshed concurrently.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	groups   map[string]chan *queuedTask
	inflight map[string]time.Time
	closed   bool
	cfg      Config
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	randMu sync.Mutex
}

type queuedTask struct {
	task    Task
	attempt int
}

// NewRouter creates a router, filling zero config fields from Defaults.
func NewRouter(cfg Config) *Router {
	def := Defaults()
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	r := &Router{
		handlers: make(map[string]Handler),
		groups:   make(map[string]chan *queuedTask),
		inflight: make(map[string]time.Time),
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.cleanupLoop()
	return r
}

// RegisterHandler binds a handler to a task type.
func (r *Router) RegisterHandler(taskType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = h
}

// Dispatch enqueues a task. It returns ErrUnknownTaskType when no handler is
// registered and ErrDuplicateTask when a live idempotency key already exists.
func (r *Router) Dispatch(ctx context.Context, t Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrRouterClosed
	}
	if h := r.handlers[t.Type]; h == nil {
		return ErrUnknownTaskType
	}

	eff := r.effectiveOptions(t.Options)
	if eff.IdempotencyKey != "" {
		if expiry, ok := r.inflight[eff.IdempotencyKey]; ok && time.Now().Before(expiry) {
			return ErrDuplicateTask
		}
		r.inflight[eff.IdempotencyKey] = time.Now().Add(eff.IdempotencyTTL)
	}

	groupKey := eff.GroupKey
	if groupKey == "" {
		groupKey = globalGroup
	}
	ch := r.ensureGroupLocked(groupKey)

	select {
	case ch <- &queuedTask{task: t, attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the router and waits for workers to drain. Tasks still queued
// may be dropped.
func (r *Router) Close() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()
		close(r.stopCh)
		r.wg.Wait()
	})
}

func (r *Router) effectiveOptions(opt Options) Options {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = r.cfg.DefaultMaxAttempts
	}
	if opt.InitialBackoff <= 0 {
		opt.InitialBackoff = r.cfg.InitialBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = r.cfg.MaxBackoff
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = r.cfg.IdempotencyTTL
	}
	return opt
}

func (r *Router) ensureGroupLocked(key string) chan *queuedTask {
	if ch, ok := r.groups[key]; ok {
		return ch
	}
	ch := make(chan *queuedTask, r.cfg.GroupBuffer)
	r.groups[key] = ch
	r.wg.Add(1)
	go r.groupLoop(key, ch)
	return ch
}

func (r *Router) groupLoop(key string, ch chan *queuedTask) {
	defer r.wg.Done()

	for {
		var q *queuedTask
		select {
		case <-r.stopCh:
			return
		case q = <-ch:
		}

		r.mu.RLock()
		handler := r.handlers[q.task.Type]
		eff := r.effectiveOptions(q.task.Options)
		r.mu.RUnlock()

		if handler == nil {
			slog.Warn("task dropped, handler not registered", "type", q.task.Type, "group", key)
			continue
		}

		err := handler(context.Background(), q.task.Payload)
		if err == nil {
			continue
		}

		if q.attempt >= eff.MaxAttempts {
			slog.Error("task failed, max attempts reached",
				"type", q.task.Type, "group", key, "attempts", q.attempt, "error", err)
			continue
		}

		delay := r.backoff(eff.InitialBackoff, eff.MaxBackoff, q.attempt)
		slog.Warn("task failed, scheduling retry",
			"type", q.task.Type, "group", key,
			"attempt", q.attempt+1, "max_attempts", eff.MaxAttempts,
			"backoff", delay.String(), "error", err)

		r.wg.Add(1)
		go func(q *queuedTask, delay time.Duration) {
			defer r.wg.Done()
			timer := time.NewTimer(delay)
			defer timer.Stop()
			select {
			case <-timer.C:
				q.attempt++
				r.mu.RLock()
				target, closed := r.groups[key], r.closed
				r.mu.RUnlock()
				if target == nil || closed {
					return
				}
				select {
				case target <- q:
				case <-r.stopCh:
				}
			case <-r.stopCh:
			}
		}(q, delay)
	}
}

// backoff doubles per attempt and adds 10% jitter, clamped to [initial, max].
func (r *Router) backoff(initial, max time.Duration, attempt int) time.Duration {
	d := initial
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > max {
			d = max
			break
		}
	}
	d += r.jitter(d)
	if d < initial {
		d = initial
	}
	if d > max {
		d = max
	}
	return d
}

func (r *Router) jitter(d time.Duration) time.Duration {
	delta := int64(float64(d) * 0.1)
	if delta <= 0 {
		return 0
	}
	r.randMu.Lock()
	defer r.randMu.Unlock()
	return time.Duration(rand.Int63n(2*delta+1) - delta)
}

func (r *Router) cleanupLoop() {
	defer r.wg.Done()
	t := time.NewTicker(r.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-t.C:
			now := time.Now()
			r.mu.Lock()
			for k, expiry := range r.inflight {
				if now.After(expiry) {
					delete(r.inflight, k)
				}
			}
			r.mu.Unlock()
		}
	}
}
