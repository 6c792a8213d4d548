package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autonfe/desk/internal/dispatch"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/autonfe/desk/internal/notify"

// Severity classifies a toast.
type Severity string

// Toast severities
const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Phase is the visible lifecycle stage of a toast.
type Phase string

// Toast phases. A removed toast is simply absent from the stack.
const (
	PhaseActive    Phase = "active"
	PhaseFadingOut Phase = "fading_out"
)

// Toast is a snapshot of one entry in the stack.
type Toast struct {
	ID        uuid.UUID     `json:"id"`
	Message   string        `json:"message"`
	Severity  Severity      `json:"severity"`
	Phase     Phase         `json:"phase"`
	CreatedAt time.Time     `json:"created_at"`
	Duration  time.Duration `json:"duration"`
}

// Renderer draws the current stack. It is called on the UI context after
// every mutation; errors and panics are logged and otherwise ignored.
type Renderer interface {
	Render(toasts []Toast) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(toasts []Toast) error

// Render calls f(toasts).
func (f RendererFunc) Render(toasts []Toast) error {
	return f(toasts)
}

// Config holds configuration for a Center
type Config struct {
	// MaxToasts is the capacity of the stack
	MaxToasts int

	// DefaultDuration applies when Show receives a non-positive duration
	DefaultDuration time.Duration

	// FadeDuration is how long a toast stays in PhaseFadingOut
	FadeDuration time.Duration

	Logger    *slog.Logger
	Scheduler Scheduler
	Meter     metric.Meter
	Now       func() time.Time
}

// DefaultConfig returns a Config with the stock toast settings
func DefaultConfig() Config {
	return Config{
		MaxToasts:       5,
		DefaultDuration: 3 * time.Second,
		FadeDuration:    300 * time.Millisecond,
		Logger:          slog.Default(),
		Scheduler:       SystemScheduler{},
		Now:             time.Now,
	}
}

type entry struct {
	toast Toast
	timer Timer
}

// Center owns the toast stack.
type Center struct {
	dispatcher dispatch.Dispatcher
	renderer   Renderer
	logger     *slog.Logger
	scheduler  Scheduler
	now        func() time.Time

	maxToasts       int
	defaultDuration time.Duration
	fadeDuration    time.Duration

	evicted metric.Int64Counter

	// entries is ordered newest first
	entries []*entry
}

// NewCenter creates a Center. Timer expiries are marshalled through d;
// renderer may be nil.
func NewCenter(d dispatch.Dispatcher, renderer Renderer, config Config) *Center {
	defaults := DefaultConfig()
	if config.MaxToasts <= 0 {
		config.MaxToasts = defaults.MaxToasts
	}
	if config.DefaultDuration <= 0 {
		config.DefaultDuration = defaults.DefaultDuration
	}
	if config.FadeDuration < 0 {
		config.FadeDuration = defaults.FadeDuration
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Scheduler == nil {
		config.Scheduler = SystemScheduler{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.Meter == nil {
		config.Meter = otel.Meter(instrumentationName)
	}
	logger := config.Logger.With("component", "notification_center")

	evicted, err := config.Meter.Int64Counter("autonfe.toasts.evicted",
		metric.WithDescription("Toasts removed early to respect the stack capacity"),
		metric.WithUnit("{toast}"))
	if err != nil {
		logger.Warn("failed to create metric", "metric", "autonfe.toasts.evicted", "error", err)
		evicted, _ = noop.Meter{}.Int64Counter("autonfe.toasts.evicted")
	}

	return &Center{
		dispatcher:      d,
		renderer:        renderer,
		logger:          logger,
		scheduler:       config.Scheduler,
		now:             config.Now,
		maxToasts:       config.MaxToasts,
		defaultDuration: config.DefaultDuration,
		fadeDuration:    config.FadeDuration,
		evicted:         evicted,
	}
}

// Show pushes a toast on top of the stack and returns its ID. Must be called
// on the UI context. A non-positive duration means the default.
func (c *Center) Show(message string, severity Severity, duration time.Duration) uuid.UUID {
	if duration <= 0 {
		duration = c.defaultDuration
	}
	e := &entry{toast: Toast{
		ID:        uuid.New(),
		Message:   message,
		Severity:  severity,
		Phase:     PhaseActive,
		CreatedAt: c.now(),
		Duration:  duration,
	}}

	c.entries = append([]*entry{e}, c.entries...)
	for len(c.entries) > c.maxToasts {
		c.evictOldest()
	}

	id := e.toast.ID
	e.timer = c.scheduler.AfterFunc(duration, func() {
		c.dispatcher.Post(func() { c.beginFade(id) })
	})

	c.logger.Debug("toast shown",
		"toast_id", id,
		"severity", severity,
		"active", len(c.entries))
	c.render()
	return id
}

// Post schedules Show on the UI context. Safe from any goroutine; it reports
// false when the UI context is gone.
func (c *Center) Post(message string, severity Severity, duration time.Duration) bool {
	return c.dispatcher.Post(func() { c.Show(message, severity, duration) })
}

// Success shows a success toast with the default duration.
func (c *Center) Success(message string) uuid.UUID {
	return c.Show(message, SeveritySuccess, 0)
}

// Error shows an error toast with the default duration.
func (c *Center) Error(message string) uuid.UUID {
	return c.Show(message, SeverityError, 0)
}

// Warning shows a warning toast with the default duration.
func (c *Center) Warning(message string) uuid.UUID {
	return c.Show(message, SeverityWarning, 0)
}

// Info shows an info toast with the default duration.
func (c *Center) Info(message string) uuid.UUID {
	return c.Show(message, SeverityInfo, 0)
}

// Dismiss starts fading the toast early. It is a no-op for unknown or
// already fading toasts.
func (c *Center) Dismiss(id uuid.UUID) {
	c.beginFade(id)
}

// Active returns a newest-first snapshot of the stack.
func (c *Center) Active() []Toast {
	out := make([]Toast, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.toast
	}
	return out
}

// Len returns the number of toasts in the stack.
func (c *Center) Len() int {
	return len(c.entries)
}

// evictOldest removes the bottom toast without a fade.
func (c *Center) evictOldest() {
	last := len(c.entries) - 1
	e := c.entries[last]
	if e.timer != nil {
		e.timer.Stop()
	}
	c.entries[last] = nil
	c.entries = c.entries[:last]

	c.evicted.Add(context.Background(), 1)
	c.logger.Debug("toast evicted", "toast_id", e.toast.ID)
}

// beginFade moves a live toast to PhaseFadingOut and schedules its removal.
func (c *Center) beginFade(id uuid.UUID) {
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	e := c.entries[i]
	if e.toast.Phase == PhaseFadingOut {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}

	if c.fadeDuration == 0 {
		c.remove(id)
		return
	}

	e.toast.Phase = PhaseFadingOut
	e.timer = c.scheduler.AfterFunc(c.fadeDuration, func() {
		c.dispatcher.Post(func() { c.remove(id) })
	})
	c.render()
}

// remove drops a toast if it is still in the stack.
func (c *Center) remove(id uuid.UUID) {
	i := c.indexOf(id)
	if i < 0 {
		return
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.logger.Debug("toast removed", "toast_id", id, "active", len(c.entries))
	c.render()
}

func (c *Center) indexOf(id uuid.UUID) int {
	for i, e := range c.entries {
		if e.toast.ID == id {
			return i
		}
	}
	return -1
}

// render hands the stack to the renderer, containing its failures.
func (c *Center) render() {
	if c.renderer == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			c.logger.Debug("toast renderer panicked", "panic", fmt.Sprint(p))
		}
	}()
	if err := c.renderer.Render(c.Active()); err != nil {
		c.logger.Debug("toast renderer failed", "error", err)
	}
}
