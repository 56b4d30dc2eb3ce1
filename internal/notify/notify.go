// Package notify collects the transient messages shown to the shopper after
// an action, e.g. "Produto adicionado ao carrinho".
package notify

import (
	"context"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is one dismissible message.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Collector gathers the notifications raised while serving one request.
type Collector struct {
	mu    sync.Mutex
	items []Notification
}

func (c *Collector) add(level Level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, Notification{Level: level, Message: msg})
}

// Drain returns the collected notifications and resets the collector.
func (c *Collector) Drain() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items
	c.items = nil
	return out
}

type ctxKey struct{}

// NewContext returns ctx carrying a fresh Collector.
func NewContext(ctx context.Context) (context.Context, *Collector) {
	c := &Collector{}
	return context.WithValue(ctx, ctxKey{}, c), c
}

// FromContext returns the request's Collector, or nil.
func FromContext(ctx context.Context) *Collector {
	c, _ := ctx.Value(ctxKey{}).(*Collector)
	return c
}

// Add records a notification on the request's Collector. It is a no-op
// when ctx carries none.
func Add(ctx context.Context, level Level, msg string) {
	if c := FromContext(ctx); c != nil {
		c.add(level, msg)
	}
}

func Succeed(ctx context.Context, msg string) { Add(ctx, Success, msg) }

func Fail(ctx context.Context, msg string) { Add(ctx, Error, msg) }

// Drain drains the request's Collector.
func Drain(ctx context.Context) []Notification {
	if c := FromContext(ctx); c != nil {
		return c.Drain()
	}
	return nil
}
