package watcher

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go_trial/ordertaking/logger"
	"go_trial/ordertaking/models"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultHighlight = 3 * time.Second
)

// Fetcher lists all orders. Both the store and the HTTP client satisfy it.
type Fetcher interface {
	ListOrders(ctx context.Context) ([]models.Order, error)
}

type Notifier interface {
	NotifyNewOrder(ctx context.Context, order models.Order) error
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithHighlight(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.highlight = d
		}
	}
}

func WithNotifiers(n ...Notifier) Option {
	return func(p *Poller) { p.notifiers = append(p.notifiers, n...) }
}

// WithBoard prints the current order board to w after every successful fetch.
func WithBoard(w io.Writer) Option {
	return func(p *Poller) { p.board = w }
}

func WithLogger(log *logger.Logger) Option {
	return func(p *Poller) { p.log = log }
}

// Poller remembers which order ids it has seen and fires the notifiers for every new one.
// The first successful fetch only records the baseline.
type Poller struct {
	fetch     Fetcher
	notifiers []Notifier
	interval  time.Duration
	highlight time.Duration
	board     io.Writer
	log       *logger.Logger
	now       func() time.Time

	seen      map[string]struct{}
	baselined bool

	mu          sync.Mutex
	highlighted map[string]time.Time
	lastFetch   time.Time
	latest      []models.Order
}

func NewPoller(fetch Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetch:       fetch,
		interval:    DefaultInterval,
		highlight:   DefaultHighlight,
		log:         logger.Discard(),
		now:         time.Now,
		highlighted: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls until ctx is cancelled. Ticks are handled on this goroutine, so a slow fetch
// pushes the next one back instead of overlapping it.
func (p *Poller) Run(ctx context.Context) {
	p.log.LogProcess("WATCHER", fmt.Sprintf("Polling orders every %s", p.interval))
	p.Poll(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info("WATCHER", "Stopped")
			return
		case <-ticker.C:
			p.Poll(ctx)
		}
	}
}

// Poll runs one fetch-and-compare cycle and returns the orders that were new. Fetch errors are
// logged and leave the seen set untouched.
func (p *Poller) Poll(ctx context.Context) []models.Order {
	orders, err := p.fetch.ListOrders(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("WATCHER", "Failed to fetch orders: "+err.Error())
		}
		return nil
	}

	now := p.now()
	p.mu.Lock()
	p.lastFetch = now
	p.latest = orders
	p.mu.Unlock()

	if !p.baselined {
		p.seen = IDSet(orders)
		p.baselined = true
		p.log.Info("WATCHER", fmt.Sprintf("Baseline of %d orders", len(orders)))
		p.printBoard()
		return nil
	}

	fresh := DiffNewOrders(p.seen, orders)
	p.seen = IDSet(orders)
	if len(fresh) == 0 {
		p.printBoard()
		return nil
	}

	p.mu.Lock()
	for _, o := range fresh {
		p.highlighted[o.ID] = now.Add(p.highlight)
	}
	p.mu.Unlock()
	p.printBoard()

	for _, o := range fresh {
		for _, n := range p.notifiers {
			if err := n.NotifyNewOrder(ctx, o); err != nil {
				p.log.Warn("WATCHER", fmt.Sprintf("Notifier failed for order %s: %v", o.ID, err))
			}
		}
	}
	return fresh
}

// Highlighted reports whether the order arrived within the highlight window.
func (p *Poller) Highlighted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	until, ok := p.highlighted[id]
	if !ok {
		return false
	}
	if !p.now().Before(until) {
		delete(p.highlighted, id)
		return false
	}
	return true
}

func (p *Poller) LastFetch() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastFetch
}

// Orders returns the result of the last successful fetch.
func (p *Poller) Orders() []models.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Order(nil), p.latest...)
}
