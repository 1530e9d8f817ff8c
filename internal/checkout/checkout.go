// Package checkout implements the cart-to-checkout handoff and the mocked
// purchase: processing for a fixed delay, success, then after a second
// fixed delay a single navigation to the caller's completion view.
package checkout

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/terra-clan/humanarch/internal/models"
)

const (
	DefaultProcessingDelay = 2500 * time.Millisecond
	DefaultCompletionDelay = 3000 * time.Millisecond
)

const referenceAlphabet = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Common errors
var (
	ErrEmptyCart       = errors.New("cart is empty")
	ErrPurchasePending = errors.New("purchase already in progress")
	ErrAlreadyComplete = errors.New("purchase already complete")
)

// Total sums the price of every entry. Duplicates count once per entry.
// Prices are added in whole cents.
func Total(items []models.Product) float64 {
	var cents int64
	for _, p := range items {
		cents += int64(math.Round(p.Price * 100))
	}
	return float64(cents) / 100
}

// NewReference generates a receipt reference like "HA-7Q2M9KX4"
func NewReference() (string, error) {
	id, err := gonanoid.Generate(referenceAlphabet, 8)
	if err != nil {
		return "", fmt.Errorf("failed to generate reference: %w", err)
	}
	return "HA-" + id, nil
}

// Option configures a Checkout
type Option func(*Checkout)

// WithClock injects the clock used for both delays
func WithClock(clock clockwork.Clock) Option {
	return func(c *Checkout) {
		c.clock = clock
	}
}

// WithDelays overrides the processing and completion delays
func WithDelays(processing, completion time.Duration) Option {
	return func(c *Checkout) {
		c.processingDelay = processing
		c.completionDelay = completion
	}
}

// WithOnChange registers fn to run after every status change, without the
// checkout lock held
func WithOnChange(fn func(models.Receipt)) Option {
	return func(c *Checkout) {
		c.onChange = fn
	}
}

// Checkout renders an ordered, read-only selection and runs the purchase
type Checkout struct {
	mu              sync.Mutex
	clock           clockwork.Clock
	processingDelay time.Duration
	completionDelay time.Duration
	onComplete      func(models.View)
	onChange        func(models.Receipt)

	receipt models.Receipt
	timer   clockwork.Timer
	gen     uint64
}

// New creates a checkout over items. onComplete is invoked exactly once,
// with completeView, after a purchase has succeeded and the completion
// delay has passed.
func New(items []models.Product, completeView models.View, onComplete func(models.View), opts ...Option) *Checkout {
	if !completeView.IsValid() {
		completeView = models.DefaultView
	}

	c := &Checkout{
		clock:           clockwork.NewRealClock(),
		processingDelay: DefaultProcessingDelay,
		completionDelay: DefaultCompletionDelay,
		onComplete:      onComplete,
		receipt: models.Receipt{
			Items:        append([]models.Product{}, items...),
			Total:        Total(items),
			Status:       models.PurchaseIdle,
			CompleteView: completeView,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.receipt.CreatedAt = c.clock.Now()
	return c
}

// Items returns the line items in selection order
func (c *Checkout) Items() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Product{}, c.receipt.Items...)
}

// Total returns the sum of the line item prices
func (c *Checkout) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt.Total
}

// Status returns the purchase status
func (c *Checkout) Status() models.PurchaseStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.receipt.Status
}

// Receipt returns a copy of the receipt
func (c *Checkout) Receipt() models.Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyReceipt()
}

// Purchase starts the mocked payment. No external system is called.
func (c *Checkout) Purchase() error {
	c.mu.Lock()
	switch c.receipt.Status {
	case models.PurchaseProcessing, models.PurchaseSuccess:
		c.mu.Unlock()
		return ErrPurchasePending
	case models.PurchaseComplete:
		c.mu.Unlock()
		return ErrAlreadyComplete
	}
	if len(c.receipt.Items) == 0 {
		c.mu.Unlock()
		return ErrEmptyCart
	}

	ref, err := NewReference()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.receipt.Reference = ref
	c.receipt.Status = models.PurchaseProcessing
	c.schedule(c.processingDelay, c.succeed)
	r := c.copyReceipt()
	c.mu.Unlock()

	slog.Info("purchase started", "reference", ref, "items", len(r.Items), "total", r.Total)
	c.notify(r)
	return nil
}

// Resume continues a checkout restored from storage. Pending timers restart
// with their full delay; a completed receipt never fires onComplete again.
func (c *Checkout) Resume(r models.Receipt) {
	c.mu.Lock()
	c.stopTimer()
	c.receipt = r
	c.receipt.Items = append([]models.Product{}, r.Items...)
	switch r.Status {
	case models.PurchaseProcessing:
		c.schedule(c.processingDelay, c.succeed)
	case models.PurchaseSuccess:
		c.schedule(c.completionDelay, c.complete)
	}
	c.mu.Unlock()
}

// Close stops any pending timer. onComplete will not be called afterwards.
func (c *Checkout) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimer()
}

func (c *Checkout) succeed(gen uint64) {
	now := c.clock.Now()
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.receipt.Status = models.PurchaseSuccess
	c.receipt.SucceededAt = &now
	c.schedule(c.completionDelay, c.complete)
	r := c.copyReceipt()
	c.mu.Unlock()

	slog.Info("purchase succeeded", "reference", r.Reference)
	c.notify(r)
}

func (c *Checkout) complete(gen uint64) {
	now := c.clock.Now()
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.receipt.Status = models.PurchaseComplete
	c.receipt.CompletedAt = &now
	c.timer = nil
	r := c.copyReceipt()
	c.mu.Unlock()

	slog.Info("purchase complete", "reference", r.Reference, "navigate", r.CompleteView)
	c.notify(r)
	if c.onComplete != nil {
		c.onComplete(r.CompleteView)
	}
}

// schedule must be called with the lock held. A stale timer that fires
// after Close or Resume is ignored.
func (c *Checkout) schedule(d time.Duration, fn func(gen uint64)) {
	c.gen++
	gen := c.gen
	c.timer = c.clock.AfterFunc(d, func() { fn(gen) })
}

func (c *Checkout) stopTimer() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Checkout) copyReceipt() models.Receipt {
	r := c.receipt
	r.Items = append([]models.Product{}, c.receipt.Items...)
	return r
}

func (c *Checkout) notify(r models.Receipt) {
	if c.onChange != nil {
		c.onChange(r)
	}
}
