// Package refundstest provides in-memory stand-ins for the processor, the
// notifier and the refund guard store in engine tests.
package refundstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/eventdesk-backend/internal/notifications"
	"github.com/angelmondragon/eventdesk-backend/pkg/stripe"
)

// Processor records refund requests. FailFor makes requests against the given
// payment references fail. During runs once, inside the next call, before that
// call is recorded; tests use it to start a competing request mid-refund.
type Processor struct {
	mu      sync.Mutex
	Calls   []stripe.RefundRequest
	Err     error
	FailFor map[string]error
	During  func(ctx context.Context, req stripe.RefundRequest)
	seq     int
}

func (p *Processor) CreateRefund(ctx context.Context, req stripe.RefundRequest) (stripe.Refund, error) {
	p.mu.Lock()
	during := p.During
	p.During = nil
	p.mu.Unlock()
	if during != nil {
		during(ctx, req)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, req)
	if err, ok := p.FailFor[req.PaymentReference]; ok {
		return stripe.Refund{}, err
	}
	if p.Err != nil {
		return stripe.Refund{}, p.Err
	}
	p.seq++
	return stripe.Refund{
		ID:          fmt.Sprintf("re_test_%d", p.seq),
		Status:      "succeeded",
		AmountMinor: req.AmountMinor,
	}, nil
}

func (p *Processor) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// RefundedMinor sums the amounts of every recorded request that succeeded.
func (p *Processor) RefundedMinor() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var total int64
	for _, c := range p.Calls {
		if _, failed := p.FailFor[c.PaymentReference]; failed || p.Err != nil {
			continue
		}
		total += c.AmountMinor
	}
	return total
}

// Notifier records emails instead of queueing them.
type Notifier struct {
	mu            sync.Mutex
	Cancellations []notifications.CancellationEmail
	TicketEmails  []notifications.TicketEmail
	Err           error
}

func (n *Notifier) SendCancellation(ctx context.Context, email notifications.CancellationEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.Cancellations = append(n.Cancellations, email)
	return nil
}

func (n *Notifier) SendTickets(ctx context.Context, email notifications.TicketEmail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.Err != nil {
		return n.Err
	}
	n.TicketEmails = append(n.TicketEmails, email)
	return nil
}

// GuardStore is a map-backed SETNX store.
type GuardStore struct {
	mu     sync.Mutex
	Values map[string]string
}

func NewGuardStore() *GuardStore {
	return &GuardStore{Values: map[string]string{}}
}

func (g *GuardStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.Values[key]; ok {
		return false, nil
	}
	g.Values[key] = fmt.Sprint(value)
	return true, nil
}

func (g *GuardStore) DelIfValue(ctx context.Context, key, value string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Values[key] != value {
		return false, nil
	}
	delete(g.Values, key)
	return true, nil
}

func (g *GuardStore) GuardKey(scope, id string) string {
	return "guard:" + scope + ":" + id
}

func (g *GuardStore) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Values)
}
