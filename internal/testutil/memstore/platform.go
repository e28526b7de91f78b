package memstore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stockpost/internal/core/numerator"
	"stockpost/internal/core/outbox"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/audit"
)

// Numerator implements numerator.Generator in strict mode.
type Numerator struct{ s *Store }

var _ numerator.Generator = Numerator{}

// Numerator returns the numbering view.
func (s *Store) Numerator() Numerator { return Numerator{s} }

func (n Numerator) key(tc tenant.Context, cfg numerator.Config, period time.Time) string {
	return fmt.Sprintf("%s:%s:%d", tc.TenantID, cfg.Prefix, period.Year())
}

func (n Numerator) GetNextNumber(ctx context.Context, tc tenant.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	defer n.s.guard(ctx)()
	k := n.key(tc, cfg, period)
	n.s.st.numbers[k]++
	return fmt.Sprintf("%s-%d-%0*d", cfg.Prefix, period.Year(), cfg.PadWidth, n.s.st.numbers[k]), nil
}

func (n Numerator) SetNextNumber(ctx context.Context, tc tenant.Context, cfg numerator.Config, period time.Time, value int64) error {
	defer n.s.guard(ctx)()
	n.s.st.numbers[n.key(tc, cfg, period)] = value - 1
	return nil
}

// OutboxRepo implements outbox.Publisher.
type OutboxRepo struct{ s *Store }

var _ outbox.Publisher = OutboxRepo{}

// Outbox returns the outbox view.
func (s *Store) Outbox() OutboxRepo { return OutboxRepo{s} }

func (o OutboxRepo) Publish(ctx context.Context, tc tenant.Context, event outbox.Event) error {
	if !o.s.inTx(ctx) {
		return fmt.Errorf("outbox publish requires transaction context")
	}
	o.s.st.outbox = append(o.s.st.outbox, OutboxRecord{TenantID: tc.TenantID, Event: event})
	return nil
}

// Events returns every published event.
func (s *Store) Events() []OutboxRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.outbox)
}

// AuditRepo implements audit.Recorder.
type AuditRepo struct{ s *Store }

var _ audit.Recorder = AuditRepo{}

// Audit returns the audit view.
func (s *Store) Audit() AuditRepo { return AuditRepo{s} }

func (a AuditRepo) Log(ctx context.Context, tc tenant.Context, entry audit.Entry) error {
	defer a.s.guard(ctx)()
	a.s.st.audit = append(a.s.st.audit, AuditRecord{TenantID: tc.TenantID, ActorID: tc.ActorID, Entry: entry})
	return nil
}

// AuditTrail returns every audit record.
func (s *Store) AuditTrail() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.audit)
}
