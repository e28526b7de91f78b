package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/masterdata"
)

type masterData struct {
	mu         sync.RWMutex
	periods    map[string]masterdata.Period
	currencies map[string]masterdata.Currency
	rates      map[string][]masterdata.Rate
	accounts   map[id.ID]masterdata.Account
	prices     map[id.ID]decimal.Decimal
}

func newMasterData() *masterData {
	return &masterData{
		periods:    make(map[string]masterdata.Period),
		currencies: make(map[string]masterdata.Currency),
		rates:      make(map[string][]masterdata.Rate),
		accounts:   make(map[id.ID]masterdata.Account),
		prices:     make(map[id.ID]decimal.Decimal),
	}
}

// MasterData resolves reference data; it is not transactional.
type MasterData struct{ m *masterData }

var (
	_ masterdata.PeriodResolver   = MasterData{}
	_ masterdata.CurrencyResolver = MasterData{}
	_ masterdata.RateResolver     = MasterData{}
	_ masterdata.AccountResolver  = MasterData{}
	_ masterdata.ProductResolver  = MasterData{}
)

// MasterData returns the resolver view.
func (s *Store) MasterData() MasterData { return MasterData{s.master} }

// Resolvers returns every resolver backed by the store.
func (s *Store) Resolvers() masterdata.Resolvers {
	md := s.MasterData()
	return masterdata.Resolvers{Periods: md, Currencies: md, Rates: md, Accounts: md, Products: md}
}

// SetPeriod sets the open period of a tenant.
func (s *Store) SetPeriod(tenantID string, p masterdata.Period) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.master.periods[tenantID] = p
}

// SetDefaultCurrency sets the default currency of a tenant.
func (s *Store) SetDefaultCurrency(tenantID, code string) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.master.currencies[tenantID] = masterdata.Currency{Code: code, Name: code, IsDefault: true}
}

// RemovePeriod closes the tenant's period.
func (s *Store) RemovePeriod(tenantID string) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	delete(s.master.periods, tenantID)
}

// RemoveDefaultCurrency clears the tenant's default currency.
func (s *Store) RemoveDefaultCurrency(tenantID string) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	delete(s.master.currencies, tenantID)
}

// AddRate stores a rate for a tenant.
func (s *Store) AddRate(tenantID string, r masterdata.Rate) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.master.rates[tenantID] = append(s.master.rates[tenantID], r)
}

// AddAccount stores an account.
func (s *Store) AddAccount(a masterdata.Account) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.master.accounts[a.ID] = a
}

// SetSellingPrice sets a product price.
func (s *Store) SetSellingPrice(productID id.ID, price decimal.Decimal) {
	s.master.mu.Lock()
	defer s.master.mu.Unlock()
	s.master.prices[productID] = price
}

func (md MasterData) ActivePeriod(_ context.Context, tc tenant.Context) (*masterdata.Period, error) {
	md.m.mu.RLock()
	defer md.m.mu.RUnlock()
	p, ok := md.m.periods[tc.TenantID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (md MasterData) DefaultCurrency(_ context.Context, tc tenant.Context) (*masterdata.Currency, error) {
	md.m.mu.RLock()
	defer md.m.mu.RUnlock()
	c, ok := md.m.currencies[tc.TenantID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (md MasterData) LatestRate(_ context.Context, tc tenant.Context, from, to string, at time.Time) (*masterdata.Rate, error) {
	md.m.mu.RLock()
	defer md.m.mu.RUnlock()
	var best *masterdata.Rate
	for _, r := range md.m.rates[tc.TenantID] {
		if r.From != from || r.To != to || r.EffectiveAt.After(at) {
			continue
		}
		if best == nil || r.EffectiveAt.After(best.EffectiveAt) {
			r := r
			best = &r
		}
	}
	return best, nil
}

func (md MasterData) Account(_ context.Context, _ tenant.Context, accountID id.ID) (*masterdata.Account, error) {
	md.m.mu.RLock()
	defer md.m.mu.RUnlock()
	a, ok := md.m.accounts[accountID]
	if !ok {
		return nil, apperror.NewNotFound("account", accountID.String())
	}
	return &a, nil
}

func (md MasterData) SellingPrice(_ context.Context, _ tenant.Context, productID id.ID) (decimal.Decimal, error) {
	md.m.mu.RLock()
	defer md.m.mu.RUnlock()
	return md.m.prices[productID], nil
}
