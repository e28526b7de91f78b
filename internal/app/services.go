// Package app assembles the services shared by the server and worker binaries.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"stockpost/internal/config"
	"stockpost/internal/core/security"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/pricehistory"
	"stockpost/internal/infrastructure/cache"
	"stockpost/internal/infrastructure/metrics"
	"stockpost/internal/infrastructure/numerator"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpost/internal/infrastructure/storage/postgres/document_repo"
	"stockpost/internal/infrastructure/storage/postgres/register_repo"
)

// Infra holds process-level connections. Redis is nil when disabled.
type Infra struct {
	Pool    *postgres.Pool
	Redis   redis.UniversalClient
	Metrics *metrics.Metrics
}

// Services is the assembled domain layer.
type Services struct {
	TxManager   *postgres.TxManager
	MasterData  *catalog_repo.MasterDataRepo
	Cache       *cache.ResolverCache
	Positions   *inventory.Ledger
	Recorder    *pricehistory.Recorder
	Costing     *costing.Service
	Adjustments *adjustment.Service
	Idempotency *postgres.IdempotencyStore
	Outbox      *postgres.OutboxPublisher
}

// NewServices wires repositories, resolvers and the adjustment workflow.
func NewServices(cfg *config.Config, infra Infra) (*Services, error) {
	txm := postgres.NewTxManager(infra.Pool)

	// Approval transactions bound their lock waits so a hot position fails fast and retries.
	approvalOpts := txm.Options()
	approvalOpts.LockTimeout = cfg.ApprovalLockTimeout
	approvalOpts.StatementTimeout = cfg.ApprovalStatementTimeout
	approvalTxm := txm.WithOptions(approvalOpts)

	md := catalog_repo.NewMasterDataRepo(txm)
	resolvers := md.Resolvers()

	var resolverCache *cache.ResolverCache
	if infra.Redis != nil {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.TTL = cfg.RateCacheTTL
		resolverCache = cache.NewResolverCache(infra.Redis, resolvers.Currencies, resolvers.Rates, cacheCfg)
		resolvers = resolverCache.Wrap(resolvers)
	}

	negative, err := cfg.NegativeStock()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.PriceHistoryPolicy()
	if err != nil {
		return nil, err
	}
	epsilon, err := cfg.Epsilon()
	if err != nil {
		return nil, err
	}
	rule, err := security.CompileApprovalRule(cfg.ApprovalRule)
	if err != nil {
		return nil, fmt.Errorf("APPROVAL_RULE: %w", err)
	}
	auditService, err := postgres.NewAuditService(txm)
	if err != nil {
		return nil, err
	}

	history := register_repo.NewPriceHistoryRepo(txm)
	positions := inventory.NewLedger(register_repo.NewPositionRepo(txm), negative)
	recorder := pricehistory.NewRecorder(history, resolvers.Currencies, resolvers.Rates, approvalTxm, pricehistory.RecorderConfig{
		Epsilon:     epsilon,
		Policy:      policy,
		OnSwallowed: infra.Metrics.PriceHistorySwallowed,
	})
	outboxPublisher := postgres.NewOutboxPublisher(txm)

	numbers := numerator.NewWithQuerier(func(ctx context.Context) numerator.Querier {
		return txm.GetQuerier(ctx)
	})

	svc := adjustment.NewService(adjustment.Deps{
		Repo:      document_repo.NewAdjustmentRepo(txm),
		Ledger:    positions,
		Recorder:  recorder,
		Poster:    ledger.NewPoster(register_repo.NewLedgerRepo(txm)),
		Resolvers: resolvers,
		Numerator: numbers,
		TxManager: approvalTxm,
		Outbox:    outboxPublisher,
		Audit:     auditService,
		Rule:      rule,
		Retry:     cfg.Retry(),
		Metrics:   infra.Metrics,
	})

	return &Services{
		TxManager:   txm,
		MasterData:  md,
		Cache:       resolverCache,
		Positions:   positions,
		Recorder:    recorder,
		Costing:     costing.NewService(history),
		Adjustments: svc,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Outbox:      outboxPublisher,
	}, nil
}
