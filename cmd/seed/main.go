// Package main provides a CLI tool for seeding a tenant with master data
// and printing a development access token.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"stockpost/internal/config"
	"stockpost/internal/core/id"
	"stockpost/internal/core/security"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/masterdata"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpost/pkg/logger"
)

// seedNamespace makes seeded IDs stable across runs.
var seedNamespace = uuid.MustParse("6f1d3c52-9a0e-4c1b-8d7e-2b5a4f0c9e31")

func main() {
	tenantID := flag.String("tenant", "demo", "tenant to seed")
	actorID := flag.String("actor", "seed-admin", "subject of the printed token")
	base := flag.String("currency", "USD", "default currency")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	pool, err := postgres.NewPool(ctx, cfg.Pool("stockpost-seed"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	tc := tenant.New(*tenantID, *actorID)
	tc.IsAdmin = true

	repo := catalog_repo.NewMasterDataRepo(postgres.NewTxManager(pool))
	ids, err := seedMasterData(ctx, repo, tc, strings.ToUpper(*base))
	if err != nil {
		log.Fatalw("failed to seed master data", "error", err)
	}

	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    24 * time.Hour,
	})
	if err != nil {
		log.Fatalw("failed to create token service", "error", err)
	}
	token, expiresAt, err := tokens.Issue(tc)
	if err != nil {
		log.Fatalw("failed to issue token", "error", err)
	}

	log.Infow("seeding completed successfully", "tenant_id", tc.TenantID)
	for name, v := range ids {
		fmt.Printf("%-20s %s\n", name, v)
	}
	fmt.Printf("\nAuthorization: Bearer %s\n(expires %s)\n", token, expiresAt.Format(time.RFC3339))
}

func seedID(tenantID, name string) id.ID {
	return uuid.NewSHA1(seedNamespace, []byte(tenantID+"/"+name))
}

func seedMasterData(ctx context.Context, repo *catalog_repo.MasterDataRepo, tc tenant.Context, base string) (map[string]id.ID, error) {
	code, err := masterdata.NormalizeCurrency(base)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	year := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	period := masterdata.Period{
		ID:        seedID(tc.TenantID, "period"),
		Code:      fmt.Sprintf("FY%d", now.Year()),
		StartDate: year,
		EndDate:   year.AddDate(1, 0, -1),
		Status:    masterdata.PeriodOpen,
	}
	if err := repo.SavePeriod(ctx, tc, period); err != nil {
		return nil, err
	}

	if err := repo.SaveCurrency(ctx, tc, masterdata.Currency{Code: code, Name: code, IsDefault: true}); err != nil {
		return nil, err
	}
	if code != "EUR" {
		if err := repo.SaveCurrency(ctx, tc, masterdata.Currency{Code: "EUR", Name: "Euro"}); err != nil {
			return nil, err
		}
		rate := masterdata.Rate{From: "EUR", To: code, Rate: decimal.RequireFromString("1.08"), EffectiveAt: year}
		if err := repo.SaveRate(ctx, tc, rate); err != nil {
			return nil, err
		}
	}

	accounts := []masterdata.Account{
		{ID: seedID(tc.TenantID, "account/inventory"), Code: "1400", Name: "Inventory", Nature: masterdata.NatureAsset},
		{ID: seedID(tc.TenantID, "account/shrinkage"), Code: "5900", Name: "Inventory Shrinkage", Nature: masterdata.NatureExpense},
		{ID: seedID(tc.TenantID, "account/gain"), Code: "4900", Name: "Inventory Gain", Nature: masterdata.NatureIncome},
	}
	for _, a := range accounts {
		if err := repo.SaveAccount(ctx, tc, a); err != nil {
			return nil, err
		}
	}

	products := []struct {
		key   string
		name  string
		price string
	}{
		{"product/widget", "Widget", "19.90"},
		{"product/gadget", "Gadget", "45.00"},
	}
	ids := map[string]id.ID{
		"period":            period.ID,
		"account.inventory": accounts[0].ID,
		"account.shrinkage": accounts[1].ID,
		"account.gain":      accounts[2].ID,
		"store.main":        seedID(tc.TenantID, "store/main"),
	}
	for _, p := range products {
		productID := seedID(tc.TenantID, p.key)
		if err := repo.SaveProduct(ctx, tc, productID, p.name, decimal.RequireFromString(p.price)); err != nil {
			return nil, err
		}
		ids[strings.Replace(p.key, "/", ".", 1)] = productID
	}
	return ids, nil
}
