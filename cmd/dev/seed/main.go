package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"kitbuild/internal/actor"
	"kitbuild/internal/apperr"
	"kitbuild/internal/catalog"
	"kitbuild/internal/estimate"
	"kitbuild/internal/order"
	"kitbuild/internal/progress"
	"kitbuild/internal/tracking"
	"kitbuild/pkg/config"
	"kitbuild/pkg/db"
)

// Seeds a starter catalog and, optionally, one sample order with a tracking
// link so the API can be exercised end to end locally.
func main() {
	var (
		withOrder = flag.Bool("order", true, "also create a sample estimated order")
		clientID  = flag.String("client", "client-1", "client id owning the sample order")
	)
	flag.Parse()

	cfg := config.Load()
	ctx := context.Background()

	pool, err := db.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "db open: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if cfg.MigrationsPath != "" {
		if err := db.Migrate(cfg.MigrationsPath, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
			os.Exit(1)
		}
	}

	cat := catalog.NewRepository(pool)
	if err := seedCatalog(ctx, cat); err != nil {
		fmt.Fprintf(os.Stderr, "seed catalog: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("catalog seeded")

	if !*withOrder {
		return
	}

	orders := order.NewRepository(pool)
	engine := order.NewEngine(orders, cat)
	staff := actor.Actor{ID: "seed", Role: actor.RoleStaff}

	o, _, err := engine.Create(ctx, staff, order.CreateInput{
		ClientID: clientID,
		Notes:    "seeded sample order",
		Items: []order.ItemInput{{
			KitName:     "RX-78-2 Gundam Ver. 3.0",
			ItemRequest: estimate.ItemRequest{ServiceType: "full_build", ComplexityLevel: "high"},
		}},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create order: %v\n", err)
		os.Exit(1)
	}

	links := tracking.NewService(tracking.NewRepository(pool), orders, progress.NewRepository(pool), cfg.TrackingLinkTTL)
	token, exp, err := links.Issue(ctx, o.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue tracking link: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("order_id=%s\n", o.ID)
	fmt.Printf("status=%s estimate=%d cents / %d days\n", o.Status, o.EstimatedPriceCents, o.EstimatedDays)
	fmt.Printf("tracking_token=%s (expires %s)\n", token, exp.Format(time.RFC3339))
	fmt.Printf("\nGET http://localhost%s/v1/track/%s\n", cfg.HTTPAddr, token)
}

func seedCatalog(ctx context.Context, cat *catalog.Repository) error {
	services := []catalog.ServiceType{
		{Slug: "full_build", Name: "Full build", BasePriceCents: 500000, BaseDays: 5, SortOrder: 1},
		{Slug: "paint_only", Name: "Paint only", BasePriceCents: 200000, BaseDays: 3, SortOrder: 2},
		{Slug: "repair", Name: "Repair", BasePriceCents: 80000, BaseDays: 2, SortOrder: 3},
	}
	levels := []catalog.ComplexityLevel{
		{Slug: "standard", Name: "Standard", Multiplier: decimal.NewFromInt(1), SortOrder: 1},
		{Slug: "high", Name: "High", Multiplier: decimal.RequireFromString("1.5"), SortOrder: 2},
		{Slug: "extreme", Name: "Extreme", Multiplier: decimal.RequireFromString("2.25"), SortOrder: 3},
	}

	var fullBuildID string
	for _, st := range services {
		st.Active = true
		saved, err := cat.SaveServiceType(ctx, st)
		if isDuplicate(err) {
			continue
		}
		if err != nil {
			return err
		}
		if saved.Slug == "full_build" {
			fullBuildID = saved.ID
		}
	}
	for _, cl := range levels {
		cl.Active = true
		if _, err := cat.SaveComplexityLevel(ctx, cl); err != nil && !isDuplicate(err) {
			return err
		}
	}

	// Add-ons have no natural key; only add them alongside a fresh service type.
	if fullBuildID == "" {
		return nil
	}
	addOns := []catalog.AddOn{
		{Name: "Parts prep", ServiceTypeID: fullBuildID, PriceCents: 0, Required: true, SortOrder: 1},
		{Name: "LED unit", ServiceTypeID: fullBuildID, PriceCents: 45000, SortOrder: 2},
		{Name: "Display base", ServiceTypeID: fullBuildID, PriceCents: 15000, SortOrder: 3},
	}
	for _, a := range addOns {
		a.Active = true
		if _, err := cat.SaveAddOn(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, apperr.ErrValidation)
}
