package main

import (
	"context"
	"fmt"

	"go-warehouse-fulfillment/internal/app"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"
	"go-warehouse-fulfillment/pkg/database"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo master data, locations and storage stock",
	RunE:  withContainer(seed),
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func seed(ctx context.Context, c *app.Container) error {
	if err := database.Migrate(c.DB); err != nil {
		return err
	}
	actor := model.SystemPrincipal

	var existing int64
	if err := c.DB.WithContext(ctx).Model(&model.Location{}).Count(&existing).Error; err != nil {
		return err
	}
	if existing > 0 {
		fmt.Println("Locations already present, skipping seed")
		return nil
	}

	items := []model.Item{
		{Code: "ITM-001", Name: "Carton Box Small", Unit: "pcs", StandardPrice: decimal.RequireFromString("1.25")},
		{Code: "ITM-002", Name: "Packing Tape", Unit: "roll", StandardPrice: decimal.RequireFromString("3.40")},
	}
	for i := range items {
		items[i].CreatedBy = actor.String()
		err := c.DB.WithContext(ctx).Where("code = ?", items[i].Code).Attrs(items[i]).FirstOrCreate(&items[i]).Error
		if err != nil {
			return fmt.Errorf("seed item %s: %w", items[i].Code, err)
		}
	}

	customer := model.Customer{Code: "CUST-001", Name: "Demo Retail", IsActive: true}
	customer.CreatedBy = actor.String()
	if err := c.DB.WithContext(ctx).Where("code = ?", customer.Code).Attrs(customer).FirstOrCreate(&customer).Error; err != nil {
		return fmt.Errorf("seed customer: %w", err)
	}

	locations := []service.CreateLocationRequest{
		{Code: "A-01-01", Name: "Aisle A rack 1", Category: model.LocationStorage, MaxCapacity: 500},
		{Code: "A-01-02", Name: "Aisle A rack 2", Category: model.LocationStorage, MaxCapacity: 500},
		{Code: "DOCK-OUT", Name: "Outbound dock", Category: model.LocationOther, MaxCapacity: 1000},
	}
	created := make([]*model.Location, 0, len(locations))
	for i := range locations {
		loc, err := c.Capacity.CreateLocation(ctx, actor, &locations[i])
		if err != nil {
			return fmt.Errorf("seed location %s: %w", locations[i].Code, err)
		}
		created = append(created, loc)
	}

	for _, item := range items {
		for _, loc := range created[:2] {
			if _, err := c.Ledger.Adjust(ctx, actor, item.ID, loc.ID, 100); err != nil {
				return fmt.Errorf("seed stock %s@%s: %w", item.Code, loc.Code, err)
			}
		}
	}

	fmt.Printf("Seeded %d items, 1 customer, %d locations\n", len(items), len(created))
	return nil
}
