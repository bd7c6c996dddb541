package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go-warehouse-fulfillment/internal/app"
	"go-warehouse-fulfillment/internal/config"
	"go-warehouse-fulfillment/internal/jobs"
	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/pkg/database"
	"go-warehouse-fulfillment/pkg/jwt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: withContainer(func(ctx context.Context, c *app.Container) error {
		if err := database.Migrate(c.DB); err != nil {
			return err
		}
		fmt.Println("Schema is up to date")
		return nil
	}),
}

var recomputeLocation string

var recomputeCmd = &cobra.Command{
	Use:   "capacity:recompute",
	Short: "Re-derive location capacity from the inventory ledger",
	RunE: withContainer(func(ctx context.Context, c *app.Container) error {
		if recomputeLocation != "" {
			id, err := uuid.Parse(recomputeLocation)
			if err != nil {
				return fmt.Errorf("invalid location id: %w", err)
			}
			capacity, err := c.Capacity.Recompute(ctx, model.SystemPrincipal, id)
			if err != nil {
				return err
			}
			fmt.Printf("Location %s: current capacity %d\n", id, capacity)
			return nil
		}
		repaired, err := c.Capacity.RecomputeAll(ctx, model.SystemPrincipal)
		if err != nil {
			return err
		}
		fmt.Printf("Repaired %d location(s)\n", repaired)
		return nil
	}),
}

var runOnce bool

var cronStartCmd = &cobra.Command{
	Use:   "cron:start",
	Short: "Start the capacity repair scheduler, or run the job once",
	RunE: withContainer(func(ctx context.Context, c *app.Container) error {
		job := jobs.NewCapacityRepair(c.Capacity, c.Logger)
		if runOnce {
			job.Run()
			return nil
		}
		scheduler, err := jobs.StartScheduler(c.Config.CapacityRepairSchedule, job, c.Logger)
		if err != nil {
			return err
		}
		fmt.Println("Cron scheduler started. Press Ctrl+C to exit.")
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		<-scheduler.Stop().Done()
		return nil
	}),
}

var (
	tokenUser       string
	tokenName       string
	tokenPrivileges string
	tokenTTL        time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an operator",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		privileges := middleware.AllPrivileges()
		if tokenPrivileges != "" {
			privileges = strings.Split(tokenPrivileges, ",")
		}
		token, err := jwt.NewManager(cfg.JWTSecret, tokenTTL).GenerateToken(tokenUser, "", tokenName, privileges)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

func init() {
	recomputeCmd.Flags().StringVarP(&recomputeLocation, "location", "l", "", "Recompute a single location by id")
	cronStartCmd.Flags().BoolVar(&runOnce, "once", false, "Run the repair job once and exit")
	tokenCmd.Flags().StringVar(&tokenUser, "user", "operator", "User id stored in the token")
	tokenCmd.Flags().StringVar(&tokenName, "name", "Operator", "Display name stored in the token")
	tokenCmd.Flags().StringVar(&tokenPrivileges, "privileges", "", "Comma separated privileges (default: all)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")

	rootCmd.AddCommand(migrateCmd, recomputeCmd, cronStartCmd, tokenCmd)
}
