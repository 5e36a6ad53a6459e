package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fjod/pawmart/internal/cache"
	"github.com/fjod/pawmart/internal/domain"
	"github.com/fjod/pawmart/internal/repository"
	"github.com/fjod/pawmart/internal/service"
)

// StatusSetter is the part of the order service the orders command needs.
type StatusSetter interface {
	SetStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Order, error)
}

func NewOrdersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Operator tooling for orders",
	}
	cmd.AddCommand(newSetStatusCommand(rootOpts))
	return cmd
}

func newSetStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <order-id> <status>",
		Short: "Overwrite an order's status",
		Long: `Overwrite an order's status. Any of PENDING, ON_WAY, DELIVERED or CANCELED
may be set from any other; there is no transition graph.

Examples:
  pawmart orders set-status 5b0c2f4e-7f6a-4d3e-9c1b-2a3b4c5d6e7f ON_WAY`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid order id %q: %w", args[0], err)
			}
			if _, err := domain.ParseOrderStatus(args[1]); err != nil {
				return fmt.Errorf("invalid status %q", args[1])
			}

			cfg, log, err := rootOpts.setup()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := repository.NewRepository(ctx, &cfg.DB)
			if err != nil {
				return err
			}
			defer repo.Close()

			var views service.ViewCache
			if redisClient, err := newRedisClient(ctx, cfg); err != nil {
				log.Warn("redis unavailable, cached order views will expire on their own")
			} else {
				defer redisClient.Close()
				views = cache.NewTagCache(redisClient, cfg.CatalogTTL)
			}

			return setStatus(ctx, service.NewOrderService(repo, views, log), cmd, orderID, args[1])
		},
	}
}

func setStatus(ctx context.Context, orders StatusSetter, cmd *cobra.Command, orderID uuid.UUID, status string) error {
	order, err := orders.SetStatus(ctx, orderID, status)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(order)
}
