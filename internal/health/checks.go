package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bakehouse/cart-service/internal/config"
	"github.com/hellofresh/health-go/v5"
	"github.com/hellofresh/health-go/v5/checks/postgres"
	healthRedis "github.com/hellofresh/health-go/v5/checks/redis"
)

func NewHealthHandler(cfg *config.Config) (*health.Health, error) {
	h, err := health.New(
		health.WithComponent(health.Component{
			Name:    "cart-service",
			Version: "1.0.0",
		}),
		health.WithSystemInfo(),
		health.WithChecks(
			health.Config{
				Name:      "database",
				Timeout:   3 * time.Second,
				SkipOnErr: false,
				Check: postgres.New(postgres.Config{
					DSN: cfg.Database.GetDSN(),
				}),
			},
			health.Config{
				Name:      "redis",
				Timeout:   2 * time.Second,
				SkipOnErr: false,
				Check: healthRedis.New(
					healthRedis.Config{
						DSN: cfg.RedisConnect.GetDSN(),
					},
				),
			},
			// Gateway outages degrade the service but carts still work, so
			// these checks never fail the whole probe.
			health.Config{
				Name:      "product-service",
				Timeout:   cfg.Gateways.Timeout,
				SkipOnErr: true,
				Check:     gatewayCheck(cfg.Gateways.ProductServiceURL),
			},
			health.Config{
				Name:      "order-service",
				Timeout:   cfg.Gateways.Timeout,
				SkipOnErr: true,
				Check:     gatewayCheck(cfg.Gateways.OrderServiceURL),
			},
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create health instance: %w", err)
	}

	return h, nil
}

func gatewayCheck(baseURL string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("failed to build health request: %w", err)
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("gateway unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("gateway reported status %d", resp.StatusCode)
		}

		return nil
	}
}
