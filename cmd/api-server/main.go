// Command api-server runs the storefront HTTP API.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	storefront "github.com/printkart/storefront/internal/app"
)

func main() {
	app.Run(run)
}

func run(ctx context.Context, lg *zap.Logger, m *app.Metrics) error {
	cfg, err := storefront.LoadConfig()
	if err != nil {
		return err
	}
	return storefront.Run(ctx, lg, m, cfg)
}
