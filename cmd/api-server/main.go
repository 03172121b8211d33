// Command api-server runs the self-checkout HTTP API: catalog, carts,
// checkout, exit pass verification, and the staff admin surface.
package main

import (
	"context"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	retail "github.com/zenthicai/retail360-Self-checkout-system/internal/app"
)

func main() {
	// app.Run wires signal handling, zap, and OpenTelemetry before handing
	// control to the server.
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := retail.LoadConfig()
		if err != nil {
			return err
		}
		return retail.Run(ctx, lg, m, cfg)
	})
}
