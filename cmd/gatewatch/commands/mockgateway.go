package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gatewatch/gatewatch/internal/logging"
	"github.com/gatewatch/gatewatch/internal/mockgateway"
)

// NewMockGatewayCommand creates the mock-gateway command
func NewMockGatewayCommand() *cobra.Command {
	var (
		listen string
		tick   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mock-gateway",
		Short: "Run a fake gateway with synthetic session activity",
		Long: `Run an in-process gateway serving the session API with synthetic
activity. Point the dashboard at it for local demos:

  gatewatch mock-gateway &
  gatewatch --gateway-url http://localhost:8420`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewStderr()

			mock := mockgateway.New(logger)
			srv := &http.Server{
				Addr:    listen,
				Handler: mock.Router(),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			go mock.Run(ctx, tick)
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()

			logger.Info("mock gateway listening", "addr", listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("mock gateway failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":8420", "Listen address")
	cmd.Flags().DurationVar(&tick, "tick", 2*time.Second, "Synthetic activity interval")
	return cmd
}
