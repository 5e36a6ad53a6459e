package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fjod/pawmart/internal/payment"
)

// SandboxOptions holds flags for the gateway-sandbox command.
type SandboxOptions struct {
	*RootOptions
	Addr       string
	PublicURL  string
	WebhookURL string
	AlwaysPaid bool
}

func NewGatewaySandboxCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SandboxOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "gateway-sandbox",
		Short: "Run a local stand-in for the hosted payment gateway",
		Long: `Run a local payment gateway. Sessions are created with
POST /v1/checkout/sessions; POST /v1/checkout/sessions/{id}/complete delivers a signed
checkout.session.completed (or expired) webhook to --webhook-url.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}

			var outcome payment.Outcome = payment.RandomOutcome{}
			if opts.AlwaysPaid {
				outcome = payment.AlwaysPaid{}
			}
			sandbox := &payment.Sandbox{
				PublicURL:     opts.PublicURL,
				WebhookURL:    opts.WebhookURL,
				WebhookSecret: cfg.PaymentWebhookSecret,
				APIKey:        cfg.PaymentAPIKey,
				Outcome:       outcome,
				HTTPClient:    &http.Client{Timeout: 10 * time.Second},
				Log:           log,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveSandbox(ctx, opts.Addr, sandbox.Routes(), log)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", ":8090", "listen address")
	cmd.Flags().StringVar(&opts.PublicURL, "public-url", "http://localhost:8090", "base URL used in session links")
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "http://localhost:8080/api/v1/webhooks/payment", "where webhooks are delivered")
	cmd.Flags().BoolVar(&opts.AlwaysPaid, "always-paid", false, "complete every session as paid")

	return cmd
}

func serveSandbox(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		log.Info("payment sandbox listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
