// Command payrelay runs the payment relay service: it terminates Stripe
// webhook traffic, verifies and normalizes events, and forwards them to the
// commerce backend. It also exposes the checkout session creation endpoint
// for the storefront.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/payrelay/payrelay/pkg/relay"
	"github.com/payrelay/payrelay/pkg/relay/backend"
	zerologadapter "github.com/payrelay/payrelay/pkg/relay/logger/zerolog"
	prommetrics "github.com/payrelay/payrelay/pkg/relay/metrics/prometheus"
	"github.com/payrelay/payrelay/pkg/relay/stripe"
	"github.com/payrelay/payrelay/storage/memory"
	redisstore "github.com/payrelay/payrelay/storage/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// A missing .env file is fine; the process environment wins either way.
	_ = godotenv.Load()

	zlog := zerolog.New(os.Stderr).With().Timestamp().Str("service", "payrelay").Logger()
	if getenv("PAYRELAY_ENV", "development") != "production" {
		zlog = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := run(zlog); err != nil {
		zlog.Fatal().Err(err).Msg("payrelay exited")
	}
}

func run(zlog zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerologadapter.NewLogger(zlog)
	metrics := prommetrics.NewMetrics(prometheus.DefaultRegisterer, "payrelay")

	notifier, err := backend.NewNotifier(backend.Config{
		BaseURL: os.Getenv("BACKEND_BASE_URL"),
		APIKey:  os.Getenv("BACKEND_API_KEY"),
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("backend notifier: %w", err)
	}

	events, err := newEventStore(ctx, zlog)
	if err != nil {
		return err
	}

	provider, err := stripe.NewProvider(stripe.Config{
		StripeAPIKey:        os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Notifier:            notifier,
		Events:              events,
		SuccessURL:          os.Getenv("CHECKOUT_SUCCESS_URL"),
		CancelURL:           os.Getenv("CHECKOUT_CANCEL_URL"),
		Environment:         getenv("PAYRELAY_ENV", "development"),
		Metrics:             metrics,
		Logger:              logger,
	})
	if err != nil {
		return fmt.Errorf("stripe provider: %w", err)
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)

	router.Method(http.MethodPost, "/api/webhook", provider.WebhookHandler())
	router.Method(http.MethodPost, "/api/checkout/create-session", provider.CheckoutHandler())
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := getenv("PAYRELAY_ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		zlog.Info().Str("addr", addr).Msg("listening")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		zlog.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return group.Wait()
}

// newEventStore picks the webhook deduplication store: Redis when
// REDIS_ADDR is set, the in-process store otherwise.
func newEventStore(ctx context.Context, zlog zerolog.Logger) (relay.EventStore, error) {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		zlog.Info().Msg("using in-memory event store")
		return memory.New(memory.WithTTL(72 * time.Hour)), nil
	}

	client := goredis.NewClient(&goredis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	zlog.Info().Str("addr", redisAddr).Msg("using redis event store")
	return redisstore.New(client, redisstore.DefaultConfig())
}

func getenv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
