package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	supporthttp "github.com/stellar/go-stellar-sdk/support/http"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/swapwatch/swapwatch-backend/internal/crashtracker"
	"github.com/swapwatch/swapwatch-backend/internal/data"
	"github.com/swapwatch/swapwatch-backend/internal/ingest"
	"github.com/swapwatch/swapwatch-backend/internal/message"
	"github.com/swapwatch/swapwatch-backend/internal/monitor"
	"github.com/swapwatch/swapwatch-backend/internal/room"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httpclient"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httperror"
	"github.com/swapwatch/swapwatch-backend/internal/serve/httphandler"
	"github.com/swapwatch/swapwatch-backend/internal/serve/middleware"
	"github.com/swapwatch/swapwatch-backend/internal/services"
)

const ServiceID = "serve"

// Webhook ingress rate limit, per client IP.
const (
	webhookRateLimit  = 120
	webhookRateWindow = time.Minute
)

type HTTPServerInterface interface {
	Run(conf supporthttp.Config)
}

type HTTPServer struct{}

func (h *HTTPServer) Run(conf supporthttp.Config) {
	supporthttp.Run(conf)
}

type ServeOptions struct {
	Environment        string
	GitCommit          string
	Port               int
	Version            string
	MonitorService     monitor.MonitorServiceInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	CorsAllowedOrigins []string
	BaseURL            string

	DatabasePath string
	Models       *data.Models
	kv           *data.KV

	WebhookSecret    string
	WebhookReplayTTL time.Duration

	UpstreamAPIBaseURL string
	UpstreamWebhookID  string
	UpstreamKeyName    string
	UpstreamPrivateKey string

	PushNotifierType message.PushNotifierType

	registry          *room.Registry
	ingestService     *ingest.Service
	filterSyncService *services.FilterSyncService
}

// SetupDependencies uses the serve options to setup the dependencies for the server.
func (opts *ServeOptions) SetupDependencies() error {
	// Set crash tracker LogAndReportErrors as DefaultReportErrorFunc
	httperror.SetDefaultReportErrorFunc(opts.CrashTrackerClient.LogAndReportErrors)

	// Setup the KV store:
	kv, err := data.OpenKV(opts.DatabasePath)
	if err != nil {
		return fmt.Errorf("error opening the kv store: %w", err)
	}
	opts.kv = kv
	opts.Models, err = data.NewModels(kv)
	if err != nil {
		return fmt.Errorf("error creating models for Serve: %w", err)
	}

	// Setup the push notifier:
	var pushClient message.PushNotifierClient
	if opts.PushNotifierType != "" {
		pushClient, err = message.GetClient(message.PushNotifierOptions{
			PushNotifierType: opts.PushNotifierType,
			Environment:      opts.Environment,
			HTTPClient:       httpclient.DefaultClient(),
		})
		if err != nil {
			return fmt.Errorf("error creating push notifier client: %w", err)
		}
	}

	// Setup the upstream filter sync:
	opts.filterSyncService, err = services.NewFilterSyncService(services.FilterSyncOptions{
		Models:             opts.Models,
		HTTPClient:         httpclient.DefaultClient(),
		MonitorService:     opts.MonitorService,
		UpstreamAPIBaseURL: opts.UpstreamAPIBaseURL,
		UpstreamWebhookID:  opts.UpstreamWebhookID,
		UpstreamKeyName:    opts.UpstreamKeyName,
		UpstreamPrivateKey: opts.UpstreamPrivateKey,
	})
	if err != nil {
		return fmt.Errorf("error creating filter sync service: %w", err)
	}

	// Setup the room registry and the webhook ingress:
	opts.registry = room.NewRegistry(opts.Models, pushClient, opts.MonitorService, opts.filterSyncService)
	opts.ingestService, err = ingest.NewService(ingest.ServiceOptions{
		WebhookSecret:  opts.WebhookSecret,
		ReplayTTL:      opts.WebhookReplayTTL,
		Models:         opts.Models,
		Notifier:       opts.registry,
		MonitorService: opts.MonitorService,
	})
	if err != nil {
		return fmt.Errorf("error creating ingest service: %w", err)
	}

	// Re-arm the expiry alarms that were pending when the process last
	// stopped, then reconcile the upstream filter with the persisted index.
	ctx := context.Background()
	if err = opts.registry.RearmAlarms(ctx); err != nil {
		return fmt.Errorf("error re-arming room expiry alarms: %w", err)
	}
	opts.filterSyncService.TriggerSync(ctx)

	return nil
}

func Serve(opts ServeOptions, httpServer HTTPServerInterface) error {
	err := opts.SetupDependencies()
	if err != nil {
		return fmt.Errorf("error starting dependencies: %w", err)
	}

	// Start the server
	listenAddr := fmt.Sprintf(":%d", opts.Port)
	serverConfig := supporthttp.Config{
		ListenAddr:          listenAddr,
		Handler:             handleHTTP(opts),
		TCPKeepAlive:        time.Minute * 3,
		ShutdownGracePeriod: time.Second * 50,
		ReadTimeout:         time.Second * 5,
		WriteTimeout:        time.Second * 35,
		IdleTimeout:         time.Minute * 2,
		OnStarting: func() {
			log.Info("Starting SwapWatch Server")
			log.Infof("Listening on %s", listenAddr)
		},
		OnStopping: func() {
			log.Info("Closing room actors and sessions...")
			opts.registry.Shutdown()

			log.Info("Closing the kv store...")
			if closeErr := opts.kv.Close(); closeErr != nil {
				log.Errorf("error closing the kv store: %s", closeErr.Error())
			}

			log.Info("Stopping SwapWatch Server")
		},
	}
	httpServer.Run(serverConfig)
	return nil
}

func handleHTTP(o ServeOptions) *chi.Mux {
	mux := chi.NewMux()

	// Middleware
	mux.Use(middleware.CorsMiddleware(o.CorsAllowedOrigins))
	mux.Use(chimiddleware.RequestID)
	mux.Use(chimiddleware.RealIP)
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.RecoverHandler)
	mux.Use(middleware.MetricsRequestHandler(o.MonitorService))

	mux.Get("/health", httphandler.HealthHandler{
		ReleaseID: o.GitCommit,
		ServiceID: ServiceID,
		Version:   o.Version,
		KV:        o.kv,
	}.ServeHTTP)

	roomHandler := httphandler.RoomHandler{Registry: o.registry}
	walletsHandler := httphandler.RoomWalletsHandler{
		Registry:    o.registry,
		Models:      o.Models,
		IndexSyncer: o.filterSyncService,
	}

	mux.Post("/rooms", roomHandler.CreateRoom)
	mux.Route("/rooms/{code}", func(r chi.Router) {
		r.Use(middleware.RoomCodeMiddleware)

		r.Get("/", roomHandler.GetRoom)
		r.Delete("/", roomHandler.DeleteRoom)
		r.Post("/extend", roomHandler.ExtendRoom)
		r.Get("/config", roomHandler.GetConfig)
		r.Put("/config", roomHandler.UpdateConfig)
		r.Get("/presence", roomHandler.GetPresence)

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", walletsHandler.GetWallets)
			r.Post("/", walletsHandler.AddWallet)
			r.Patch("/{address}", walletsHandler.UpdateWallet)
			r.Delete("/{address}", walletsHandler.RemoveWallet)
		})

		r.Get("/ws", httphandler.WebSocketHandler{Registry: o.registry}.ServeHTTP)
	})

	mux.With(httprate.LimitByIP(webhookRateLimit, webhookRateWindow)).
		Post("/webhook/coinbase", httphandler.WebhookHandler{IngestService: o.ingestService}.ServeHTTP)

	return mux
}
