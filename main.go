package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"

	"smart_parking_lot/internal/api"
	"smart_parking_lot/internal/api/handler"
	"smart_parking_lot/internal/app"
	"smart_parking_lot/internal/config"
	"smart_parking_lot/internal/iot"
	"smart_parking_lot/internal/logging"
	"smart_parking_lot/internal/repository/backend"
	"smart_parking_lot/internal/service"
	"smart_parking_lot/internal/telemetry"
)

func main() {
	log := logging.Log()
	ctx := context.Background()

	// 1. Configuration and logging
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Warnf("Invalid log settings, keeping defaults: %v", err)
	}

	// 2. Telemetry
	serviceName := ""
	if cfg.Telemetry.Enabled {
		provider, err := telemetry.NewProvider(ctx, cfg.Telemetry)
		if err != nil {
			log.Fatalf("Could not start OpenTelemetry: %v", err)
		}
		serviceName = cfg.Telemetry.ServiceName
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				log.Errorf("OpenTelemetry shutdown: %v", err)
			}
		}()
		log.Infof("OpenTelemetry exporting to %s", cfg.Telemetry.OTLPEndpoint)
	}
	instruments, err := telemetry.NewParkingInstruments(otel.Meter("smart_parking_lot"))
	if err != nil {
		log.Fatalf("Could not create metric instruments: %v", err)
	}

	// 3. Storage
	store, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Could not open %s storage: %v", cfg.Storage.Backend, err)
	}
	defer store.Close()
	log.Infof("Using %s storage", cfg.Storage.Backend)

	// 4. Lot core
	webSocketManager := handler.NewWebSocketManager()
	core, err := app.NewCore(ctx, cfg, store,
		service.WithNotifier(webSocketManager),
		service.WithInstruments(instruments),
	)
	if err != nil {
		log.Fatalf("Could not load the lot: %v", err)
	}
	parkingService := core.Parking
	cfg.WatchPricing(func(p config.PricingConfig) {
		parkingService.SetTariff(service.TariffFromConfig(p))
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		telemetry.NewLotCollector(parkingService.LotName(), core.Layout),
	)

	// 5. AWS clients
	var detector service.PlateDetector
	var publisher service.BarrierPublisher
	var sqsClient *sqs.Client
	if cfg.Detection.Enabled || cfg.AWS.SQSEventQueueURL != "" || cfg.AWS.IoTMQTTEndpoint != "" {
		awsSDKCfg, err := awsgo_config.LoadDefaultConfig(ctx, awsgo_config.WithRegion(cfg.AWS.Region))
		if err != nil {
			log.Fatalf("Could not load AWS SDK config: %v", err)
		}
		log.Infof("AWS SDK config loaded for region %s", cfg.AWS.Region)

		if cfg.Detection.Enabled {
			rekDetector, err := service.NewRekognitionDetector(rekognition.NewFromConfig(awsSDKCfg), cfg.Detection.PlatePattern)
			if err != nil {
				log.Fatalf("Invalid detection settings: %v", err)
			}
			detector = rekDetector
		}
		if cfg.AWS.IoTMQTTEndpoint != "" {
			iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
				endpoint := cfg.AWS.IoTMQTTEndpoint
				if !strings.HasPrefix(endpoint, "https://") && !strings.HasPrefix(endpoint, "http://") {
					endpoint = "https://" + endpoint
				}
				o.BaseEndpoint = aws.String(endpoint)
			})
			publisher = service.NewIoTBarrierPublisher(iotDataPlaneClient, cfg.AWS.IoTTopicPrefix)
		}
		if cfg.AWS.SQSEventQueueURL != "" {
			sqsClient = sqs.NewFromConfig(awsSDKCfg)
		}
	}

	lprService := service.NewLPRService(detector, store.Detections, cfg.Detection.ConfidenceThreshold)
	var gateService *service.GateService
	if publisher != nil || sqsClient != nil {
		gateService = service.NewGateService(parkingService, lprService, publisher)
	}
	authService := service.NewAuthService(store.Users, cfg.JWT.Secret, cfg.JWT.Expiration())

	// 6. Background workers
	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)

	wg.Add(1)
	go func() {
		defer wg.Done()
		webSocketManager.Start(workerCtx)
	}()

	if sqsClient == nil {
		log.Warn("SQS_EVENT_QUEUE_URL is not set, gate camera events will not be consumed")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqsClient, cfg.AWS.SQSEventQueueURL, gateService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sqsConsumer.Start(workerCtx)
			log.Info("SQS consumer stopped")
		}()
	}

	// 7. HTTP server
	router := api.SetupRouter(api.Dependencies{
		Auth:        authService,
		Parking:     parkingService,
		LPR:         lprService,
		Gate:        gateService,
		WebSockets:  webSocketManager,
		Metrics:     registry,
		ServiceName: serviceName,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Server listening on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shut down: %v", err)
	}

	cancelWorkers()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn("Background workers did not stop in time")
	}

	log.Info("Server stopped.")
}
