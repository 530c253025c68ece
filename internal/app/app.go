package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

// Run поднимает хранилище, outbox worker, gRPC (health, reflection) и HTTP-метрики
// и работает до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")
	logger.WithField("build", version.String()).Info("starting shop service")

	deps, err := initRuntimeDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if deps.closeFn != nil {
			if err := deps.closeFn(); err != nil {
				logger.WithError(err).Warn("failed to close storage")
			}
		}
	}()

	// Без Kafka события публикуются в лог.
	kafkaProducer, _ := initKafkaProducer(cfg.KafkaBrokers, logger)
	defer closeKafka(kafkaProducer, logger)

	worker := NewOutboxWorker(cfg, deps.store.Outbox(), kafkaProducer, logger)
	workerCtx, workerCancel := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Run(workerCtx)
	}()
	defer shutdownOutboxWorker(workerCancel, workerDone, logger)

	grpcMetrics := registerGRPCMetrics(logger)
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(grpcMetrics.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(grpcMetrics.StreamServerInterceptor()),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)
	grpcMetrics.InitializeMetrics(grpcServer)

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, deps.probes)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		shutdownHTTP(metricsSrv, logger)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("gRPC сервер слушает %s", lis.Addr())
		errCh <- grpcServer.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем gRPC сервер")
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		stoppedCh := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stoppedCh)
		}()
		select {
		case <-stoppedCh:
		case <-time.After(5 * time.Second):
			logger.Warn("graceful stop превысил таймаут, принудительно останавливаем")
			grpcServer.Stop()
		}
		shutdownHTTP(metricsSrv, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

// registerGRPCMetrics регистрирует серверные gRPC-метрики или возвращает уже зарегистрированные.
func registerGRPCMetrics(logger *log.Entry) *promgrpc.ServerMetrics {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promgrpc.ServerMetrics); ok {
				return existing
			}
		}
		logger.WithError(err).Warn("failed to register grpc metrics")
	}
	return grpcMetrics
}

// shutdownOutboxWorker останавливает worker и ждёт завершения текущего цикла.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel != nil {
		cancel()
	}
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info("outbox worker stopped")
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop in time")
	}
}

// startMetricsServer запускает HTTP-обработчики /metrics и health probes.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
