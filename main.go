package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/omniledger/signet/pkg/log"
	"github.com/omniledger/signet/pkg/rpc"
	"github.com/omniledger/signet/pkg/sign"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logger := log.NewZapLogger(log.Config{Format: "logfmt", Level: log.LevelInfo}).WithName("signet")

	config, err := LoadConfig(logger)
	if err != nil {
		logger.Fatal("failed to load configuration", "error", err)
	}

	// LoadConfig already validated the level.
	level, _ := log.ParseLevel(config.LogLevel)
	logger = log.NewZapLogger(log.Config{Format: config.LogFormat, Level: level}).WithName("signet")

	signer, err := sign.LoadSigner(config.PrivateKeyFile)
	if err != nil {
		logger.Fatal("failed to load signing key", "error", err, "path", config.PrivateKeyFile)
	}
	logger.Info("node signer initialized", "address", signer.Address().Hex())

	metrics := NewMetrics()

	pool := NewVerifyPool(config.VerifyWorkers, metrics, logger)
	defer pool.Stop()

	rpcNode, err := rpc.NewWebsocketNode(rpc.WebsocketNodeConfig{
		Signer: signer,
		Logger: logger,
		OnConnectHandler: func(string) {
			metrics.ConnectedClients.Inc()
			metrics.ConnectionsTotal.Inc()
		},
		OnDisconnectHandler: func(string) {
			metrics.ConnectedClients.Dec()
		},
		OnMessageSentHandler: func([]byte) {
			metrics.MessageSent.Inc()
		},
	})
	if err != nil {
		logger.Fatal("failed to initialize RPC node", "error", err)
	}

	service := NewCryptoService(signer, pool, metrics, logger)
	service.Register(rpcNode)

	rpcListenEndpoint := "/ws"
	rpcMux := http.NewServeMux()
	rpcMux.Handle(rpcListenEndpoint, rpcNode)
	rpcServer := &http.Server{
		Addr:    config.ListenAddress,
		Handler: rpcMux,
	}

	metricsEndpoint := "/metrics"
	metricsMux := http.NewServeMux()
	metricsMux.Handle(metricsEndpoint, promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    config.MetricsAddress,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("Prometheus metrics available", "listenAddr", config.MetricsAddress, "endpoint", metricsEndpoint)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failure", "error", err)
		}
	}()

	go func() {
		logger.Info("RPC server available", "listenAddr", config.ListenAddress, "endpoint", rpcListenEndpoint)
		if err := rpcServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("RPC server failure", "error", err)
		}
	}()

	// Wait for shutdown signal.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down metrics server", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := rpcServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down RPC server", "error", err)
	}

	logger.Info("shutdown complete")
}
