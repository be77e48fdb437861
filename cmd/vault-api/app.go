package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BearBump/VaultTrack/internal/broker/kafka"
	"github.com/BearBump/VaultTrack/internal/broker/messages"
)

type vaultAPIOpts struct {
	grpcAddr string
	httpAddr string

	topic         string
	consumerGroup string

	onListen func(grpcAddr, httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, h kafka.Handler) error
}

type trackingApplier interface {
	ApplyKafkaUpdate(ctx context.Context, msg messages.TrackingUpdated) error
}

// runVaultAPI serves HTTP and gRPC health and applies poller results from
// Kafka until ctx is done or one of them fails.
func runVaultAPI(ctx context.Context, opts vaultAPIOpts, handler http.Handler, svc trackingApplier, consumer kafkaConsumer) error {
	grpcLis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		_ = grpcLis.Close()
		return err
	}

	if opts.onListen != nil {
		opts.onListen(grpcLis.Addr().String(), httpLis.Addr().String())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runGRPCServer(gctx, grpcLis) })
	g.Go(func() error { return runHTTPServer(gctx, httpLis, handler) })
	g.Go(func() error {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		err := consumer.Consume(gctx, trackingHandler(svc))
		if gctx.Err() != nil {
			return gctx.Err()
		}
		// без коммита сообщение перечитается после рестарта
		slog.Error("kafka consumer stopped", "error", err.Error())
		return err
	})
	return g.Wait()
}

// trackingHandler skips malformed messages; an apply failure stops the
// consumer so the offset stays uncommitted.
func trackingHandler(svc trackingApplier) kafka.Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var m messages.TrackingUpdated
		if err := json.Unmarshal(msg.Value, &m); err != nil {
			slog.Warn("skip malformed tracking message", "key", string(msg.Key),
				"partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
			return nil
		}
		return svc.ApplyKafkaUpdate(ctx, m)
	}
}

func runGRPCServer(ctx context.Context, lis net.Listener) error {
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("vault.api", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	go func() {
		<-ctx.Done()
		hs.Shutdown()
		stopped := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(2 * time.Second):
			s.Stop()
		}
		_ = lis.Close()
	}()

	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.Serve(lis); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

func runHTTPServer(ctx context.Context, lis net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
