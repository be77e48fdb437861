package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BearBump/VaultTrack/internal/api/httpapi"
	"github.com/BearBump/VaultTrack/internal/broker/kafka"
	"github.com/BearBump/VaultTrack/internal/broker/messages"
)

type recordingApplier struct {
	mu   sync.Mutex
	msgs []messages.TrackingUpdated
	err  error
}

func (r *recordingApplier) ApplyKafkaUpdate(ctx context.Context, m messages.TrackingUpdated) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return r.err
}

// fakeConsumer feeds its messages to the handler, then waits for ctx.
type fakeConsumer struct {
	values [][]byte
}

func (c fakeConsumer) Consume(ctx context.Context, h kafka.Handler) error {
	for i, v := range c.values {
		if err := h(ctx, kafka.Message{Topic: "tracking.updated", Offset: int64(i), Key: []byte("k"), Value: v}); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRunVaultAPI_ServesAndConsumes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan [2]string, 1)
	opts := vaultAPIOpts{
		grpcAddr:      "127.0.0.1:0",
		httpAddr:      "127.0.0.1:0",
		topic:         "t",
		consumerGroup: "g",
		onListen:      func(g, h string) { addrCh <- [2]string{g, h} },
	}

	msg, _ := json.Marshal(messages.TrackingUpdated{ShipmentID: "s1", TrackingCode: "X"})
	applier := &recordingApplier{}
	cons := fakeConsumer{values: [][]byte{[]byte("{broken"), msg}}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runVaultAPI(ctx, opts, httpapi.New(httpapi.Deps{}).Routes(), applier, cons)
	}()
	addrs := <-addrCh

	resp, err := http.Get("http://" + addrs[1] + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), "ok")

	conn, err := grpc.NewClient(addrs[0], grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()
	hctx, hcancel := context.WithTimeout(ctx, 2*time.Second)
	defer hcancel()
	hr, err := healthpb.NewHealthClient(conn).Check(hctx, &healthpb.HealthCheckRequest{Service: "vault.api"})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, hr.GetStatus())

	require.Eventually(t, func() bool {
		applier.mu.Lock()
		defer applier.mu.Unlock()
		return len(applier.msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "s1", applier.msgs[0].ShipmentID)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting servers to stop")
	}
}

func TestRunVaultAPI_ConsumerFailureStopsServers(t *testing.T) {
	msg, _ := json.Marshal(messages.TrackingUpdated{ShipmentID: "s1"})
	applier := &recordingApplier{err: errors.New("pg down")}

	opts := vaultAPIOpts{grpcAddr: "127.0.0.1:0", httpAddr: "127.0.0.1:0"}
	errCh := make(chan error, 1)
	go func() {
		errCh <- runVaultAPI(context.Background(), opts, http.NotFoundHandler(), applier, fakeConsumer{values: [][]byte{msg}})
	}()

	select {
	case err := <-errCh:
		require.ErrorContains(t, err, "pg down")
	case <-time.After(3 * time.Second):
		t.Fatal("runVaultAPI did not return")
	}
}

func TestRunVaultAPI_ListenError(t *testing.T) {
	err := runVaultAPI(context.Background(), vaultAPIOpts{grpcAddr: "256.0.0.1:bad"}, nil, nil, nil)
	require.Error(t, err)
}
