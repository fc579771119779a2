package api

import (
	"context"
	"io"
	"net"
	"testing"

	"roombook/internal/config"
	"roombook/internal/models"
	"roombook/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

func newTestGRPCClient(t *testing.T, backend Backend) *ReservationClient {
	t.Helper()
	conn, _ := newTestGRPCConn(t, backend)
	return NewReservationClient(conn)
}

func newTestGRPCConn(t *testing.T, backend Backend) (*grpc.ClientConn, *GRPCServer) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	logger := zerolog.New(io.Discard)

	srv, err := NewGRPCServer(authConfig(100, 200), backend, lis, &logger)
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { srv.Shutdown(context.Background()) })

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, srv
}

func TestGRPCHealth(t *testing.T) {
	conn, srv := newTestGRPCConn(t, newTestBackend(t))
	health := healthpb.NewHealthClient(conn)

	resp, err := health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	resp, err = health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	srv.health.Shutdown()
	resp, err = health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: serviceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.GetStatus())
}

func opsContext() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "ops-key", "x-api-extra", "ops-extra")
}

func TestGRPCReservationFlow(t *testing.T) {
	client := newTestGRPCClient(t, newTestBackend(t))
	ctx := opsContext()

	resources, err := client.ListResources(ctx, false)
	require.NoError(t, err)
	assert.Len(t, resources, 2)

	quote, err := client.Quote(ctx, service.QuoteRequest{Items: []models.BookingItem{slot("board-room", 9, 10)}})
	require.NoError(t, err)
	require.Len(t, quote.Items, 1)
	assert.Equal(t, "USD", quote.Currency)

	held, err := client.CheckAndHold(ctx, service.HoldRequest{Items: []models.BookingItem{slot("board-room", 9, 10)}, UserID: "grpc-user"})
	require.NoError(t, err)
	require.True(t, held.OK)

	clash, err := client.CheckAndHold(ctx, service.HoldRequest{Items: []models.BookingItem{slot("board-room", 9, 10)}})
	require.NoError(t, err)
	assert.False(t, clash.OK)
	require.Len(t, clash.Conflicts, 1)
	assert.Equal(t, "board-room", clash.Conflicts[0].ResourceID)

	reservation, err := client.Confirm(ctx, service.ConfirmRequest{HoldID: held.HoldID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, reservation.Status)
	assert.Equal(t, "grpc-user", reservation.UserID)
}

func TestGRPCErrors(t *testing.T) {
	client := newTestGRPCClient(t, newTestBackend(t))

	_, err := client.ListResources(context.Background(), false)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	ctx := opsContext()
	_, err = client.Confirm(ctx, service.ConfirmRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = client.Confirm(ctx, service.ConfirmRequest{HoldID: "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = client.CheckAndHold(ctx, service.HoldRequest{Items: []models.BookingItem{slot("conf-a", 12, 10)}})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestLoadServerTLS_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.APITLSConfig
		want string
	}{
		{"no files", config.APITLSConfig{Enabled: true}, "cert_file and key_file are required"},
		{"missing keypair", config.APITLSConfig{Enabled: true, CertFile: "/nonexistent/cert.pem", KeyFile: "/nonexistent/key.pem"}, "load keypair"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadServerTLS(tt.cfg)
			assert.ErrorContains(t, err, tt.want)
		})
	}

	_, err := NewGRPCServer(config.APIConfig{GRPC: config.APIGRPCConfig{TLS: config.APITLSConfig{Enabled: true}}}, nil, bufconn.Listen(1024), nil)
	assert.Error(t, err)
}
