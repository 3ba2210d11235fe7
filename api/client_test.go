package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/context-factory/api"
	"github.com/ruteri/context-factory/factory"
	"github.com/ruteri/context-factory/httpserver"
	"github.com/ruteri/context-factory/interfaces"
	"github.com/ruteri/context-factory/payload"
	"github.com/ruteri/context-factory/platform"
)

func newTestServer(t *testing.T) (*httptest.Server, *platform.MockPlatform) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factoryID := interfaces.ContextName("factory.test")

	store, err := payload.NewStore(context.Background(), factoryID, []byte("default payload"), nil, logger)
	require.NoError(t, err)

	mock := platform.NewMockPlatform()
	mock.SetAutoSettle(true)
	mock.Fund(factoryID, interfaces.NewFunds(1_000_000))

	f, err := factory.New(&factory.Config{
		Identity:   factoryID,
		Store:      store,
		Platform:   mock,
		Accountant: factory.NewAccountant(interfaces.NewFunds(10)),
		Log:        logger,
	})
	require.NoError(t, err)

	mux := chi.NewRouter()
	httpserver.NewHandler(f, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mock
}

func TestClientPayloadRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t)
	client := api.NewClient(srv.URL, "factory.test")
	ctx := context.Background()

	newCode := []byte{0x00, 0x61, 0x73, 0x6d}
	info, err := client.ReplacePayload(ctx, newCode)
	require.NoError(t, err)
	assert.Equal(t, len(newCode), info.Size)

	got, err := client.ReadPayload(ctx)
	require.NoError(t, err)
	assert.Equal(t, newCode, got)
}

func TestClientReplaceUnauthorized(t *testing.T) {
	srv, _ := newTestServer(t)
	client := api.NewClient(srv.URL, "intruder.test")

	_, err := client.ReplacePayload(context.Background(), []byte("code"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClientProvision(t *testing.T) {
	srv, mock := newTestServer(t)
	client := api.NewClient(srv.URL, "alice.test")
	ctx := context.Background()

	info, err := client.Info(ctx)
	require.NoError(t, err)

	resp, err := client.Provision(ctx, "sub", api.ProvisionRequest{
		BeneficiaryParams: json.RawMessage(`{"beneficiary":"alice.test"}`),
		AttachedFunds:     info.MinimumDeposit,
	})
	require.NoError(t, err)
	assert.Equal(t, "sub.factory.test", resp.ChildName)
	assert.True(t, mock.ContextExists("sub.factory.test"))
}

func TestClientProvisionInsufficientFunds(t *testing.T) {
	srv, _ := newTestServer(t)
	client := api.NewClient(srv.URL, "alice.test")

	_, err := client.Provision(context.Background(), "sub", api.ProvisionRequest{
		BeneficiaryParams: json.RawMessage(`{}`),
		AttachedFunds:     interfaces.NewFunds(1),
	})
	require.Error(t, err)
	// The error surfaces the computed requirement: 15 bytes at 10 per byte.
	assert.Contains(t, err.Error(), "required 150")
}
