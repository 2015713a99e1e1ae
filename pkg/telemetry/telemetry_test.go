package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), Config{})
	require.NoError(t, err)
	require.False(t, tel.Enabled())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSetupWithEndpoint(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tel, err := Setup(context.Background(), Config{OTLPEndpoint: server.URL + "/v1/traces"})
	require.NoError(t, err)
	require.True(t, tel.Enabled())

	_, span := otel.Tracer("telemetry-test").Start(context.Background(), "probe")
	span.End()

	require.NoError(t, tel.Shutdown(context.Background()))
}
