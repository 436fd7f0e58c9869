package notify_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rpggio/packetd/internal/notify"
	"github.com/stretchr/testify/require"
)

func TestWebhook_Deliver(t *testing.T) {
	var body map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.URL, "secret", time.Second, nil)
	err := wh.Deliver(context.Background(), notify.Delivery{UserID: 42, PacketID: 3, Kind: notify.KindSummary, Text: "hello"})
	require.NoError(t, err)

	require.Equal(t, "Bearer secret", auth)
	require.Equal(t, float64(42), body["chat_id"])
	require.Equal(t, "hello", body["text"])
	require.Equal(t, notify.KindSummary, body["type"])
	require.NotEmpty(t, body["delivery_id"])
}

func TestWebhook_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := notify.NewWebhook(srv.URL, "", time.Second, nil)
	err := wh.Deliver(context.Background(), notify.Delivery{UserID: 42, Text: "x"})
	require.ErrorIs(t, err, notify.ErrDeliveryRejected)
}

func TestWebhook_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	wh := notify.NewWebhook(srv.URL, "", 20*time.Millisecond, nil)
	err := wh.Deliver(context.Background(), notify.Delivery{UserID: 42, Text: "x"})
	require.Error(t, err)
	require.NotErrorIs(t, err, notify.ErrDeliveryRejected)
}
