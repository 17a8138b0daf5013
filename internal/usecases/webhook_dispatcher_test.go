package usecases

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wagate/internal/entities"
	"wagate/internal/infrastructure"
	"wagate/internal/repository"
)

func newTestDispatcher(t *testing.T, timeout time.Duration) *WebhookDispatcher {
	t.Helper()
	client, err := infrastructure.NewSQLiteClient(t.TempDir() + "/gateway.db")
	require.NoError(t, err)
	t.Cleanup(client.Close)

	repo, err := repository.NewWebhookRepository(client.DB)
	require.NoError(t, err)

	d, err := NewWebhookDispatcher(repo, timeout, zerolog.Nop())
	require.NoError(t, err)
	return d
}

func TestRegisterListUnregisterRoundTrip(t *testing.T) {
	d := newTestDispatcher(t, time.Second)

	created, err := d.Register("https://example.com/hook", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	hooks := d.List()
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://example.com/hook", hooks[0].URL)

	// Re-registering the same URL replaces the secret, not the entry.
	created, err = d.Register("https://example.com/hook", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, d.List(), 1)

	removed, err := d.Unregister("https://example.com/hook")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, d.List())

	removed, err = d.Unregister("https://example.com/hook")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDispatchSendsCanonicalMessageWithSecret(t *testing.T) {
	var gotSecret atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSecret.Store(r.Header.Get("X-Webhook-Secret"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, time.Second)
	_, err := d.Register(srv.URL, "hunter2")
	require.NoError(t, err)

	results := d.DispatchWait(entities.Message{MessageID: "M1", Type: entities.TypeText})
	require.Len(t, results, 1)
	assert.True(t, results[0].Delivered())
	assert.Equal(t, "hunter2", gotSecret.Load())
}

func TestDispatchIsolatesSlowAndFailingSubscribers(t *testing.T) {
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer fast.Close()
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer slow.Close()

	d := newTestDispatcher(t, 200*time.Millisecond)
	_, err := d.Register(fast.URL, "")
	require.NoError(t, err)
	_, err = d.Register(slow.URL, "")
	require.NoError(t, err)

	start := time.Now()
	results := d.DispatchWait(entities.Message{MessageID: "M1"})
	elapsed := time.Since(start)

	require.Len(t, results, 2)
	byURL := map[string]DeliveryResult{}
	for _, res := range results {
		byURL[res.URL] = res
	}
	assert.True(t, byURL[fast.URL].Delivered())
	assert.False(t, byURL[slow.URL].Delivered())
	assert.Error(t, byURL[slow.URL].Err)
	// Fan-out is concurrent and bounded by the timeout, not the slow server.
	assert.Less(t, elapsed, time.Second)
}

func TestDispatchNonSuccessStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := newTestDispatcher(t, time.Second)
	_, err := d.Register(srv.URL, "")
	require.NoError(t, err)

	results := d.DispatchWait(entities.Message{MessageID: "M1"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Delivered())
	assert.Equal(t, http.StatusInternalServerError, results[0].StatusCode)
}

func TestDispatcherReloadsPersistedSubscriptions(t *testing.T) {
	dir := t.TempDir()
	client, err := infrastructure.NewSQLiteClient(dir + "/gateway.db")
	require.NoError(t, err)
	repo, err := repository.NewWebhookRepository(client.DB)
	require.NoError(t, err)

	d, err := NewWebhookDispatcher(repo, time.Second, zerolog.Nop())
	require.NoError(t, err)
	_, err = d.Register("https://example.com/a", "s")
	require.NoError(t, err)
	client.Close()

	client, err = infrastructure.NewSQLiteClient(dir + "/gateway.db")
	require.NoError(t, err)
	defer client.Close()
	repo, err = repository.NewWebhookRepository(client.DB)
	require.NoError(t, err)

	reloaded, err := NewWebhookDispatcher(repo, time.Second, zerolog.Nop())
	require.NoError(t, err)
	hooks := reloaded.List()
	require.Len(t, hooks, 1)
	assert.Equal(t, "https://example.com/a", hooks[0].URL)
}
