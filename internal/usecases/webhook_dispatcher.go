package usecases

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wagate/internal/entities"
	"wagate/internal/repository"
)

// DeliveryResult records the outcome of one delivery attempt to one
// subscriber. Deliveries are at-most-one-attempt; there is no retry queue.
type DeliveryResult struct {
	URL        string
	StatusCode int
	Err        error
	Elapsed    time.Duration
}

func (d DeliveryResult) Delivered() bool {
	return d.Err == nil && d.StatusCode >= 200 && d.StatusCode < 300
}

// WebhookDispatcher fans each inbound message out to all registered
// subscribers concurrently, each with its own bounded timeout. Subscriptions
// are persisted through the repository and cached in memory for dispatch.
type WebhookDispatcher struct {
	repo    *repository.WebhookRepository
	client  *http.Client
	timeout time.Duration
	logger  zerolog.Logger

	mu   sync.RWMutex
	subs map[string]entities.Webhook
}

func NewWebhookDispatcher(repo *repository.WebhookRepository, timeout time.Duration, logger zerolog.Logger) (*WebhookDispatcher, error) {
	hooks, err := repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load webhooks: %w", err)
	}
	subs := make(map[string]entities.Webhook, len(hooks))
	for _, h := range hooks {
		subs[h.URL] = h
	}
	return &WebhookDispatcher{
		repo:    repo,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
		subs:    subs,
	}, nil
}

// Register adds or replaces a subscription. Returns true when the URL was
// new; re-registering an existing URL replaces its secret.
func (d *WebhookDispatcher) Register(url, secret string) (bool, error) {
	hook := entities.Webhook{URL: url, Secret: secret, RegisteredAt: time.Now().UTC()}
	created, err := d.repo.Save(hook)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	if !created {
		hook.RegisteredAt = d.subs[url].RegisteredAt
	}
	d.subs[url] = hook
	d.mu.Unlock()
	d.logger.Info().Str("url", url).Bool("created", created).Msg("webhook registered")
	return created, nil
}

// Unregister removes a subscription. Returns true when the URL existed.
func (d *WebhookDispatcher) Unregister(url string) (bool, error) {
	removed, err := d.repo.Delete(url)
	if err != nil {
		return false, err
	}
	d.mu.Lock()
	delete(d.subs, url)
	d.mu.Unlock()
	if removed {
		d.logger.Info().Str("url", url).Msg("webhook unregistered")
	}
	return removed, nil
}

func (d *WebhookDispatcher) List() []entities.Webhook {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]entities.Webhook, 0, len(d.subs))
	for _, h := range d.subs {
		out = append(out, h)
	}
	return out
}

// Dispatch delivers msg to every subscriber concurrently and returns once
// all attempts have settled. A failure or timeout on one subscriber never
// affects the others and is never retried.
func (d *WebhookDispatcher) Dispatch(msg entities.Message) {
	d.DispatchWait(msg)
}

func (d *WebhookDispatcher) DispatchWait(msg entities.Message) []DeliveryResult {
	d.mu.RLock()
	targets := make([]entities.Webhook, 0, len(d.subs))
	for _, h := range d.subs {
		targets = append(targets, h)
	}
	d.mu.RUnlock()
	if len(targets) == 0 {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		d.logger.Error().Err(err).Str("message_id", msg.MessageID).Msg("dispatch marshal failed")
		return nil
	}

	results := make([]DeliveryResult, len(targets))
	var wg sync.WaitGroup
	for i, hook := range targets {
		wg.Add(1)
		go func(i int, hook entities.Webhook) {
			defer wg.Done()
			results[i] = d.deliver(hook, body)
		}(i, hook)
	}
	wg.Wait()

	for _, res := range results {
		if !res.Delivered() {
			d.logger.Warn().
				Str("url", res.URL).
				Int("status", res.StatusCode).
				AnErr("error", res.Err).
				Dur("elapsed", res.Elapsed).
				Str("message_id", msg.MessageID).
				Msg("webhook delivery failed")
		}
	}
	return results
}

func (d *WebhookDispatcher) deliver(hook entities.Webhook, body []byte) DeliveryResult {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return DeliveryResult{URL: hook.URL, Err: err, Elapsed: time.Since(start)}
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set("X-Webhook-Secret", hook.Secret)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{URL: hook.URL, Err: err, Elapsed: time.Since(start)}
	}
	defer resp.Body.Close()
	return DeliveryResult{URL: hook.URL, StatusCode: resp.StatusCode, Elapsed: time.Since(start)}
}
