package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/pkg/ratelimit"
)

// Client talks to a remote billing provider: one token exchange per run,
// then per-subscriber sync calls carrying the bearer token. Non-2xx sync
// responses are entity-level failures, not run failures.
type Client struct {
	cfg     *config.BillingConfig
	log     *logrus.Logger
	client  *http.Client
	limiter *ratelimit.BillingRateLimiter
}

func NewClient(cfg *config.BillingConfig, log *logrus.Logger, limiter *ratelimit.BillingRateLimiter) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		cfg:     cfg,
		log:     log,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type remoteStateResponse struct {
	Records []RemoteRecord `json:"records"`
}

// RemoteRecord is the provider's view of a subscriber.
type RemoteRecord struct {
	ExternalRef string `json:"external_ref"`
	Plan        string `json:"plan"`
	Status      string `json:"status"`
}

// Authenticate exchanges the integration credential for a bearer token.
// The secret only ever exists in the request body, never in logs.
func (c *Client) Authenticate(ctx context.Context, integration *models.IntegrationEntity, secret string) (string, error) {
	if err := c.limiter.Wait(ctx, integration.ID); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]string{
		"username": integration.Username,
		"password": secret,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, integration.BaseURL+"/api/v1/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach billing provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("billing provider auth returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read auth response: %w", err)
	}
	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse auth response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("billing provider returned an empty token")
	}
	return token.AccessToken, nil
}

// FetchRemoteState pulls the provider-side subscriber records.
func (c *Client) FetchRemoteState(ctx context.Context, integration *models.IntegrationEntity, bearer string) ([]RemoteRecord, error) {
	if err := c.limiter.Wait(ctx, integration.ID); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, integration.BaseURL+"/api/v1/subscribers", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch remote state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("billing provider fetch returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read remote state: %w", err)
	}
	var state remoteStateResponse
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("failed to parse remote state: %w", err)
	}
	return state.Records, nil
}

// SyncSubscriber upserts one subscriber at the provider.
func (c *Client) SyncSubscriber(ctx context.Context, integration *models.IntegrationEntity, bearer string, subscriber *models.SubscriberEntity) error {
	if err := c.limiter.Wait(ctx, integration.ID); err != nil {
		return err
	}

	payload, err := json.Marshal(map[string]any{
		"external_ref": subscriber.ExternalRef,
		"name":         subscriber.Name,
		"email":        subscriber.Email,
		"plan":         subscriber.Plan,
		"status":       subscriber.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal subscriber payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, integration.BaseURL+"/api/v1/subscribers/"+subscriber.ExternalRef, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to sync subscriber: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("billing provider sync returned status: %d", resp.StatusCode)
	}
	return nil
}
