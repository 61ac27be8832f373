package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"golang-workspace-automation/internal/config"
	"golang-workspace-automation/internal/models"
	"golang-workspace-automation/pkg/ratelimit"
)

func newTestClient() *Client {
	limiter := ratelimit.NewBillingRateLimiter(100, 100, logrus.New())
	return NewClient(&config.BillingConfig{}, logrus.New(), limiter)
}

func TestAuthenticate(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/token" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode auth body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-123", "token_type": "bearer", "expires_in": 3600})
	}))
	defer server.Close()

	client := newTestClient()
	integration := &models.IntegrationEntity{ID: 1, BaseURL: server.URL, Username: "app"}

	token, err := client.Authenticate(context.Background(), integration, "s3cret")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token = %q, want tok-123", token)
	}
	if gotBody["username"] != "app" || gotBody["password"] != "s3cret" {
		t.Errorf("auth body = %v", gotBody)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "non-200 status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
		},
		{
			name: "empty token",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"access_token": ""})
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient()
			integration := &models.IntegrationEntity{ID: 1, BaseURL: server.URL}
			if _, err := client.Authenticate(context.Background(), integration, "x"); err == nil {
				t.Error("Authenticate() succeeded, want error")
			}
		})
	}
}

func TestFetchRemoteState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"records": []map[string]string{
				{"external_ref": "sub-1", "plan": "gold", "status": "active"},
				{"external_ref": "sub-2", "plan": "silver", "status": "expired"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient()
	integration := &models.IntegrationEntity{ID: 1, BaseURL: server.URL}

	records, err := client.FetchRemoteState(context.Background(), integration, "tok-123")
	if err != nil {
		t.Fatalf("FetchRemoteState: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ExternalRef != "sub-1" || records[1].Status != "expired" {
		t.Errorf("records = %+v", records)
	}
}

func TestSyncSubscriber(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{name: "200 ok", status: http.StatusOK, wantErr: false},
		{name: "204 no content", status: http.StatusNoContent, wantErr: false},
		{name: "409 conflict", status: http.StatusConflict, wantErr: true},
		{name: "500 server error", status: http.StatusInternalServerError, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPut {
					t.Errorf("method = %s, want PUT", r.Method)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := newTestClient()
			integration := &models.IntegrationEntity{ID: 1, BaseURL: server.URL}
			subscriber := &models.SubscriberEntity{ID: 1, ExternalRef: "sub-1", Plan: "gold", Status: "active"}

			err := client.SyncSubscriber(context.Background(), integration, "tok-123", subscriber)
			if (err != nil) != tt.wantErr {
				t.Errorf("SyncSubscriber() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
