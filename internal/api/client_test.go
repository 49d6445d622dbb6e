package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLogin(t *testing.T) {
	var gotReq LoginRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Auth/loginKey" {
			t.Errorf("path %q, want /Auth/loginKey", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(LoginResponse{Success: true, Token: "tok-123"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	token, err := c.Login(context.Background(), "user", "key")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if token != "tok-123" {
		t.Errorf("token %q, want tok-123", token)
	}
	if c.Token() != "tok-123" {
		t.Errorf("token not stored on client")
	}
	if gotReq.UserName != "user" || gotReq.APIKey != "key" {
		t.Errorf("request %+v", gotReq)
	}
}

func TestLoginRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(LoginResponse{
			Success:      false,
			ErrorCode:    3,
			ErrorMessage: "invalid credentials",
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.Login(context.Background(), "user", "bad"); err == nil {
		t.Error("expected error for rejected login")
	}
	if c.Token() != "" {
		t.Errorf("token should stay empty after rejection")
	}
}

func TestBearerTokenSent(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(ContractSearchResponse{Success: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithToken("tok-abc"))
	if _, err := c.SearchContracts(context.Background(), "MNQ"); err != nil {
		t.Fatalf("SearchContracts failed: %v", err)
	}
	if gotAuth != "Bearer tok-abc" {
		t.Errorf("Authorization %q, want Bearer tok-abc", gotAuth)
	}
}

func TestSearchContracts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/Contract/search" {
			t.Errorf("path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ContractSearchResponse{
			Success: true,
			Contracts: []Contract{
				{ID: "CON.F.US.MNQ.H25", Name: "MNQH25", TickSize: 0.25},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	contracts, err := c.SearchContracts(context.Background(), "MNQ")
	if err != nil {
		t.Fatalf("SearchContracts failed: %v", err)
	}
	if len(contracts) != 1 || contracts[0].ID != "CON.F.US.MNQ.H25" {
		t.Errorf("contracts %+v", contracts)
	}
}

func TestSearchContractsUnsuccessful(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ContractSearchResponse{Success: false, ErrorMessage: "nope"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	if _, err := c.SearchContracts(context.Background(), "MNQ"); err == nil {
		t.Error("expected error for unsuccessful search")
	}
}

func TestRetrieveBars(t *testing.T) {
	var gotReq RetrieveBarsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/History/retrieveBars" {
			t.Errorf("path %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(RetrieveBarsResponse{
			Success: true,
			Bars: []BarRecord{
				{T: "2025-03-10T14:30:00Z", O: 100, H: 105, L: 95, C: 102, V: 30},
			},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	start := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	bars, err := c.RetrieveBars(context.Background(), "CON.F.US.MNQ.H25", start, end, 20000)
	if err != nil {
		t.Fatalf("RetrieveBars failed: %v", err)
	}
	if len(bars) != 1 || bars[0].C != 102 {
		t.Errorf("bars %+v", bars)
	}

	if gotReq.Unit != UnitMinute || gotReq.UnitNumber != 1 {
		t.Errorf("unit %d/%d, want %d/1", gotReq.Unit, gotReq.UnitNumber, UnitMinute)
	}
	if gotReq.IncludePartialBar {
		t.Error("partial bars must be excluded")
	}
	if gotReq.Limit != 20000 {
		t.Errorf("limit %d", gotReq.Limit)
	}
	if gotReq.StartTime != "2025-03-09T00:00:00Z" || gotReq.EndTime != "2025-03-10T00:00:00Z" {
		t.Errorf("window %q..%q", gotReq.StartTime, gotReq.EndTime)
	}
}

func TestRetrieveBarsUnsuccessfulMeansNoData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(RetrieveBarsResponse{Success: false, ErrorMessage: "range exhausted"})
	}))
	defer server.Close()

	c := NewClient(server.URL)
	bars, err := c.RetrieveBars(context.Background(), "CON.F.US.MNQ.H25", time.Now().Add(-time.Hour), time.Now(), 100)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if bars != nil {
		t.Errorf("expected nil bars, got %+v", bars)
	}
}

func TestRetryOnServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(ContractSearchResponse{Success: true})
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, time.Millisecond))
	if _, err := c.SearchContracts(context.Background(), "MNQ"); err != nil {
		t.Fatalf("SearchContracts failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("made %d attempts, want 3", attempts)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(3, time.Millisecond))
	_, err := c.SearchContracts(context.Background(), "MNQ")
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("made %d attempts, want 1 (400 is not retryable)", attempts)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status %d", apiErr.StatusCode)
	}
}

func TestRetriesExhausted(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, WithRetries(2, time.Millisecond))
	if _, err := c.SearchContracts(context.Background(), "MNQ"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if attempts != 3 {
		t.Errorf("made %d attempts, want 3 (initial + 2 retries)", attempts)
	}
}
