package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/kv"
)

type stubRooms struct{ n int }

func (s stubRooms) RoomCount() int { return s.n }

type downStore struct{ kv.Store }

func (downStore) Ping(context.Context) error { return context.DeadlineExceeded }

func TestHealthReportsConnectedStore(t *testing.T) {
	handler := NewHealthHandler(kv.NewMemory(), stubRooms{n: 3})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var out HealthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.Status != "healthy" || out.KV != "connected" || out.Rooms != 3 {
		t.Errorf("health = %+v", out)
	}
	if _, err := time.Parse(time.RFC3339, out.Timestamp); err != nil {
		t.Errorf("timestamp %q is not RFC3339: %v", out.Timestamp, err)
	}
}

func TestHealthReportsStoreOutage(t *testing.T) {
	handler := NewHealthHandler(downStore{kv.NewMemory()}, stubRooms{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	// The endpoint itself stays up; the payload carries the outage.
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Code)
	}
	var out HealthResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.KV != "disconnected" {
		t.Errorf("kv = %q, want disconnected", out.KV)
	}
}
