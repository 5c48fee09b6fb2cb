package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptos-copytrade/internal/aptos"
	"aptos-copytrade/internal/copytrade"
	"aptos-copytrade/internal/domain"
)

type fakeSessions struct {
	sessions map[string]*domain.CopyTradeSession
	startErr error
	stopped  []string
}

func (f *fakeSessions) Start(_ context.Context, followerID, master string) (*domain.CopyTradeSession, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	s := &domain.CopyTradeSession{
		ID:              fmt.Sprintf("s%d", len(f.sessions)+1),
		FollowerID:      followerID,
		MasterAddress:   master,
		Active:          true,
		LastSeenVersion: 18446744073709551615,
		CreatedAt:       time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	f.sessions[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Stop(_ context.Context, followerID, sessionID string) error {
	s, ok := f.sessions[sessionID]
	if !ok || s.FollowerID != followerID {
		return copytrade.ErrSessionNotFound
	}
	f.stopped = append(f.stopped, sessionID)
	return nil
}

func (f *fakeSessions) List(_ context.Context, followerID string) ([]*domain.CopyTradeSession, error) {
	var out []*domain.CopyTradeSession
	for _, s := range f.sessions {
		if s.FollowerID == followerID {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestServer(svc *fakeSessions) http.Handler {
	return New(Options{
		Sessions: svc,
		Metrics:  http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("# metrics")) }),
	}).Router()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	return rec
}

func TestStartListStop(t *testing.T) {
	svc := &fakeSessions{sessions: map[string]*domain.CopyTradeSession{}}
	h := newTestServer(svc)

	rec := do(h, http.MethodPost, "/api/followers/42/sessions", `{"master_address":"0xabc"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "s1", created["id"])
	assert.Equal(t, "42", created["follower_id"])
	assert.Equal(t, "0xabc", created["master_address"])
	assert.Equal(t, "18446744073709551615", created["last_seen_version"], "versions are strings to survive JSON numbers")

	rec = do(h, http.MethodGet, "/api/followers/42/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Sessions []sessionResponse `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Sessions, 1)
	assert.Equal(t, "s1", listed.Sessions[0].ID)

	rec = do(h, http.MethodDelete, "/api/followers/42/sessions/s1", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"s1"}, svc.stopped)

	rec = do(h, http.MethodDelete, "/api/followers/other/sessions/s1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want int
	}{
		{"missing body", nil, `{}`, http.StatusBadRequest},
		{"duplicate", copytrade.ErrSessionActive, `{"master_address":"0xabc"}`, http.StatusConflict},
		{"no wallet", copytrade.ErrNoWallet, `{"master_address":"0xabc"}`, http.StatusUnprocessableEntity},
		{"bad key", fmt.Errorf("wallet 1: %w", aptos.ErrInvalidPrivateKey), `{"master_address":"0xabc"}`, http.StatusUnprocessableEntity},
		{"node down", fmt.Errorf("read master: %w", &aptos.APIError{StatusCode: 503}), `{"master_address":"0xabc"}`, http.StatusBadGateway},
		{"other", errors.New("boom"), `{"master_address":"0xabc"}`, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeSessions{sessions: map[string]*domain.CopyTradeSession{}, startErr: tt.err}
			rec := do(newTestServer(svc), http.MethodPost, "/api/followers/42/sessions", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(&fakeSessions{sessions: map[string]*domain.CopyTradeSession{}})

	rec := do(h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	rec = do(h, http.MethodGet, "/ws", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "no event feed configured")
}
