package statusapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/buzzkillb/tirade-engine/internal/domain"
	"github.com/buzzkillb/tirade-engine/internal/registry"
)

type fakeStore struct {
	domain.Store
	healthErr error
}

func (s *fakeStore) Health(ctx context.Context) error { return s.healthErr }
func (s *fakeStore) TradeHistory(ctx context.Context, pair string, limit int) ([]domain.TradeOutcome, error) {
	return nil, nil
}

func newTestServer(authToken string, store *fakeStore) *Server {
	reg := registry.New([]domain.Wallet{{ID: "a", Address: "A"}})
	return NewServer(Config{Host: "127.0.0.1", Port: 0, AuthToken: authToken}, Deps{
		Pair:     "SOL/USDC",
		Store:    store,
		Registry: reg,
	}, zerolog.Nop())
}

func TestHealthRequiresNoAuth(t *testing.T) {
	s := newTestServer("secret", &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealthReflectsStoreFailure(t *testing.T) {
	s := newTestServer("", &fakeStore{healthErr: context.DeadlineExceeded})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestPositionsRequiresBearerToken(t *testing.T) {
	s := newTestServer("secret", &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestPositionsAcceptsValidBearerToken(t *testing.T) {
	s := newTestServer("secret", &fakeStore{})

	token, err := IssueAccessToken("secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", rec.Code)
	}
}

func TestPositionsRejectsTokenSignedWithWrongSecret(t *testing.T) {
	s := newTestServer("secret", &fakeStore{})

	token, err := IssueAccessToken("wrong-secret", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong-secret token, got %d", rec.Code)
	}
}

func TestPositionsOpenWhenAuthDisabled(t *testing.T) {
	s := newTestServer("", &fakeStore{})

	req := httptest.NewRequest(http.MethodGet, "/positions", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with auth disabled, got %d", rec.Code)
	}
}
