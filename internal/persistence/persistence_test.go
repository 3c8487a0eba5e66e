package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

type fakeStore struct {
	domain.Store
	healthErr error
	rows      int
	rowsErr   error
}

func (s *fakeStore) Health(ctx context.Context) error { return s.healthErr }
func (s *fakeStore) CountLearningRows(ctx context.Context) (int, error) {
	return s.rows, s.rowsErr
}

func TestNewSystemWithZeroTradesIsHealthy(t *testing.T) {
	m := New(DefaultConfig(), &fakeStore{rows: 0}, "SOL/USDC", nil)
	report := m.Check(context.Background())
	if report.Status != Healthy {
		t.Fatalf("expected healthy, got %v", report.Status)
	}
}

func TestUnreachableStoreIsCritical(t *testing.T) {
	m := New(DefaultConfig(), &fakeStore{healthErr: errors.New("connection refused")}, "SOL/USDC", nil)
	report := m.Check(context.Background())
	if report.Status != Critical {
		t.Fatalf("expected critical, got %v", report.Status)
	}
}

func TestLearningRowCountErrorIsWarning(t *testing.T) {
	m := New(DefaultConfig(), &fakeStore{rowsErr: errors.New("query failed")}, "SOL/USDC", nil)
	report := m.Check(context.Background())
	if report.Status != Warning {
		t.Fatalf("expected warning, got %v", report.Status)
	}
}

func TestLastReportReflectsMostRecentCheck(t *testing.T) {
	m := New(DefaultConfig(), &fakeStore{rows: 42}, "SOL/USDC", nil)
	m.Check(context.Background())
	if got := m.LastReport().LearningRows; got != 42 {
		t.Fatalf("expected 42 learning rows, got %d", got)
	}
}
