package exchange

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/buzzkillb/tirade-engine/internal/domain"
)

// SimPriceSource produces a deterministic-ish random walk for local runs
// with no venue configured, mirroring the teacher's MockClient idiom.
type SimPriceSource struct {
	pair  string
	mu    sync.Mutex
	price float64
	rng   *rand.Rand
}

func NewSimPriceSource(pair string, startPrice float64, seed int64) *SimPriceSource {
	return &SimPriceSource{
		pair:  pair,
		price: startPrice,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (s *SimPriceSource) step() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	change := (s.rng.Float64() - 0.5) * 0.004
	s.price *= 1 + change
	if s.price < 0.01 {
		s.price = 0.01
	}
	return s.price
}

func (s *SimPriceSource) FetchCandles(ctx context.Context, pair string, interval string, limit int) ([]domain.Candle, error) {
	out := make([]domain.Candle, 0, limit)
	now := time.Now()
	for i := 0; i < limit; i++ {
		p := s.step()
		out = append(out, domain.Candle{Open: p, High: p, Low: p, Close: p, Timestamp: now.Add(time.Duration(i) * time.Minute)})
	}
	return out, nil
}

func (s *SimPriceSource) FetchRaw(ctx context.Context, pair string) ([]domain.PriceTick, error) {
	p := s.step()
	return []domain.PriceTick{{Pair: pair, Price: p, Timestamp: time.Now(), Source: "simulator"}}, nil
}

var _ domain.PriceSource = (*SimPriceSource)(nil)
