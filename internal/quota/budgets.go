// Package quota tracks per-venue REST call budgets against free-tier rate
// ceilings, grounded on the teacher's internal/infrastructure/providers
// budget guard: same hourly/daily/monthly rolling-window accounting,
// retargeted from CoinGecko/Moralis/Kraken providers onto the Binance and
// OKX venues this engine actually calls.
package quota

import (
	"fmt"
	"sync"
	"time"
)

// Guard enforces per-venue call budgets across hourly/daily/monthly windows.
type Guard struct {
	venues map[string]*VenueBudget
	mu     sync.RWMutex
}

type VenueBudget struct {
	Venue            string
	MonthlyLimit     int
	MonthlyUsed      int
	DailyLimit       int
	DailyUsed        int
	HourlyLimit      int
	HourlyUsed       int
	MonthlyResetTime time.Time
	DailyResetTime   time.Time
	HourlyResetTime  time.Time
}

type BudgetStatus struct {
	Venue              string
	MonthlyUtilization float64
	DailyUtilization   float64
	HourlyUtilization  float64
	RemainingCalls     int
	NextReset          time.Time
	Status             string // "active", "warning", "limit_reached"
}

func NewGuard() *Guard {
	return &Guard{venues: make(map[string]*VenueBudget)}
}

func (g *Guard) InitializeVenue(venue string, monthlyLimit, dailyLimit, hourlyLimit int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	g.venues[venue] = &VenueBudget{
		Venue:            venue,
		MonthlyLimit:     monthlyLimit,
		DailyLimit:       dailyLimit,
		HourlyLimit:      hourlyLimit,
		MonthlyResetTime: nextMonthReset(now),
		DailyResetTime:   nextDayReset(now),
		HourlyResetTime:  nextHourReset(now),
	}
}

// CheckAndConsume reserves calls against venue's remaining budget, failing
// closed if any window would be exceeded.
func (g *Guard) CheckAndConsume(venue string, calls int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.venues[venue]
	if !ok {
		return nil // unconfigured venues are unmetered
	}
	g.resetExpiredWindows(b)

	if b.MonthlyUsed+calls > b.MonthlyLimit {
		return fmt.Errorf("quota: monthly budget exceeded for %s: %d/%d calls", venue, b.MonthlyUsed, b.MonthlyLimit)
	}
	if b.DailyUsed+calls > b.DailyLimit {
		return fmt.Errorf("quota: daily budget exceeded for %s: %d/%d calls", venue, b.DailyUsed, b.DailyLimit)
	}
	if b.HourlyUsed+calls > b.HourlyLimit {
		return fmt.Errorf("quota: hourly budget exceeded for %s: %d/%d calls", venue, b.HourlyUsed, b.HourlyLimit)
	}

	b.MonthlyUsed += calls
	b.DailyUsed += calls
	b.HourlyUsed += calls
	return nil
}

func (g *Guard) Status(venue string) *BudgetStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()

	b, ok := g.venues[venue]
	if !ok {
		return nil
	}

	monthlyUtil := float64(b.MonthlyUsed) / float64(b.MonthlyLimit) * 100
	dailyUtil := float64(b.DailyUsed) / float64(b.DailyLimit) * 100
	hourlyUtil := float64(b.HourlyUsed) / float64(b.HourlyLimit) * 100

	status := "active"
	worst := maxOf(monthlyUtil, dailyUtil, hourlyUtil)
	if worst >= 100 {
		status = "limit_reached"
	} else if worst >= 80 {
		status = "warning"
	}

	remaining := minOf(b.MonthlyLimit-b.MonthlyUsed, b.DailyLimit-b.DailyUsed, b.HourlyLimit-b.HourlyUsed)
	nextReset := b.HourlyResetTime
	if b.DailyResetTime.Before(nextReset) {
		nextReset = b.DailyResetTime
	}

	return &BudgetStatus{
		Venue:              venue,
		MonthlyUtilization: monthlyUtil,
		DailyUtilization:   dailyUtil,
		HourlyUtilization:  hourlyUtil,
		RemainingCalls:     remaining,
		NextReset:          nextReset,
		Status:             status,
	}
}

func (g *Guard) resetExpiredWindows(b *VenueBudget) {
	now := time.Now()
	if now.After(b.HourlyResetTime) {
		b.HourlyUsed = 0
		b.HourlyResetTime = nextHourReset(now)
	}
	if now.After(b.DailyResetTime) {
		b.DailyUsed = 0
		b.DailyResetTime = nextDayReset(now)
	}
	if now.After(b.MonthlyResetTime) {
		b.MonthlyUsed = 0
		b.MonthlyResetTime = nextMonthReset(now)
	}
}

func nextHourReset(t time.Time) time.Time { return t.Truncate(time.Hour).Add(time.Hour) }

func nextDayReset(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}

func nextMonthReset(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}

func maxOf(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func minOf(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// DefaultGuard builds a Guard pre-configured with conservative free-tier
// ceilings for the venues this engine composes against.
func DefaultGuard() *Guard {
	g := NewGuard()
	g.InitializeVenue("binance", 1_000_000, 20_000, 2_000)
	g.InitializeVenue("okx", 500_000, 10_000, 1_000)
	return g
}
