package circuit

import (
	"errors"
	"testing"
)

func TestBreakerTripsAfterConsecutiveFailures(t *testing.T) {
	b := New("test")
	failing := func() (any, error) { return nil, errors.New("boom") }

	for i := 0; i < 3; i++ {
		if _, err := b.Execute(failing); err == nil {
			t.Fatal("expected failing call to return error")
		}
	}
	if _, err := b.Execute(func() (any, error) { return "ok", nil }); err == nil {
		t.Fatal("expected breaker to be open and reject the call")
	}
}

func TestManagerPerVenueIsolation(t *testing.T) {
	m := NewManager()
	a := m.For("binance")
	b := m.For("okx")
	if a == b {
		t.Fatal("expected distinct breakers per venue")
	}
	if m.For("binance") != a {
		t.Fatal("expected the same breaker instance on repeat lookup")
	}
}
