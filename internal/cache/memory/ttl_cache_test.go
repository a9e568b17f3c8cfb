package memory

import (
	"reflect"
	"testing"
	"time"

	"github.com/alphadeck/papertrade/internal/domain"
)

func TestGetWithinTTLReturnsValueUnchanged(t *testing.T) {
	c := New[domain.Quote](30 * time.Second)
	q := domain.Quote{Instrument: "NSE:RELIANCE", LastPrice: 2840.5}

	c.Set("NSE:RELIANCE", q)

	got, ok := c.Get("NSE:RELIANCE")
	if !ok {
		t.Fatal("expected cache hit immediately after Set")
	}
	if !reflect.DeepEqual(got, q) {
		t.Errorf("got %+v, want %+v", got, q)
	}
}

func TestGetAfterTTLReportsMiss(t *testing.T) {
	c := New[domain.Quote](30 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("NSE:TCS", domain.Quote{Instrument: "NSE:TCS", LastPrice: 4100})

	c.now = func() time.Time { return base.Add(30 * time.Second) }
	if _, ok := c.Get("NSE:TCS"); ok {
		t.Error("expected miss once entry age reaches TTL")
	}

	// Lazy expiry: the stale entry stays until overwritten.
	if c.Len() != 1 {
		t.Errorf("stale entry was evicted, Len = %d", c.Len())
	}
}

func TestSetOverwritesStaleEntry(t *testing.T) {
	c := New[domain.Quote](30 * time.Second)
	base := time.Now()
	c.now = func() time.Time { return base }

	c.Set("NSE:INFY", domain.Quote{Instrument: "NSE:INFY", LastPrice: 1500})

	c.now = func() time.Time { return base.Add(time.Minute) }
	c.Set("NSE:INFY", domain.Quote{Instrument: "NSE:INFY", LastPrice: 1510})

	got, ok := c.Get("NSE:INFY")
	if !ok {
		t.Fatal("expected hit after overwrite")
	}
	if got.LastPrice != 1510 {
		t.Errorf("LastPrice = %v, want 1510", got.LastPrice)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}

func TestGetMissingKey(t *testing.T) {
	c := New[int](time.Second)
	if _, ok := c.Get("absent"); ok {
		t.Error("expected miss for absent key")
	}
}

func TestBatchCacheKeyIsOrderIndependent(t *testing.T) {
	a := domain.BatchCacheKey([]domain.InstrumentKey{"NSE:SBIN", "NSE:TCS"})
	b := domain.BatchCacheKey([]domain.InstrumentKey{"NSE:TCS", "NSE:SBIN"})
	if a != b {
		t.Errorf("batch keys differ: %q vs %q", a, b)
	}
}
