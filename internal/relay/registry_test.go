package relay

import (
	"sort"
	"sync"
	"testing"

	"github.com/alphadeck/papertrade/internal/domain"
)

func sortedInstruments(r *Registry) []string {
	keys := r.Instruments()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	sort.Strings(out)
	return out
}

func TestSubscribeContributesToUnion(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS"})
	r.Subscribe("conn-b", []domain.InstrumentKey{"NSE:TCS", "NSE:INFY"})

	got := sortedInstruments(r)
	want := []string{"NSE:INFY", "NSE:TCS"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Instruments() = %v, want %v", got, want)
	}
}

func TestSubscribeIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS", "NSE:SBIN"})
	before := sortedInstruments(r)

	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS", "NSE:SBIN"})
	after := sortedInstruments(r)

	if len(before) != len(after) {
		t.Fatalf("union changed after identical resubscribe: %v vs %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("union changed after identical resubscribe: %v vs %v", before, after)
		}
	}
}

func TestResubscribeReplacesWholesale(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS", "NSE:SBIN"})
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:RELIANCE"})

	got := sortedInstruments(r)
	if len(got) != 1 || got[0] != "NSE:RELIANCE" {
		t.Errorf("Instruments() = %v, want [NSE:RELIANCE]", got)
	}
}

func TestUnsubscribeRemovesInterestImmediately(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS"})
	r.Subscribe("conn-b", []domain.InstrumentKey{"NSE:TCS", "NSE:INFY"})

	r.Unsubscribe("conn-b")

	got := sortedInstruments(r)
	if len(got) != 1 || got[0] != "NSE:TCS" {
		t.Errorf("Instruments() after disconnect = %v, want [NSE:TCS]", got)
	}

	r.Unsubscribe("conn-a")
	if len(r.Instruments()) != 0 {
		t.Error("union not empty after all connections left")
	}
	if r.ConnectionCount() != 0 {
		t.Errorf("ConnectionCount = %d, want 0", r.ConnectionCount())
	}
}

func TestConcurrentSubscribesAreNotLost(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	keys := []domain.InstrumentKey{"NSE:TCS", "NSE:INFY", "NSE:SBIN", "NSE:RELIANCE"}
	for i, k := range keys {
		wg.Add(1)
		go func(connID string, key domain.InstrumentKey) {
			defer wg.Done()
			r.Subscribe(connID, []domain.InstrumentKey{key})
		}(string(rune('a'+i)), k)
	}
	wg.Wait()

	if got := len(r.Instruments()); got != len(keys) {
		t.Errorf("union size = %d, want %d", got, len(keys))
	}
}

func TestInterestsReturnsIndependentCopy(t *testing.T) {
	r := NewRegistry()
	r.Subscribe("conn-a", []domain.InstrumentKey{"NSE:TCS"})

	snap := r.Interests()
	delete(snap["conn-a"], "NSE:TCS")

	if len(r.Instruments()) != 1 {
		t.Error("mutating the snapshot leaked into the registry")
	}
}
