package domain

import (
	"fmt"
	"sort"
	"strings"
)

// InstrumentKey identifies a tradable instrument as "EXCHANGE:SYMBOL",
// e.g. "NSE:RELIANCE". The exchange prefix is always uppercase and the
// symbol is never empty. It is used uniformly as the map key across the
// quote caches, the subscription registry, and client state.
type InstrumentKey string

// ParseInstrumentKey validates and normalizes a raw instrument key.
// The exchange segment is uppercased; the symbol is kept as provided.
func ParseInstrumentKey(raw string) (InstrumentKey, error) {
	s := strings.TrimSpace(raw)
	exch, sym, ok := strings.Cut(s, ":")
	if !ok || exch == "" || sym == "" {
		return "", fmt.Errorf("%w: instrument key %q must be EXCHANGE:SYMBOL", ErrValidation, raw)
	}
	return InstrumentKey(strings.ToUpper(exch) + ":" + strings.ToUpper(sym)), nil
}

// ParseInstrumentKeys validates a batch of raw keys, rejecting the whole
// batch on the first invalid entry so a malformed request has no side
// effects.
func ParseInstrumentKeys(raw []string) ([]InstrumentKey, error) {
	keys := make([]InstrumentKey, 0, len(raw))
	for _, r := range raw {
		k, err := ParseInstrumentKey(r)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Exchange returns the exchange segment of the key.
func (k InstrumentKey) Exchange() string {
	exch, _, _ := strings.Cut(string(k), ":")
	return exch
}

// Symbol returns the symbol segment of the key.
func (k InstrumentKey) Symbol() string {
	_, sym, _ := strings.Cut(string(k), ":")
	return sym
}

// BatchCacheKey derives an order-independent cache key for a batch lookup:
// the instrument keys sorted and comma-joined, so ["NSE:TCS","NSE:SBIN"]
// and ["NSE:SBIN","NSE:TCS"] share one cache entry.
func BatchCacheKey(keys []InstrumentKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
