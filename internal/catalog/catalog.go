// Package catalog provides the searchable instrument universe backing the
// search endpoint. The list ships embedded in the binary; the simulation
// only ever trades a curated subset of liquid instruments, so a static
// catalog avoids pulling the broker's full multi-megabyte instrument dump
// at startup.
package catalog

import (
	"bytes"
	"encoding/csv"
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/alphadeck/papertrade/internal/domain"
)

//go:embed instruments.csv
var instrumentsCSV []byte

// Instrument is one tradable entry in the catalog.
type Instrument struct {
	Token    uint32               `json:"instrument_token"`
	Key      domain.InstrumentKey `json:"instrument_key"`
	Exchange string               `json:"exchange"`
	Symbol   string               `json:"tradingsymbol"`
	Name     string               `json:"name"`
}

// Catalog holds the instrument universe in memory. It is immutable after
// Load, so lookups need no locking.
type Catalog struct {
	instruments []Instrument
}

// Load parses the embedded instrument list.
func Load() (*Catalog, error) {
	r := csv.NewReader(bytes.NewReader(instrumentsCSV))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("catalog: parse instruments: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("catalog: instrument list is empty")
	}

	instruments := make([]Instrument, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != 4 {
			return nil, fmt.Errorf("catalog: row %d: expected 4 fields, got %d", i+2, len(rec))
		}
		token, err := strconv.ParseUint(rec[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("catalog: row %d: bad token %q: %w", i+2, rec[0], err)
		}
		exchange, symbol := rec[1], rec[2]
		instruments = append(instruments, Instrument{
			Token:    uint32(token),
			Key:      domain.InstrumentKey(exchange + ":" + symbol),
			Exchange: exchange,
			Symbol:   symbol,
			Name:     rec[3],
		})
	}

	return &Catalog{instruments: instruments}, nil
}

// Len returns the number of instruments in the catalog.
func (c *Catalog) Len() int {
	return len(c.instruments)
}

// Search returns instruments whose symbol or name contains the query,
// case-insensitively. Symbol matches rank before name matches. At most
// limit results are returned; limit <= 0 means no cap.
func (c *Catalog) Search(query string, limit int) []Instrument {
	q := strings.ToUpper(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var bySymbol, byName []Instrument
	for _, in := range c.instruments {
		switch {
		case strings.Contains(strings.ToUpper(in.Symbol), q):
			bySymbol = append(bySymbol, in)
		case strings.Contains(strings.ToUpper(in.Name), q):
			byName = append(byName, in)
		}
	}

	results := append(bySymbol, byName...)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Lookup returns the catalog entry for an instrument key, if present.
func (c *Catalog) Lookup(key domain.InstrumentKey) (Instrument, bool) {
	for _, in := range c.instruments {
		if in.Key == key {
			return in, true
		}
	}
	return Instrument{}, false
}
