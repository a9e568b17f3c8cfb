package catalog

import (
	"strings"
	"testing"
)

func mustLoad(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func TestLoadParsesEmbeddedList(t *testing.T) {
	c := mustLoad(t)
	if c.Len() == 0 {
		t.Fatal("catalog is empty")
	}

	in, ok := c.Lookup("NSE:INFY")
	if !ok {
		t.Fatal("NSE:INFY not found")
	}
	if in.Token != 408065 {
		t.Errorf("token = %d, want 408065", in.Token)
	}
	if in.Name != "Infosys Limited" {
		t.Errorf("name = %q", in.Name)
	}
}

func TestSearchRanksSymbolBeforeName(t *testing.T) {
	c := mustLoad(t)

	// "tata" matches TATAMOTORS etc. by symbol and TCS by name.
	results := c.Search("tata", 0)
	if len(results) == 0 {
		t.Fatal("no results for tata")
	}

	sawNameMatch := false
	for _, in := range results {
		isSymbolMatch := strings.Contains(strings.ToUpper(in.Symbol), "TATA")
		if !isSymbolMatch {
			sawNameMatch = true
		} else if sawNameMatch {
			t.Fatalf("symbol match %s ranked after a name match", in.Symbol)
		}
	}
	if !sawNameMatch {
		t.Error("expected at least one name-only match for tata")
	}
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	c := mustLoad(t)

	if got := c.Search("a", 3); len(got) != 3 {
		t.Errorf("limited search returned %d results, want 3", len(got))
	}
	if got := c.Search("   ", 10); got != nil {
		t.Errorf("blank query returned %d results, want none", len(got))
	}
	if got := c.Search("zzzznotreal", 10); len(got) != 0 {
		t.Errorf("nonsense query returned %d results", len(got))
	}
}
