package random

import (
	"strings"
	"testing"
)

func TestID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := ID("pi", 24)
		if !strings.HasPrefix(id, "pi_") || len(id) != 27 {
			t.Fatalf("unexpected id %q", id)
		}
		if strings.Trim(id[3:], charset) != "" {
			t.Fatalf("id %q uses characters outside the charset", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
