package internaldefs

import (
	"strings"
	"testing"
)

func TestDefinitionsAreUnique(t *testing.T) {
	seen := map[string]bool{AuditDroppedName: true}
	ids := map[uint16]bool{}
	for _, def := range CounterDefs {
		if seen[def.Name] {
			t.Fatalf("duplicate metric name %q", def.Name)
		}
		if ids[uint16(def.ID)] {
			t.Fatalf("duplicate metric id %d", def.ID)
		}
		if !strings.HasPrefix(def.Name, "authcenter_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("counter %q breaks naming convention", def.Name)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
	for _, def := range HistogramDefs {
		if seen[def.Name] || ids[uint16(def.ID)] {
			t.Fatalf("histogram %q collides with another definition", def.Name)
		}
		if !strings.HasSuffix(def.Name, "_seconds") {
			t.Fatalf("histogram %q must be in seconds", def.Name)
		}
		seen[def.Name] = true
		ids[uint16(def.ID)] = true
	}
	if len(HistogramBounds) != 8 || len(HistogramBoundSuffix) != 8 {
		t.Fatal("bucket tables must have eight entries")
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
