package model

import (
	"testing"
	"time"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want Status
	}{
		{"Closed", StatusSold},
		{"Sold", StatusSold},
		{"Active Under Contract", StatusUnderContract},
		{"Contingent", StatusUnderContract},
		{"under_contract", StatusUnderContract},
		{"Coming Soon", StatusComingSoon},
		{"For Sale", StatusActive},
		{"Withdrawn", StatusOffMarket},
		{"Pending", StatusPending},
		{"mystery", StatusUnknown},
	}
	for _, tt := range tests {
		if got := ParseStatus(tt.raw); got != tt.want {
			t.Errorf("ParseStatus(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}

func TestSamePropertyByAddressOrReference(t *testing.T) {
	a := Listing{ID: "1", Provider: "bright_mls", ProviderID: "M1", Address: "101 Sample Rd.", PostalCode: "19401"}
	b := Listing{ID: "2", Provider: "attom", ProviderID: "A9", Address: " 101  sample rd ", PostalCode: "19401"}
	if !a.SameProperty(b) {
		t.Fatalf("same address should match: %q vs %q", a.PropertyKeys(), b.PropertyKeys())
	}

	c := Listing{ID: "3", Provider: "rpr", ProviderID: "X1"}
	d := Listing{ID: "4", Provider: "RPR", ProviderID: "x1", Address: "9 Elm St"}
	if !c.SameProperty(d) {
		t.Fatalf("same provider ref should match even when only one has an address: %q vs %q", c.PropertyKeys(), d.PropertyKeys())
	}

	e := Listing{ID: "5"}
	if keys := e.PropertyKeys(); len(keys) != 1 || keys[0] != "id:5" {
		t.Fatalf("bare listing keys = %q", keys)
	}
	if e.SameProperty(Listing{ID: "6"}) || a.SameProperty(c) {
		t.Fatal("unrelated records should not match")
	}
}

func TestPriceAndRecencyFallbacks(t *testing.T) {
	sold := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	listed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Listing{ListPriceCents: 100, UpdatedAt: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)}
	if l.PriceCents() != 100 || !l.Recency().Equal(l.UpdatedAt) {
		t.Fatalf("fallbacks wrong: price=%d recency=%v", l.PriceCents(), l.Recency())
	}
	l.ListedAt = &listed
	if !l.Recency().Equal(listed) {
		t.Fatalf("recency should prefer listing date")
	}
	l.SalePriceCents = 90
	l.SaleDate = &sold
	if l.PriceCents() != 90 || !l.Recency().Equal(sold) {
		t.Fatalf("sale fields should win: price=%d recency=%v", l.PriceCents(), l.Recency())
	}
}

func TestDefectNames(t *testing.T) {
	d := DefectFlags{Structural: true, Mechanical: true}
	names := d.Names()
	if len(names) != 2 || names[0] != "mechanical" || names[1] != "structural" {
		t.Fatalf("names = %v", names)
	}
	if !d.Any() || (DefectFlags{}).Any() {
		t.Fatalf("Any() wrong")
	}
}

func TestWindowKeyStable(t *testing.T) {
	w := Window{RadiusMiles: 1, DayRange: 180}
	if w.Key() != "r1.0000-d180" {
		t.Fatalf("key = %q", w.Key())
	}
}
