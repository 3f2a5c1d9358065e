package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestApplyRetailerPatchOnlyTouchesSetFields(t *testing.T) {
	orig := RetailerRecord{URL: "https://a", Retailer: "Amazon", CurrentPriceCents: Int64(100)}

	got := ApplyRetailerPatch(orig, RetailerPatch{CurrentPriceCents: Int64(90)})
	if *got.CurrentPriceCents != 90 || got.Retailer != "Amazon" || got.URL != "https://a" {
		t.Fatalf("unexpected patch result: %+v", got)
	}
	if *orig.CurrentPriceCents != 100 {
		t.Errorf("patch must not alias the caller's price pointer")
	}

	got = ApplyRetailerPatch(orig, RetailerPatch{Retailer: String("Amazon US")})
	if got.Retailer != "Amazon US" || *got.CurrentPriceCents != 100 {
		t.Fatalf("unexpected patch result: %+v", got)
	}
}

func TestApplyProductPatch(t *testing.T) {
	p := Product{ID: "1", Name: "Widget", TargetPriceCents: 5000}

	got := ApplyProductPatch(p, ProductPatch{Triggered: Bool(true)})
	if !got.Triggered || got.TargetPriceCents != 5000 || got.Name != "Widget" {
		t.Fatalf("unexpected patch result: %+v", got)
	}

	got = ApplyProductPatch(p, ProductPatch{TargetPriceCents: Int64(4000), Name: String("Widget 2")})
	if got.Triggered || got.TargetPriceCents != 4000 || got.Name != "Widget 2" || got.ID != "1" {
		t.Fatalf("unexpected patch result: %+v", got)
	}
}

func TestProductHelpers(t *testing.T) {
	p := Product{
		Name: "AirPods Pro",
		Retailers: []RetailerRecord{
			{URL: "a", CurrentPriceCents: Int64(300)},
			{URL: "b"},
			{URL: "c", CurrentPriceCents: Int64(200)},
			{URL: "d", CurrentPriceCents: Int64(200)},
		},
	}

	if !p.NameMatches("airpods PRO ") {
		t.Error("NameMatches should ignore case and surrounding space")
	}
	if !p.Retailers[0].HasPrice() || p.Retailers[1].HasPrice() {
		t.Error("HasPrice should report whether a price was read")
	}
	if p.Retailer("b") == nil || p.Retailer("zz") != nil {
		t.Error("Retailer lookup by URL failed")
	}
	if !p.RemoveRetailer("b") || p.RemoveRetailer("b") {
		t.Error("RemoveRetailer should remove exactly once")
	}
	if len(p.Retailers) != 3 {
		t.Errorf("len(Retailers) = %d, want 3", len(p.Retailers))
	}
}

func TestProductJSONShape(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := Product{
		ID:               "abc",
		Name:             "Widget",
		TargetPriceCents: 5000,
		CreatedAt:        created,
		Retailers:        []RetailerRecord{{URL: "https://www.amazon.com/dp/1", Retailer: "Amazon"}},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{
		`"targetPriceCents":5000`,
		`"createdAt":"2026-01-02T03:04:05Z"`,
		`"triggered":false`,
		`"currentPriceCents":null`,
		`"lastChecked":null`,
	} {
		if !strings.Contains(s, want) {
			t.Errorf("JSON %s missing %s", s, want)
		}
	}
}
