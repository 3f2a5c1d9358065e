package retailer

import "testing"

func TestDetect(t *testing.T) {
	reg := Default()

	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://www.amazon.com/dp/B0CHWRXH8B", "Amazon", true},
		{"https://www.bestbuy.com/site/airpods/6447382.p", "Best Buy", true},
		{"https://www.walmart.com/ip/123", "Walmart", true},
		{"https://www.costco.com/widget.product.100.html", "Costco", true},
		{"https://www.gamestop.com/consoles/item/123.html", "GameStop", true},
		{"https://www.microcenter.com/product/123/gpu", "Micro Center", true},
		{"https://www.target.com/p/widget/-/A-123", "Target", true},
		{"WWW.AMAZON.COM/dp/B0", "Amazon", true},
		{"https://www.ebay.com/itm/123", "", false},
		{"not a url", "", false},
	}

	for _, tt := range tests {
		d, ok := reg.Detect(tt.url)
		if ok != tt.ok {
			t.Errorf("Detect(%q) ok = %v, want %v", tt.url, ok, tt.ok)
			continue
		}
		if ok && d.Name != tt.want {
			t.Errorf("Detect(%q) = %q, want %q", tt.url, d.Name, tt.want)
		}
	}
}

func TestDetectUsesRegistrationOrder(t *testing.T) {
	first := Descriptor{Key: "first", Name: "First", Domain: "shop.com"}
	second := Descriptor{Key: "second", Name: "Second", Domain: "shop.com"}

	d, ok := NewRegistry(first, second).Detect("https://shop.com/x")
	if !ok || d.Key != "first" {
		t.Fatalf("Detect = %+v, %v; want first", d, ok)
	}
	d, ok = NewRegistry(second, first).Detect("https://shop.com/x")
	if !ok || d.Key != "second" {
		t.Fatalf("Detect = %+v, %v; want second", d, ok)
	}
}

func TestDefaultRegistryDescriptors(t *testing.T) {
	want := []string{"Amazon", "Best Buy", "Walmart", "Costco", "GameStop", "Micro Center", "Target"}
	got := Default().Names()
	if len(got) != len(want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	for _, d := range Default().Descriptors() {
		if len(d.PriceSelectors) == 0 || len(d.TitleSelectors) == 0 {
			t.Errorf("%s: descriptor must have price and title selectors", d.Key)
		}
	}
}
