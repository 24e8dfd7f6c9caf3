package client

import (
	"testing"

	"github.com/multifolks/storefront/core/cart"
	"github.com/multifolks/storefront/core/lens"
	"github.com/multifolks/storefront/core/pricing"
)

func TestViewAssemblesLinesAndSummary(t *testing.T) {
	price := 29.0
	items := []cart.Item{{
		CartID:    42,
		ProductID: "p-aviator",
		Quantity:  2,
		Product: cart.Product{
			Name:       "Aviator",
			Brand:      "Multifolks",
			FrameColor: "Tortoise",
			Size:       "medium",
			ListPrice:  pricing.Money(120),
		},
		Lens: &lens.Lens{
			MainCategory: "Standard Progressive",
			SubCategory:  "1.67 Blue Block",
		},
		LensPackage:      "1.67",
		LensCategory:     "blue",
		LensPackagePrice: &price,
	}}

	p := cart.Summarize(items, nil, "standard")
	v := buildView(&p, lens.NewOverrides(), nil, nil)

	if len(v.Lines) != 1 {
		t.Fatalf("got %d lines", len(v.Lines))
	}
	line := v.Lines[0]

	if line.Size != "M" {
		t.Fatalf("got size %q, expected M", line.Size)
	}
	if line.Color != "Tortoise" {
		t.Fatalf("got color %q", line.Color)
	}
	if line.LensType != "Standard Progressive-Blue Protect" {
		t.Fatalf("got lens type %q", line.LensType)
	}
	if line.LensIndex != "1.67 Blue Protect High Index" {
		t.Fatalf("got lens index %q", line.LensIndex)
	}
	if line.LensPrice != 29 {
		t.Fatalf("got lens price %.2f", line.LensPrice)
	}
	// (120 + 29) * 2
	if line.Total != 298 {
		t.Fatalf("got line total %.2f, expected 298", line.Total)
	}
	if line.PrescriptionAction != ActionAddPrescription {
		t.Fatalf("got action %q", line.PrescriptionAction)
	}

	if v.Summary.Subtotal != 298 {
		t.Fatalf("got subtotal %.2f", v.Summary.Subtotal)
	}
	if v.Summary.ShippingCost != 0 {
		t.Fatalf("got shipping %.2f, expected free above the threshold", v.Summary.ShippingCost)
	}
	if got := v.Summary.Subtotal - v.Summary.DiscountAmount + v.Summary.ShippingCost; v.Summary.TotalPayable != got {
		t.Fatalf("summary breaks the total identity: %.2f != %.2f", v.Summary.TotalPayable, got)
	}
}

func TestViewAppliesDisplayOverridesWithoutRepricing(t *testing.T) {
	items := []cart.Item{{
		CartID:   7,
		Quantity: 1,
		Product:  cart.Product{Name: "Round", ListPrice: pricing.Money(90)},
		Lens: &lens.Lens{
			MainCategory: "Progressive",
			SubCategory:  "1.61 Clear",
		},
	}}
	p := cart.Summarize(items, nil, "standard")

	price := 49.0
	overrides := lens.NewOverrides()
	overrides.Set(7, lens.Override{
		LensCategory:     "photo",
		LensPackage:      "Photochromic Elite",
		LensPackagePrice: &price,
	})

	v := buildView(&p, overrides, nil, nil)
	line := v.Lines[0]

	if line.LensType != "Progressive-Photochromic" {
		t.Fatalf("got lens type %q, expected the override to win", line.LensType)
	}
	// The pending selection must not change any price.
	if line.LensPrice != 0 {
		t.Fatalf("got lens price %.2f, expected the persisted 0", line.LensPrice)
	}
	if line.Total != 90 {
		t.Fatalf("got total %.2f, expected the persisted 90", line.Total)
	}
}

func TestViewPrescriptionAffordance(t *testing.T) {
	items := []cart.Item{
		{CartID: 1, Quantity: 1, Product: cart.Product{Name: "A", ListPrice: pricing.Money(50)}},
		{CartID: 2, Quantity: 1, Product: cart.Product{Name: "B", ListPrice: pricing.Money(60)}},
	}
	p := cart.Summarize(items, nil, "standard")

	v := buildView(&p, lens.NewOverrides(), map[int64]bool{2: true}, nil)

	if v.Lines[0].PrescriptionAction != ActionAddPrescription {
		t.Fatalf("got %q for the unassociated line", v.Lines[0].PrescriptionAction)
	}
	if v.Lines[1].PrescriptionAction != ActionViewPrescription {
		t.Fatalf("got %q for the associated line", v.Lines[1].PrescriptionAction)
	}
}

func TestNormalizeSize(t *testing.T) {
	cases := map[string]string{
		"small":   "S",
		"Medium":  "M",
		"LARGE":   "L",
		" wide ":  "L",
		"narrow":  "S",
		"regular": "M",
		"54-18":   "54-18",
		"":        "",
	}
	for in, want := range cases {
		if got := normalizeSize(in); got != want {
			t.Errorf("normalizeSize(%q) = %q, expected %q", in, got, want)
		}
	}
}
