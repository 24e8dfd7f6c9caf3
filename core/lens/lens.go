// Package lens resolves display lens attributes from cart lines whose
// lens data may have been written by different upstream flows: the
// original add-to-cart shape (nested lens object), the newer
// select-lens API (flattened item fields) or a not-yet-persisted
// session override. Each attribute is resolved through an ordered rule
// cascade; the order is load-bearing for historical cart lines that
// carry several shapes at once.
package lens

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/multifolks/storefront/core/pricing"
)

// Lens is the legacy nested shape embedded in a cart line.
type Lens struct {
	MainCategory string        `json:"main_category,omitempty"`
	SubCategory  string        `json:"sub_category,omitempty"`
	LensCategory string        `json:"lens_category,omitempty"`
	LensPackage  string        `json:"lens_package,omitempty"`
	Title        string        `json:"title,omitempty"`
	Name         string        `json:"name,omitempty"`
	SellingPrice pricing.Money `json:"selling_price,omitempty"`
	Coating      *Coating      `json:"coating,omitempty"`
	Tint         *Tint         `json:"tint,omitempty"`
}

type Coating struct {
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

type Tint struct {
	Type  string        `json:"type"`
	Color string        `json:"color,omitempty"`
	Price pricing.Money `json:"price"`
}

// Override is a session-scoped lens selection made during checkout but
// not persisted yet. It wins over every stored shape.
type Override struct {
	MainCategory     string   `json:"mainCategory,omitempty"`
	LensCategory     string   `json:"lensCategory,omitempty"`
	LensPackage      string   `json:"lensPackage,omitempty"`
	LensPackagePrice *float64 `json:"lensPackagePrice,omitempty"`
	UpdatedAt        int64    `json:"updatedAt,omitempty"`
}

// Source gathers every place a cart line may carry lens data.
type Source struct {
	Override *Override
	Lens     *Lens

	// Flattened item-level fields written by the select-lens API.
	LensCategory     string
	LensPackage      string
	LensPackagePrice *float64
}

const (
	DefaultIndex = "1.61"
	DefaultTier  = "Progressive"
)

var (
	titleIndexPattern = regexp.MustCompile(`(1\.\d+)`)
	subIndexPattern   = regexp.MustCompile(`(\d\.\d+)`)
)

// rule tries one data source for an attribute. The bool reports whether
// the source matched; rules are tried in declaration order.
type rule func(s Source) (string, bool)

func first(s Source, rules []rule) (string, bool) {
	for _, r := range rules {
		if v, ok := r(s); ok {
			return v, true
		}
	}
	return "", false
}

var indexRules = []rule{
	func(s Source) (string, bool) {
		if s.Override != nil && s.Override.LensPackage != "" {
			return s.Override.LensPackage, true
		}
		return "", false
	},
	func(s Source) (string, bool) {
		return s.LensPackage, s.LensPackage != ""
	},
	func(s Source) (string, bool) {
		if s.Lens != nil && s.Lens.LensPackage != "" {
			return s.Lens.LensPackage, true
		}
		return "", false
	},
	func(s Source) (string, bool) {
		if s.Lens == nil {
			return "", false
		}
		title := s.Lens.Title
		if title == "" {
			title = s.Lens.Name
		}
		if m := titleIndexPattern.FindString(title); m != "" {
			return m, true
		}
		return "", false
	},
	func(s Source) (string, bool) {
		if s.Lens == nil {
			return "", false
		}
		if m := subIndexPattern.FindString(s.Lens.SubCategory); m != "" {
			return m, true
		}
		return "", false
	},
}

// Index resolves the lens index number, e.g. "1.67".
func Index(s Source) string {
	if v, ok := first(s, indexRules); ok {
		return v
	}
	return DefaultIndex
}

var categoryRules = []rule{
	func(s Source) (string, bool) {
		if s.Override != nil && s.Override.LensCategory != "" {
			return s.Override.LensCategory, true
		}
		return "", false
	},
	func(s Source) (string, bool) {
		return s.LensCategory, s.LensCategory != ""
	},
	func(s Source) (string, bool) {
		if s.Lens != nil && s.Lens.LensCategory != "" {
			return s.Lens.LensCategory, true
		}
		return "", false
	},
	func(s Source) (string, bool) {
		if s.Lens == nil {
			return "", false
		}
		sub := strings.ToLower(s.Lens.SubCategory)
		for _, kw := range []string{"blue", "clear", "photo", "sun"} {
			if strings.Contains(sub, kw) {
				return kw, true
			}
		}
		return "", false
	},
}

// Category resolves the raw category token ("blue", "photo", ...).
// Empty when nothing matches: clear lenses frequently carry no
// category at all.
func Category(s Source) string {
	v, _ := first(s, categoryRules)
	return strings.ToLower(v)
}

// CategoryLabel normalizes a raw category token to its display name.
func CategoryLabel(token string) string {
	switch strings.ToLower(token) {
	case "blue":
		return "Blue Protect"
	case "clear":
		return "Clear"
	case "photo", "photochromic":
		return "Photochromic"
	case "sun", "sunglasses":
		return "Sunglasses"
	}
	return ""
}

// Tier extracts the prescription tier from a main category string.
// Substring priority matters: "premium progressive" must not fall
// through to the generic "progressive" match.
func Tier(mainCategory string) string {
	lower := strings.ToLower(mainCategory)
	switch {
	case strings.Contains(lower, "premium progressive"):
		return "Premium Progressive"
	case strings.Contains(lower, "standard progressive"):
		return "Standard Progressive"
	case strings.Contains(lower, "bifocal"):
		return "Bifocal"
	case strings.Contains(lower, "progressive"):
		return "Progressive"
	case mainCategory != "":
		return mainCategory
	}
	return DefaultTier
}

func mainCategory(s Source) string {
	if s.Override != nil && s.Override.MainCategory != "" {
		return s.Override.MainCategory
	}
	if s.Lens != nil {
		return s.Lens.MainCategory
	}
	return ""
}

// TypeDisplay composes the lens type cell, "{tier}-{category}" when a
// category resolves and the tier alone otherwise.
func TypeDisplay(s Source) string {
	tier := Tier(mainCategory(s))
	if label := CategoryLabel(Category(s)); label != "" {
		return tier + "-" + label
	}
	return tier
}

// IndexDisplay composes the full lens index name shown next to its
// price, e.g. "1.61 Blue Protect High Index".
func IndexDisplay(s Source) string {
	idx := Index(s)
	switch Category(s) {
	case "blue":
		return fmt.Sprintf("%s Blue Protect High Index", idx)
	case "photo", "photochromic":
		return fmt.Sprintf("%s Photochromic High Index", idx)
	}
	return fmt.Sprintf("%s High Index", idx)
}

// PackagePrice resolves the lens selling price through the same
// cascade as the index.
func PackagePrice(s Source) float64 {
	if s.Override != nil && s.Override.LensPackagePrice != nil {
		return *s.Override.LensPackagePrice
	}
	if s.LensPackagePrice != nil {
		return *s.LensPackagePrice
	}
	if s.Lens != nil {
		return s.Lens.SellingPrice.Value()
	}
	return 0
}

// Extra is the coating-or-tint descriptor for a line. Tinted lines are
// sunglasses and never show a coating row.
type Extra struct {
	Label string
	Name  string
	Price float64
}

func CoatingOrTint(s Source) Extra {
	if s.Lens != nil && s.Lens.Tint != nil {
		t := s.Lens.Tint
		name := t.Type
		if t.Color != "" {
			name += "-" + t.Color
		}
		return Extra{Label: "Lens Tint", Name: name, Price: t.Price.Value()}
	}
	if s.Lens != nil && s.Lens.Coating != nil {
		return Extra{Label: "Lens Coating", Name: s.Lens.Coating.Name, Price: s.Lens.Coating.Price.Value()}
	}
	return Extra{Label: "Lens Coating", Name: "Standard Coating"}
}
