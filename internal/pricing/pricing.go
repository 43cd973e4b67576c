// Package pricing assembles the sellable tier catalog from environment
// configuration. The catalog is read-only after boot; webhooks carry product
// IDs that map back to tiers through it.
package pricing

import (
	"fmt"
	"strconv"
	"strings"

	"orgkit/internal/platform/config"
	dErrors "orgkit/pkg/domain-errors"
	liststrings "orgkit/pkg/platform/strings"
)

// Tier is one sellable plan.
type Tier struct {
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	PriceID     string   `json:"price_id"`
	ProductID   string   `json:"product_id"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Popular     bool     `json:"popular"`
}

// Catalog holds the assembled tiers and features shared by every tier.
type Catalog struct {
	tiers          []Tier
	commonFeatures []string
}

// NewCatalog parses the raw tier vectors. Every vector is comma separated and
// positional: index i of each vector describes tier i. Features use a pipe
// separator inside each tier's slot. Vector length mismatches are a boot
// error, not something to paper over at request time.
func NewCatalog(cfg config.Pricing) (*Catalog, error) {
	names := liststrings.SplitList(cfg.Names, ",")
	if len(names) == 0 {
		return &Catalog{}, nil
	}

	prices := liststrings.SplitList(cfg.Prices, ",")
	priceIDs := liststrings.SplitList(cfg.PriceIDs, ",")
	productIDs := liststrings.SplitList(cfg.ProductIDs, ",")
	descriptions := liststrings.SplitList(cfg.Descriptions, ",")
	featureSets := liststrings.SplitList(cfg.Features, ",")

	for _, v := range [][]string{prices, priceIDs, productIDs, descriptions, featureSets} {
		if len(v) != len(names) {
			return nil, dErrors.New(dErrors.CodeBadRequest,
				fmt.Sprintf("pricing vectors disagree: %d names but %d values", len(names), len(v)))
		}
	}

	tiers := make([]Tier, len(names))
	for i, name := range names {
		price, err := strconv.ParseFloat(prices[i], 64)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeBadRequest,
				fmt.Sprintf("invalid price for tier %q", name))
		}
		tiers[i] = Tier{
			Name:        name,
			Price:       price,
			PriceID:     priceIDs[i],
			ProductID:   productIDs[i],
			Description: descriptions[i],
			Features:    liststrings.SplitList(featureSets[i], "|"),
			Popular:     liststrings.EqualFold(name, cfg.PopularTier),
		}
	}

	return &Catalog{
		tiers:          tiers,
		commonFeatures: liststrings.SplitList(cfg.CommonFeatures, ","),
	}, nil
}

// AllTiers returns the tiers in configured order.
func (c *Catalog) AllTiers() []Tier {
	return append([]Tier(nil), c.tiers...)
}

// TierByProductID finds the tier selling the given product.
func (c *Catalog) TierByProductID(productID string) (Tier, bool) {
	for _, t := range c.tiers {
		if t.ProductID == productID {
			return t, true
		}
	}
	return Tier{}, false
}

// CommonFeatures returns features shared by every tier.
func (c *Catalog) CommonFeatures() []string {
	return append([]string(nil), c.commonFeatures...)
}

// FormatPrice renders a tier price for display: whole dollars without
// decimals, fractional prices with two.
func FormatPrice(price float64) string {
	if price == float64(int64(price)) {
		return fmt.Sprintf("$%d", int64(price))
	}
	s := strconv.FormatFloat(price, 'f', 2, 64)
	return "$" + strings.TrimSuffix(s, ".00")
}
