package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/clickmaster4285/POS-Clothing-sub000/internal/domain"
)

// Catalog is an in-memory variant catalog keyed by SKU.
type Catalog struct {
	mu       sync.RWMutex
	variants map[string]domain.Variant
}

func NewCatalog(variants ...domain.Variant) *Catalog {
	c := &Catalog{variants: make(map[string]domain.Variant, len(variants))}
	for _, v := range variants {
		c.variants[v.SKU] = v
	}
	return c
}

// SeededCatalog returns a catalog pre-loaded with the demo clothing
// assortment used when no database is configured.
func SeededCatalog() *Catalog {
	return NewCatalog(
		domain.Variant{ProductID: "prod-tshirt-basic", VariantID: "var-tsh-blk-s", SKU: "TSH-001-BLK-S", Name: "Basic Tee Black S", Category: "tops", UnitPriceCents: 2999, Active: true},
		domain.Variant{ProductID: "prod-tshirt-basic", VariantID: "var-tsh-blk-m", SKU: "TSH-001-BLK-M", Name: "Basic Tee Black M", Category: "tops", UnitPriceCents: 2999, Active: true},
		domain.Variant{ProductID: "prod-tshirt-basic", VariantID: "var-tsh-wht-m", SKU: "TSH-001-WHT-M", Name: "Basic Tee White M", Category: "tops", UnitPriceCents: 2999, Active: true},
		domain.Variant{ProductID: "prod-jeans-slim", VariantID: "var-jns-ind-32", SKU: "JNS-014-IND-32", Name: "Slim Jeans Indigo 32", Category: "bottoms", UnitPriceCents: 7999, Active: true},
		domain.Variant{ProductID: "prod-jeans-slim", VariantID: "var-jns-ind-34", SKU: "JNS-014-IND-34", Name: "Slim Jeans Indigo 34", Category: "bottoms", UnitPriceCents: 7999, Active: true},
		domain.Variant{ProductID: "prod-hoodie-zip", VariantID: "var-hod-gry-l", SKU: "HOD-022-GRY-L", Name: "Zip Hoodie Grey L", Category: "outerwear", UnitPriceCents: 5499, Active: true},
		domain.Variant{ProductID: "prod-socks-crew", VariantID: "var-sck-wht-os", SKU: "SCK-090-WHT-OS", Name: "Crew Socks White", Category: "accessories", UnitPriceCents: 899, Active: true},
		domain.Variant{ProductID: "prod-cap-logo", VariantID: "var-cap-nvy-os", SKU: "CAP-031-NVY-OS", Name: "Logo Cap Navy", Category: "accessories", UnitPriceCents: 1999, Active: true},
		domain.Variant{ProductID: "prod-tshirt-retired", VariantID: "var-tsh-red-s", SKU: "TSH-099-RED-S", Name: "Retired Tee Red S", Category: "tops", UnitPriceCents: 2499, Active: false},
	)
}

func (c *Catalog) GetVariant(_ context.Context, sku string) (*domain.Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.variants[sku]
	if !ok {
		return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, sku)
	}
	found := v
	return &found, nil
}

func (c *Catalog) GetVariants(_ context.Context, skus []string) (map[string]domain.Variant, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]domain.Variant, len(skus))
	for _, sku := range skus {
		if v, ok := c.variants[sku]; ok {
			result[sku] = v
		}
	}
	return result, nil
}

// Put inserts or replaces a variant. Used by tests and by the dev seed path.
func (c *Catalog) Put(v domain.Variant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.variants[v.SKU] = v
}
