package sync

import (
	"strconv"
	"time"
)

const defaultUnit = "pcs"

// ProductAdapter адаптер товаров
type ProductAdapter struct{}

func (ProductAdapter) Kind() EntityType { return EntityProduct }

func (a ProductAdapter) FromMap(data map[string]any) (Entity, error) {
	p := &Product{Unit: defaultUnit, IsActive: true}
	if err := a.decode(p, attrs(data)); err != nil {
		return nil, err
	}
	return p, nil
}

func (a ProductAdapter) ApplyMap(existing Entity, data map[string]any) error {
	p, err := cast[*Product](existing)
	if err != nil {
		return err
	}
	// изменения применяются только при успешном разборе всех атрибутов
	next := *p
	if err := a.decode(&next, attrs(data)); err != nil {
		return err
	}
	*p = next
	return nil
}

func (ProductAdapter) decode(p *Product, a attrs) error {
	var err error
	if p.Name, err = a.requireString("name", "name"); err != nil {
		return err
	}
	if p.SellingPrice, err = a.requireDecimal("sellingPrice", "sellingPrice", "selling_price", "price"); err != nil {
		return err
	}
	if p.StockQuantity, err = a.requireDecimal("stockQuantity", "stockQuantity", "stock_quantity"); err != nil {
		return err
	}
	if p.PurchasePrice, err = a.optNullDecimal("purchasePrice", p.PurchasePrice, "purchasePrice", "purchase_price"); err != nil {
		return err
	}
	if p.MinStockLevel, err = a.optDecimal("minStockLevel", p.MinStockLevel, "minStockLevel", "min_stock_level"); err != nil {
		return err
	}
	if p.Description, err = a.optString("description", p.Description, "description"); err != nil {
		return err
	}
	if p.Barcode, err = a.optString("barcode", p.Barcode, "barcode"); err != nil {
		return err
	}
	if p.Category, err = a.optString("category", p.Category, "category"); err != nil {
		return err
	}
	if p.Unit, err = a.optString("unit", p.Unit, "unit"); err != nil {
		return err
	}
	if p.IsActive, err = a.optBool("isActive", p.IsActive, "isActive", "is_active"); err != nil {
		return err
	}
	if p.SellingPrice.IsNegative() || p.StockQuantity.IsNegative() {
		return opErrorf(CodeInvalidPayload, "price and stock quantity must not be negative")
	}
	return nil
}

func (ProductAdapter) ToMap(e Entity) map[string]any {
	p, err := cast[*Product](e)
	if err != nil {
		return nil
	}
	var purchase any
	if p.PurchasePrice.Valid {
		purchase = p.PurchasePrice.Decimal.String()
	}
	return map[string]any{
		"id":              strconv.FormatInt(p.ID, 10),
		"name":            p.Name,
		"description":     optionalString(p.Description),
		"barcode":         optionalString(p.Barcode),
		"purchase_price":  purchase,
		"selling_price":   p.SellingPrice.String(),
		"price":           p.SellingPrice.String(),
		"stock_quantity":  p.StockQuantity.String(),
		"min_stock_level": p.MinStockLevel.String(),
		"category":        optionalString(p.Category),
		"unit":            p.Unit,
		"is_active":       p.IsActive,
		"created_at":      timeValue(p.CreatedAt),
		"updated_at":      timeValue(p.UpdatedAt),
	}
}

func (ProductAdapter) ParseID(s string) (int64, error) { return parseID(s) }

func (ProductAdapter) LastModified(e Entity) time.Time {
	if p, err := cast[*Product](e); err == nil {
		return p.UpdatedAt
	}
	return time.Time{}
}

func (ProductAdapter) SetLastModified(e Entity, t time.Time) {
	p, err := cast[*Product](e)
	if err != nil {
		return
	}
	p.UpdatedAt = t
	if p.CreatedAt.IsZero() {
		p.CreatedAt = t
	}
}
