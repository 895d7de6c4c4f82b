package sync

import (
	"strconv"
	"strings"
	"time"
)

// StockMovementAdapter адаптер движений склада
type StockMovementAdapter struct{}

func (StockMovementAdapter) Kind() EntityType { return EntityStockMovement }

func (a StockMovementAdapter) FromMap(data map[string]any) (Entity, error) {
	m := &StockMovement{}
	if err := a.decode(m, attrs(data)); err != nil {
		return nil, err
	}
	return m, nil
}

func (a StockMovementAdapter) ApplyMap(existing Entity, data map[string]any) error {
	m, err := cast[*StockMovement](existing)
	if err != nil {
		return err
	}
	next := *m
	if err := a.decode(&next, attrs(data)); err != nil {
		return err
	}
	*m = next
	return nil
}

func (StockMovementAdapter) decode(m *StockMovement, a attrs) error {
	var err error
	if m.ProductID, err = a.requireInt("productId", "productId", "product_id"); err != nil {
		return err
	}
	if m.ProductID <= 0 {
		return opErrorf(CodeInvalidPayload, "attribute %q must be positive", "productId")
	}
	if m.Quantity, err = a.requireDecimal("quantity", "quantity"); err != nil {
		return err
	}
	movementType, err := a.requireString("movementType", "movementType", "movement_type")
	if err != nil {
		return err
	}
	m.MovementType = strings.ToUpper(strings.TrimSpace(movementType))
	if m.Reason, err = a.optString("reason", m.Reason, "reason"); err != nil {
		return err
	}
	if m.Reference, err = a.optString("reference", m.Reference, "reference", "referenceId", "reference_id"); err != nil {
		return err
	}
	return nil
}

func (StockMovementAdapter) ToMap(e Entity) map[string]any {
	m, err := cast[*StockMovement](e)
	if err != nil {
		return nil
	}
	return map[string]any{
		"id":            strconv.FormatInt(m.ID, 10),
		"product_id":    strconv.FormatInt(m.ProductID, 10),
		"quantity":      m.Quantity.String(),
		"movement_type": m.MovementType,
		"reason":        optionalString(m.Reason),
		"reference":     optionalString(m.Reference),
		"created_at":    timeValue(m.CreatedAt),
		"updated_at":    timeValue(m.UpdatedAt),
	}
}

func (StockMovementAdapter) ParseID(s string) (int64, error) { return parseID(s) }

func (StockMovementAdapter) LastModified(e Entity) time.Time {
	if m, err := cast[*StockMovement](e); err == nil {
		return m.UpdatedAt
	}
	return time.Time{}
}

func (StockMovementAdapter) SetLastModified(e Entity, t time.Time) {
	m, err := cast[*StockMovement](e)
	if err != nil {
		return
	}
	m.UpdatedAt = t
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t
	}
}
