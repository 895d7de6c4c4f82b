package sync

import (
	"strconv"
	"time"
)

const (
	defaultPaymentMethod = "CASH"
	defaultSaleStatus    = "COMPLETED"
)

// SaleAdapter адаптер продаж
type SaleAdapter struct{}

func (SaleAdapter) Kind() EntityType { return EntitySale }

func (a SaleAdapter) FromMap(data map[string]any) (Entity, error) {
	s := &Sale{PaymentMethod: defaultPaymentMethod, Status: defaultSaleStatus}
	if err := a.decode(s, attrs(data)); err != nil {
		return nil, err
	}
	return s, nil
}

func (a SaleAdapter) ApplyMap(existing Entity, data map[string]any) error {
	s, err := cast[*Sale](existing)
	if err != nil {
		return err
	}
	next := *s
	if err := a.decode(&next, attrs(data)); err != nil {
		return err
	}
	*s = next
	return nil
}

func (SaleAdapter) decode(s *Sale, a attrs) error {
	var err error
	if s.TotalAmount, err = a.requireDecimal("totalAmount", "totalAmount", "total_amount", "amount"); err != nil {
		return err
	}
	if s.DiscountAmount, err = a.optDecimal("discountAmount", s.DiscountAmount, "discountAmount", "discount_amount"); err != nil {
		return err
	}
	if s.TaxAmount, err = a.optDecimal("taxAmount", s.TaxAmount, "taxAmount", "tax_amount"); err != nil {
		return err
	}
	// итоговая сумма по умолчанию считается из total - discount + tax
	def := s.TotalAmount.Sub(s.DiscountAmount).Add(s.TaxAmount)
	if s.FinalAmount, err = a.optDecimal("finalAmount", def, "finalAmount", "final_amount"); err != nil {
		return err
	}
	if s.SaleNumber, err = a.optString("saleNumber", s.SaleNumber, "saleNumber", "sale_number"); err != nil {
		return err
	}
	if s.SaleDate, err = a.optTime("saleDate", s.SaleDate, "saleDate", "sale_date"); err != nil {
		return err
	}
	if s.PaymentMethod, err = a.optString("paymentMethod", s.PaymentMethod, "paymentMethod", "payment_method"); err != nil {
		return err
	}
	if s.Status, err = a.optString("status", s.Status, "status"); err != nil {
		return err
	}
	if s.CustomerName, err = a.optString("customerName", s.CustomerName, "customerName", "customer_name"); err != nil {
		return err
	}
	if s.CustomerPhone, err = a.optString("customerPhone", s.CustomerPhone, "customerPhone", "customer_phone"); err != nil {
		return err
	}
	if s.Notes, err = a.optString("notes", s.Notes, "notes"); err != nil {
		return err
	}
	if s.TotalAmount.IsNegative() {
		return opErrorf(CodeInvalidPayload, "total amount must not be negative")
	}
	return nil
}

func (SaleAdapter) ToMap(e Entity) map[string]any {
	s, err := cast[*Sale](e)
	if err != nil {
		return nil
	}
	return map[string]any{
		"id":              strconv.FormatInt(s.ID, 10),
		"sale_number":     optionalString(s.SaleNumber),
		"sale_date":       timeValue(s.SaleDate),
		"total_amount":    s.TotalAmount.String(),
		"amount":          s.TotalAmount.String(),
		"discount_amount": s.DiscountAmount.String(),
		"tax_amount":      s.TaxAmount.String(),
		"final_amount":    s.FinalAmount.String(),
		"payment_method":  s.PaymentMethod,
		"status":          s.Status,
		"customer_name":   optionalString(s.CustomerName),
		"customer_phone":  optionalString(s.CustomerPhone),
		"notes":           optionalString(s.Notes),
		"created_at":      timeValue(s.CreatedAt),
		"updated_at":      timeValue(s.UpdatedAt),
	}
}

func (SaleAdapter) ParseID(s string) (int64, error) { return parseID(s) }

func (SaleAdapter) LastModified(e Entity) time.Time {
	if s, err := cast[*Sale](e); err == nil {
		return s.UpdatedAt
	}
	return time.Time{}
}

func (SaleAdapter) SetLastModified(e Entity, t time.Time) {
	s, err := cast[*Sale](e)
	if err != nil {
		return
	}
	s.UpdatedAt = t
	if s.CreatedAt.IsZero() {
		s.CreatedAt = t
	}
	if s.SaleDate.IsZero() {
		s.SaleDate = t
	}
	if s.SaleNumber == "" {
		s.SaleNumber = saleNumber(t)
	}
}

// saleNumber номер продажи по умолчанию, как его присваивает касса
func saleNumber(t time.Time) string {
	return "SALE-" + t.UTC().Format("20060102150405.000")
}
