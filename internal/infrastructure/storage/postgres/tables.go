package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	syncdomain "salesmanager/internal/domain/sync"
)

// table описывает хранение одного типа сущности.
// Десятичные колонки читаются как text и разбираются shopspring/decimal
type table struct {
	name    string
	columns []string
	selects []string
	values  func(e syncdomain.Entity) ([]any, error)
	scan    func(row pgx.Row) (syncdomain.Entity, error)
}

func (t table) selectList() string {
	return "id, " + strings.Join(t.selects, ", ")
}

func (t table) insertSQL() string {
	ph := make([]string, len(t.columns))
	for i := range t.columns {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		t.name, strings.Join(t.columns, ", "), strings.Join(ph, ", "))
}

func (t table) updateSQL() string {
	set := make([]string, len(t.columns))
	for i, c := range t.columns {
		set[i] = fmt.Sprintf("%s = $%d", c, i+2)
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", t.name, strings.Join(set, ", "))
}

func (t table) findSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.selectList(), t.name)
}

func (t table) deleteSQL() string {
	return fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.name)
}

func (t table) updatedAfterSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE (updated_at, id) > ($1, $2) ORDER BY updated_at, id LIMIT $3",
		t.selectList(), t.name)
}

func (t table) countSQL() string {
	return fmt.Sprintf("SELECT COUNT(*) FROM %s", t.name)
}

var tables = map[syncdomain.EntityType]table{
	syncdomain.EntityProduct:       productTable,
	syncdomain.EntitySale:          saleTable,
	syncdomain.EntityStockMovement: stockMovementTable,
}

var productTable = table{
	name: "products",
	columns: []string{
		"name", "description", "barcode", "purchase_price", "selling_price", "stock_quantity",
		"min_stock_level", "category", "unit", "is_active", "created_at", "updated_at",
	},
	selects: []string{
		"name", "description", "barcode", "purchase_price::text", "selling_price::text", "stock_quantity::text",
		"min_stock_level::text", "category", "unit", "is_active", "created_at", "updated_at",
	},
	values: func(e syncdomain.Entity) ([]any, error) {
		p, ok := e.(*syncdomain.Product)
		if !ok {
			return nil, fmt.Errorf("unexpected entity %T", e)
		}
		var purchase *string
		if p.PurchasePrice.Valid {
			s := p.PurchasePrice.Decimal.String()
			purchase = &s
		}
		return []any{
			p.Name, nullString(p.Description), nullString(p.Barcode), purchase, p.SellingPrice.String(),
			p.StockQuantity.String(), p.MinStockLevel.String(), nullString(p.Category), p.Unit, p.IsActive,
			p.CreatedAt, p.UpdatedAt,
		}, nil
	},
	scan: func(row pgx.Row) (syncdomain.Entity, error) {
		var (
			p                                     syncdomain.Product
			description, barcode, purchase, categ *string
			selling, stock, minStock              string
		)
		err := row.Scan(&p.ID, &p.Name, &description, &barcode, &purchase, &selling, &stock,
			&minStock, &categ, &p.Unit, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, err
		}
		p.Description, p.Barcode, p.Category = deref(description), deref(barcode), deref(categ)
		if purchase != nil {
			d, err := decimal.NewFromString(*purchase)
			if err != nil {
				return nil, fmt.Errorf("purchase_price: %w", err)
			}
			p.PurchasePrice = decimal.NewNullDecimal(d)
		}
		if err := parseDecimals(
			decimalField{"selling_price", selling, &p.SellingPrice},
			decimalField{"stock_quantity", stock, &p.StockQuantity},
			decimalField{"min_stock_level", minStock, &p.MinStockLevel},
		); err != nil {
			return nil, err
		}
		p.CreatedAt, p.UpdatedAt = utc(p.CreatedAt), utc(p.UpdatedAt)
		return &p, nil
	},
}

var saleTable = table{
	name: "sales",
	columns: []string{
		"sale_number", "sale_date", "total_amount", "discount_amount", "tax_amount", "final_amount",
		"payment_method", "status", "customer_name", "customer_phone", "notes", "created_at", "updated_at",
	},
	selects: []string{
		"sale_number", "sale_date", "total_amount::text", "discount_amount::text", "tax_amount::text",
		"final_amount::text", "payment_method", "status", "customer_name", "customer_phone", "notes",
		"created_at", "updated_at",
	},
	values: func(e syncdomain.Entity) ([]any, error) {
		s, ok := e.(*syncdomain.Sale)
		if !ok {
			return nil, fmt.Errorf("unexpected entity %T", e)
		}
		return []any{
			s.SaleNumber, s.SaleDate, s.TotalAmount.String(), s.DiscountAmount.String(), s.TaxAmount.String(),
			s.FinalAmount.String(), s.PaymentMethod, s.Status, nullString(s.CustomerName),
			nullString(s.CustomerPhone), nullString(s.Notes), s.CreatedAt, s.UpdatedAt,
		}, nil
	},
	scan: func(row pgx.Row) (syncdomain.Entity, error) {
		var (
			s                            syncdomain.Sale
			total, discount, tax, final  string
			customer, phone, notes       *string
		)
		err := row.Scan(&s.ID, &s.SaleNumber, &s.SaleDate, &total, &discount, &tax, &final,
			&s.PaymentMethod, &s.Status, &customer, &phone, &notes, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		s.CustomerName, s.CustomerPhone, s.Notes = deref(customer), deref(phone), deref(notes)
		if err := parseDecimals(
			decimalField{"total_amount", total, &s.TotalAmount},
			decimalField{"discount_amount", discount, &s.DiscountAmount},
			decimalField{"tax_amount", tax, &s.TaxAmount},
			decimalField{"final_amount", final, &s.FinalAmount},
		); err != nil {
			return nil, err
		}
		s.SaleDate, s.CreatedAt, s.UpdatedAt = utc(s.SaleDate), utc(s.CreatedAt), utc(s.UpdatedAt)
		return &s, nil
	},
}

var stockMovementTable = table{
	name: "stock_movements",
	columns: []string{
		"product_id", "quantity", "movement_type", "reason", "reference", "created_at", "updated_at",
	},
	selects: []string{
		"product_id", "quantity::text", "movement_type", "reason", "reference", "created_at", "updated_at",
	},
	values: func(e syncdomain.Entity) ([]any, error) {
		m, ok := e.(*syncdomain.StockMovement)
		if !ok {
			return nil, fmt.Errorf("unexpected entity %T", e)
		}
		return []any{
			m.ProductID, m.Quantity.String(), m.MovementType, nullString(m.Reason), nullString(m.Reference),
			m.CreatedAt, m.UpdatedAt,
		}, nil
	},
	scan: func(row pgx.Row) (syncdomain.Entity, error) {
		var (
			m                 syncdomain.StockMovement
			quantity          string
			reason, reference *string
		)
		err := row.Scan(&m.ID, &m.ProductID, &quantity, &m.MovementType, &reason, &reference,
			&m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return nil, err
		}
		m.Reason, m.Reference = deref(reason), deref(reference)
		if err := parseDecimals(decimalField{"quantity", quantity, &m.Quantity}); err != nil {
			return nil, err
		}
		m.CreatedAt, m.UpdatedAt = utc(m.CreatedAt), utc(m.UpdatedAt)
		return &m, nil
	},
}

type decimalField struct {
	column string
	raw    string
	dst    *decimal.Decimal
}

func parseDecimals(fields ...decimalField) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.column, err)
		}
		*f.dst = d
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
