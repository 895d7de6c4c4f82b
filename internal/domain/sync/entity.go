package sync

import (
	"time"

	"github.com/shopspring/decimal"
)

// Entity сущность, хранимая в Entity Store
type Entity interface {
	Kind() EntityType
	GetID() int64
}

// Product товар
type Product struct {
	ID            int64
	Name          string
	Description   string
	Barcode       string
	PurchasePrice decimal.NullDecimal
	SellingPrice  decimal.Decimal
	StockQuantity decimal.Decimal
	MinStockLevel decimal.Decimal
	Category      string
	Unit          string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p *Product) Kind() EntityType { return EntityProduct }
func (p *Product) GetID() int64     { return p.ID }

// Sale продажа
type Sale struct {
	ID             int64
	SaleNumber     string
	SaleDate       time.Time
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	FinalAmount    decimal.Decimal
	PaymentMethod  string
	Status         string
	CustomerName   string
	CustomerPhone  string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (s *Sale) Kind() EntityType { return EntitySale }
func (s *Sale) GetID() int64     { return s.ID }

// StockMovement движение товара на складе
type StockMovement struct {
	ID           int64
	ProductID    int64
	Quantity     decimal.Decimal
	MovementType string
	Reason       string
	Reference    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (m *StockMovement) Kind() EntityType { return EntityStockMovement }
func (m *StockMovement) GetID() int64     { return m.ID }

// Watermark позиция в порядке (updated_at, id) внутри одного типа
type Watermark struct {
	UpdatedAt time.Time
	ID        int64
}
