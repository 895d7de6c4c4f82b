package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Adapter переводит нейтральную карту атрибутов в сущность хранилища и обратно
// для одного типа сущности
type Adapter interface {
	Kind() EntityType
	// FromMap создает новую сущность из атрибутов операции create
	FromMap(data map[string]any) (Entity, error)
	// ApplyMap применяет атрибуты операции update к существующей сущности
	ApplyMap(existing Entity, data map[string]any) error
	// ToMap снимок сущности для дельты и конфликтов
	ToMap(e Entity) map[string]any
	ParseID(s string) (int64, error)
	LastModified(e Entity) time.Time
	// SetLastModified ставит серверное время записи. Для новой сущности также created_at
	SetLastModified(e Entity, t time.Time)
}

// Registry закрытый набор адаптеров по типу сущности
type Registry struct {
	adapters map[EntityType]Adapter
}

// NewRegistry собирает реестр из адаптеров
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[EntityType]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Kind()] = a
	}
	return r
}

// DefaultRegistry адаптеры товаров, продаж и движений склада
func DefaultRegistry() *Registry {
	return NewRegistry(ProductAdapter{}, SaleAdapter{}, StockMovementAdapter{})
}

// Lookup возвращает адаптер или ошибку UNSUPPORTED_ENTITY
func (r *Registry) Lookup(kind EntityType) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, opErrorf(CodeUnsupportedEntity, "unsupported entity type %q", kind)
	}
	return a, nil
}

// Kinds типы из реестра в порядке обхода дельты
func (r *Registry) Kinds() []EntityType {
	kinds := make([]EntityType, 0, len(r.adapters))
	for _, k := range EntityTypes {
		if _, ok := r.adapters[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// ParseEntityType разбирает тип сущности из строки клиента
func ParseEntityType(s string) (EntityType, error) {
	k := EntityType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range EntityTypes {
		if k == known {
			return k, nil
		}
	}
	return "", opErrorf(CodeUnsupportedEntity, "unsupported entity type %q", s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, opErrorf(CodeInvalidPayload, "invalid entity id %q", s)
	}
	return id, nil
}

func cast[T Entity](e Entity) (T, error) {
	typed, ok := e.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected entity %T", e)
	}
	return typed, nil
}
