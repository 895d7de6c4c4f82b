package sync

import (
	"time"
)

// EntityType тип синхронизируемой сущности
type EntityType string

const (
	EntityProduct       EntityType = "product"
	EntitySale          EntityType = "sale"
	EntityStockMovement EntityType = "stock_movement"
)

// EntityTypes порядок обхода типов при формировании дельты
var EntityTypes = []EntityType{EntityProduct, EntitySale, EntityStockMovement}

// OperationType тип операции клиента
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationUpdate OperationType = "update"
	OperationDelete OperationType = "delete"
)

// OperationStatus итог обработки одной операции
type OperationStatus string

const (
	StatusSuccess  OperationStatus = "success"
	StatusFailed   OperationStatus = "failed"
	StatusConflict OperationStatus = "conflict"
	StatusSkipped  OperationStatus = "skipped"
)

// ConflictType класс конфликта
type ConflictType string

const (
	ConflictVersionMismatch ConflictType = "VERSION_MISMATCH"
	ConflictUpdateDelete    ConflictType = "UPDATE_DELETE"
	ConflictDeleteUpdate    ConflictType = "DELETE_UPDATE"
	ConflictCreate          ConflictType = "CREATE_CONFLICT"
)

// ResolutionStrategy стратегия, которой оператор закрыл конфликт
type ResolutionStrategy string

const (
	ResolutionServerWins ResolutionStrategy = "SERVER_WINS"
	ResolutionClientWins ResolutionStrategy = "CLIENT_WINS"
	ResolutionManual     ResolutionStrategy = "MANUAL"
	ResolutionMerged     ResolutionStrategy = "MERGED"
)

// SyncType тип записи журнала синхронизации
type SyncType string

const (
	SyncTypeBatch SyncType = "BATCH"
	SyncTypeDelta SyncType = "DELTA"
)

// SyncConflict сохраненный конфликт синхронизации
type SyncConflict struct {
	ID                 int64              `json:"id"`
	UserID             int64              `json:"user_id"`
	EntityType         EntityType         `json:"entity_type"`
	EntityID           string             `json:"entity_id"`
	ConflictType       ConflictType       `json:"conflict_type"`
	LocalData          string             `json:"local_data"`
	ServerData         string             `json:"server_data"`
	LocalVersion       *int64             `json:"local_version,omitempty"`
	ServerVersion      *int64             `json:"server_version,omitempty"`
	ResolutionStrategy ResolutionStrategy `json:"resolution_strategy,omitempty"`
	ResolvedAt         *time.Time         `json:"resolved_at,omitempty"`
	ResolvedBy         string             `json:"resolved_by,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	ConflictDetails    string             `json:"conflict_details"`
}

// Pending сообщает, что конфликт еще не разрешен
func (c *SyncConflict) Pending() bool {
	return c.ResolvedAt == nil
}

// SyncLog запись аудита одного вызова batch или delta
type SyncLog struct {
	ID               int64     `json:"id"`
	SyncType         SyncType  `json:"sync_type"`
	DeviceID         string    `json:"device_id"`
	AppVersion       string    `json:"app_version"`
	SyncSessionID    string    `json:"sync_session_id"`
	OperationsCount  int       `json:"operations_count"`
	SuccessCount     int       `json:"success_count"`
	ErrorCount       int       `json:"error_count"`
	ConflictCount    int       `json:"conflict_count"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	Timestamp        time.Time `json:"timestamp"`
}

// ServiceConfig конфигурация движка синхронизации
type ServiceConfig struct {
	MaxBatchSize      int    `json:"max_batch_size"`
	DefaultDeltaLimit int    `json:"default_delta_limit"`
	MaxDeltaLimit     int    `json:"max_delta_limit"`
	Version           string `json:"version"`
}

// DefaultServiceConfig значения по умолчанию
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxBatchSize:      100,
		DefaultDeltaLimit: 100,
		MaxDeltaLimit:     1000,
		Version:           "1.0.0",
	}
}
