package sync

import (
	"time"
)

// DTO (Data Transfer Objects) движка синхронизации

// Operation одна мутация, выполненная клиентом офлайн
type Operation struct {
	EntityType    EntityType     `json:"entity_type"`
	OperationType OperationType  `json:"operation_type"`
	EntityID      string         `json:"entity_id,omitempty"`
	LocalID       string         `json:"local_id,omitempty"`
	EntityData    map[string]any `json:"entity_data,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Priority      int            `json:"priority,omitempty"`
	RetryCount    int            `json:"retry_count,omitempty"`
}

// BatchPush пакет операций клиента
type BatchPush struct {
	Operations      []Operation `json:"operations" validate:"required,min=1"`
	ClientTimestamp time.Time   `json:"client_timestamp"`
	DeviceID        string      `json:"device_id"`
	AppVersion      string      `json:"app_version"`
	SyncSessionID   string      `json:"sync_session_id"`
}

// OperationResult результат обработки одной операции
type OperationResult struct {
	EntityID      string          `json:"entity_id"`
	LocalID       string          `json:"local_id"`
	ServerID      string          `json:"server_id"`
	EntityType    EntityType      `json:"entity_type"`
	OperationType OperationType   `json:"operation_type"`
	Status        OperationStatus `json:"status"`
	Message       string          `json:"message"`
	Timestamp     time.Time       `json:"timestamp"`

	// ErrorCode и ConflictID нужны координатору для конвертов ответа
	ErrorCode  ErrorCode    `json:"-"`
	ConflictID int64        `json:"-"`
	Conflict   ConflictType `json:"-"`
}

// ConflictEnvelope конфликт в ответе на batch для немедленного показа клиенту
type ConflictEnvelope struct {
	ConflictID   string         `json:"conflict_id"`
	EntityID     string         `json:"entity_id"`
	EntityType   EntityType     `json:"entity_type"`
	ConflictType ConflictType   `json:"conflict_type"`
	LocalData    map[string]any `json:"local_data"`
	ServerData   map[string]any `json:"server_data"`
	Priority     string         `json:"priority"`
	Timestamp    time.Time      `json:"timestamp"`
	Message      string         `json:"message"`
}

// ErrorEnvelope ошибка операции в ответе на batch
type ErrorEnvelope struct {
	EntityID      string        `json:"entity_id"`
	EntityType    EntityType    `json:"entity_type"`
	OperationType OperationType `json:"operation_type"`
	ErrorCode     ErrorCode     `json:"error_code"`
	ErrorMessage  string        `json:"error_message"`
	Timestamp     time.Time     `json:"timestamp"`
}

// BatchStatistics статистика пакета
type BatchStatistics struct {
	ByEntityType            map[string]int `json:"by_entity_type"`
	ByOperationType         map[string]int `json:"by_operation_type"`
	AverageProcessingTimeMs float64        `json:"average_processing_time_ms"`
	TotalDataSizeBytes      int64          `json:"total_data_size_bytes"`
}

// BatchReply ответ на пакет операций
type BatchReply struct {
	SuccessCount     int                `json:"success_count"`
	ErrorCount       int                `json:"error_count"`
	ConflictCount    int                `json:"conflict_count"`
	SkippedCount     int                `json:"skipped_count"`
	TotalProcessed   int                `json:"total_processed"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	ServerTimestamp  time.Time          `json:"server_timestamp"`
	SyncSessionID    string             `json:"sync_session_id"`
	Results          []OperationResult  `json:"results"`
	Conflicts        []ConflictEnvelope `json:"conflicts"`
	Errors           []ErrorEnvelope    `json:"errors"`
	Statistics       BatchStatistics    `json:"statistics"`
}

// DeltaRequest запрос изменений сервера с момента watermark
type DeltaRequest struct {
	LastSyncTimestamp time.Time    `json:"last_sync_timestamp"`
	EntityTypes       []EntityType `json:"entity_types,omitempty"`
	Limit             int          `json:"limit,omitempty"`
	Cursor            string       `json:"cursor,omitempty"`
	DeviceID          string       `json:"device_id,omitempty"`
	AppVersion        string       `json:"app_version,omitempty"`
	SyncSessionID     string       `json:"sync_session_id,omitempty"`
}

// ModifiedEntity сущность, измененная после watermark
type ModifiedEntity struct {
	EntityID      string         `json:"entity_id"`
	EntityType    EntityType     `json:"entity_type"`
	EntityData    map[string]any `json:"entity_data"`
	LastModified  time.Time      `json:"last_modified"`
	Version       int64          `json:"version"`
	OperationType OperationType  `json:"operation_type"`
}

// DeletedEntity удаленная сущность (надгробия не ведутся, список всегда пуст)
type DeletedEntity struct {
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
	DeletedAt  time.Time  `json:"deleted_at"`
	Version    int64      `json:"version"`
}

// DeltaStatistics статистика страницы дельты
type DeltaStatistics struct {
	ByEntityType       map[string]int `json:"by_entity_type"`
	ByOperationType    map[string]int `json:"by_operation_type"`
	OldestModification *time.Time     `json:"oldest_modification,omitempty"`
	NewestModification *time.Time     `json:"newest_modification,omitempty"`
	TotalDataSizeBytes int64          `json:"total_data_size_bytes"`
}

// DeltaReply страница изменений сервера
type DeltaReply struct {
	ModifiedEntities  []ModifiedEntity `json:"modified_entities"`
	DeletedEntities   []DeletedEntity  `json:"deleted_entities"`
	TotalModified     int              `json:"total_modified"`
	TotalDeleted      int              `json:"total_deleted"`
	ServerTimestamp   time.Time        `json:"server_timestamp"`
	NextSyncTimestamp time.Time        `json:"next_sync_timestamp"`
	NextCursor        string           `json:"next_cursor,omitempty"`
	HasMore           bool             `json:"has_more"`
	SyncSessionID     string           `json:"sync_session_id"`
	Statistics        DeltaStatistics  `json:"statistics"`
}

// StatusReply состояние сервера синхронизации
type StatusReply struct {
	ServerTime   time.Time        `json:"server_time"`
	Status       string           `json:"status"`
	Version      string           `json:"version"`
	EntityCounts map[string]int64 `json:"entity_counts"`
}

// ResolveRequest запрос на закрытие конфликта
type ResolveRequest struct {
	ConflictID int64              `json:"conflict_id" validate:"required,gt=0"`
	Strategy   ResolutionStrategy `json:"strategy" validate:"required,oneof=SERVER_WINS CLIENT_WINS MANUAL MERGED"`
	ResolvedBy string             `json:"resolved_by"`
}
