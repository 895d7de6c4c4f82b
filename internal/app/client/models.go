package client

import (
	"time"

	syncdomain "salesmanager/internal/domain/sync"
)

// OutboxStatus состояние операции в локальной очереди
type OutboxStatus string

const (
	OutboxPending  OutboxStatus = "pending"
	OutboxSent     OutboxStatus = "sent"
	OutboxFailed   OutboxStatus = "failed"
	OutboxConflict OutboxStatus = "conflict"
)

// OutboxOp операция, записанная на устройстве до отправки на сервер
type OutboxOp struct {
	Seq           int64
	LocalID       string
	EntityType    syncdomain.EntityType
	OperationType syncdomain.OperationType
	// EntityID серверный ID. Для сущностей, созданных офлайн, пуст до маппинга RefLocalID
	EntityID   string
	RefLocalID string
	EntityData map[string]any
	CreatedAt  time.Time
	Attempts   int
	Status     OutboxStatus
	ServerID   string
	LastError  string
}

// LocalEntity копия серверной сущности, полученная через дельту
type LocalEntity struct {
	EntityType   syncdomain.EntityType
	EntityID     string
	Data         map[string]any
	LastModified time.Time
}

// Модели протокола. Временные метки передаются строками, см. syncdomain.FormatTimestamp

type wireOperation struct {
	EntityType    string         `json:"entity_type"`
	OperationType string         `json:"operation_type"`
	EntityID      string         `json:"entity_id,omitempty"`
	LocalID       string         `json:"local_id,omitempty"`
	EntityData    map[string]any `json:"entity_data,omitempty"`
	Timestamp     string         `json:"timestamp"`
	RetryCount    int            `json:"retry_count,omitempty"`
}

type BatchRequest struct {
	Operations      []wireOperation `json:"operations,omitempty"`
	ClientTimestamp string          `json:"client_timestamp"`
	DeviceID        string          `json:"device_id,omitempty"`
	AppVersion      string          `json:"app_version,omitempty"`
}

type OperationResult struct {
	EntityID      string `json:"entity_id"`
	LocalID       string `json:"local_id"`
	ServerID      string `json:"server_id"`
	EntityType    string `json:"entity_type"`
	OperationType string `json:"operation_type"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	ErrorCode     string `json:"error_code,omitempty"`
	ConflictID    int64  `json:"conflict_id,omitempty"`
}

type BatchResponse struct {
	SuccessCount     int               `json:"success_count"`
	ErrorCount       int               `json:"error_count"`
	ConflictCount    int               `json:"conflict_count"`
	SkippedCount     int               `json:"skipped_count"`
	TotalProcessed   int               `json:"total_processed"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	ServerTimestamp  string            `json:"server_timestamp"`
	SyncSessionID    string            `json:"sync_session_id"`
	Results          []OperationResult `json:"results"`
	Errors           []struct {
		ErrorCode    string `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"errors"`
}

type DeltaQuery struct {
	LastSyncTimestamp time.Time
	EntityTypes       []syncdomain.EntityType
	Limit             int
	Cursor            string
}

type ModifiedEntity struct {
	EntityID      string         `json:"entity_id"`
	EntityType    string         `json:"entity_type"`
	EntityData    map[string]any `json:"entity_data"`
	LastModified  string         `json:"last_modified"`
	Version       int64          `json:"version"`
	OperationType string         `json:"operation_type"`
}

type DeltaResponse struct {
	ModifiedEntities  []ModifiedEntity `json:"modified_entities"`
	TotalModified     int              `json:"total_modified"`
	ServerTimestamp   string           `json:"server_timestamp"`
	NextSyncTimestamp string           `json:"next_sync_timestamp"`
	NextCursor        string           `json:"next_cursor,omitempty"`
	HasMore           bool             `json:"has_more"`
	SyncSessionID     string           `json:"sync_session_id"`
}

type StatusResponse struct {
	ServerTime   string           `json:"server_time"`
	Status       string           `json:"status"`
	Version      string           `json:"version"`
	EntityCounts map[string]int64 `json:"entity_counts"`
}

type Conflict struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"user_id"`
	EntityType         string `json:"entity_type"`
	EntityID           string `json:"entity_id"`
	ConflictType       string `json:"conflict_type"`
	LocalData          string `json:"local_data"`
	ServerData         string `json:"server_data"`
	ResolutionStrategy string `json:"resolution_strategy,omitempty"`
	ResolvedAt         string `json:"resolved_at,omitempty"`
	ResolvedBy         string `json:"resolved_by,omitempty"`
	CreatedAt          string `json:"created_at"`
	ConflictDetails    string `json:"conflict_details"`
}
