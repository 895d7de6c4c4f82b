package sync

// Временные метки передаются строками ISO-8601 с миллисекундами

type OperationRequest struct {
	_             struct{}       `json:"-" additionalProperties:"true"`
	EntityType    string         `json:"entity_type,omitempty" example:"product" doc:"product, sale или stock_movement"`
	OperationType string         `json:"operation_type,omitempty" example:"update" doc:"create, update или delete"`
	EntityID      string         `json:"entity_id,omitempty" doc:"Серверный ID, обязателен для update и delete"`
	LocalID       string         `json:"local_id,omitempty" doc:"Клиентский ID, возвращается в результате"`
	EntityData    map[string]any `json:"entity_data,omitempty"`
	Timestamp     string         `json:"timestamp,omitempty" example:"2024-01-01T10:00:00.000Z"`
	Priority      int            `json:"priority,omitempty"`
	RetryCount    int            `json:"retry_count,omitempty"`
}

type BatchRequest struct {
	_               struct{}           `json:"-" additionalProperties:"true"`
	Operations      []OperationRequest `json:"operations,omitempty" doc:"Операции в порядке выполнения на клиенте"`
	ClientTimestamp string             `json:"client_timestamp,omitempty"`
	DeviceID        string             `json:"device_id,omitempty"`
	AppVersion      string             `json:"app_version,omitempty"`
	SyncSessionID   string             `json:"sync_session_id,omitempty"`
}

type batchInput struct {
	Body BatchRequest
}

type batchOutput struct {
	Body BatchResponse
}

type OperationResultResponse struct {
	EntityID      string `json:"entity_id"`
	LocalID       string `json:"local_id"`
	ServerID      string `json:"server_id"`
	EntityType    string `json:"entity_type"`
	OperationType string `json:"operation_type"`
	Status        string `json:"status" enum:"success,failed,conflict,skipped"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`
	ErrorCode     string `json:"error_code,omitempty"`
	ConflictID    int64  `json:"conflict_id,omitempty"`
}

type ConflictEnvelopeResponse struct {
	ConflictID   string         `json:"conflict_id"`
	EntityID     string         `json:"entity_id"`
	EntityType   string         `json:"entity_type"`
	ConflictType string         `json:"conflict_type"`
	LocalData    map[string]any `json:"local_data"`
	ServerData   map[string]any `json:"server_data"`
	Priority     string         `json:"priority"`
	Timestamp    string         `json:"timestamp"`
	Message      string         `json:"message"`
}

type ErrorEnvelopeResponse struct {
	EntityID      string `json:"entity_id"`
	EntityType    string `json:"entity_type"`
	OperationType string `json:"operation_type"`
	ErrorCode     string `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
	Timestamp     string `json:"timestamp"`
}

type BatchStatisticsResponse struct {
	ByEntityType            map[string]int `json:"by_entity_type"`
	ByOperationType         map[string]int `json:"by_operation_type"`
	AverageProcessingTimeMs float64        `json:"average_processing_time_ms"`
	TotalDataSizeBytes      int64          `json:"total_data_size_bytes"`
}

type BatchResponse struct {
	SuccessCount     int                        `json:"success_count"`
	ErrorCount       int                        `json:"error_count"`
	ConflictCount    int                        `json:"conflict_count"`
	SkippedCount     int                        `json:"skipped_count"`
	TotalProcessed   int                        `json:"total_processed"`
	ProcessingTimeMs int64                      `json:"processing_time_ms"`
	ServerTimestamp  string                     `json:"server_timestamp"`
	SyncSessionID    string                     `json:"sync_session_id"`
	Results          []OperationResultResponse  `json:"results"`
	Conflicts        []ConflictEnvelopeResponse `json:"conflicts"`
	Errors           []ErrorEnvelopeResponse    `json:"errors"`
	Statistics       BatchStatisticsResponse    `json:"statistics"`
}

type deltaInput struct {
	LastSyncTimestamp string   `query:"last_sync_timestamp" example:"2024-01-01T00:00:00.000Z"`
	EntityTypes       []string `query:"entity_types" doc:"Фильтр типов через запятую"`
	Limit             int      `query:"limit" minimum:"0" doc:"По умолчанию 100, не больше 1000"`
	Cursor            string   `query:"cursor" doc:"next_cursor предыдущей страницы"`
	DeviceID          string   `query:"device_id"`
	AppVersion        string   `query:"app_version"`
	SyncSessionID     string   `query:"sync_session_id"`
}

type deltaOutput struct {
	Body DeltaResponse
}

type ModifiedEntityResponse struct {
	EntityID      string         `json:"entity_id"`
	EntityType    string         `json:"entity_type"`
	EntityData    map[string]any `json:"entity_data"`
	LastModified  string         `json:"last_modified"`
	Version       int64          `json:"version"`
	OperationType string         `json:"operation_type"`
}

type DeletedEntityResponse struct {
	EntityID   string `json:"entity_id"`
	EntityType string `json:"entity_type"`
	DeletedAt  string `json:"deleted_at"`
	Version    int64  `json:"version"`
}

type DeltaStatisticsResponse struct {
	ByEntityType       map[string]int `json:"by_entity_type"`
	ByOperationType    map[string]int `json:"by_operation_type"`
	OldestModification *string        `json:"oldest_modification,omitempty"`
	NewestModification *string        `json:"newest_modification,omitempty"`
	TotalDataSizeBytes int64          `json:"total_data_size_bytes"`
}

type DeltaResponse struct {
	ModifiedEntities  []ModifiedEntityResponse `json:"modified_entities"`
	DeletedEntities   []DeletedEntityResponse  `json:"deleted_entities"`
	TotalModified     int                      `json:"total_modified"`
	TotalDeleted      int                      `json:"total_deleted"`
	ServerTimestamp   string                   `json:"server_timestamp"`
	NextSyncTimestamp string                   `json:"next_sync_timestamp"`
	NextCursor        string                   `json:"next_cursor,omitempty"`
	HasMore           bool                     `json:"has_more"`
	SyncSessionID     string                   `json:"sync_session_id"`
	Statistics        DeltaStatisticsResponse  `json:"statistics"`
}

type statusInput struct{}

type statusOutput struct {
	Body StatusResponse
}

type StatusResponse struct {
	ServerTime   string           `json:"server_time"`
	Status       string           `json:"status"`
	Version      string           `json:"version"`
	EntityCounts map[string]int64 `json:"entity_counts"`
}

type forceInput struct{}

type forceOutput struct {
	Body MessageResponse
}

type MessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type conflictsInput struct {
	UserID string `query:"user_id" doc:"Только конфликты этого пользователя"`
}

type conflictsOutput struct {
	Body []ConflictResponse
}

type ConflictResponse struct {
	ID                 int64  `json:"id"`
	UserID             int64  `json:"user_id"`
	EntityType         string `json:"entity_type"`
	EntityID           string `json:"entity_id"`
	ConflictType       string `json:"conflict_type"`
	LocalData          string `json:"local_data"`
	ServerData         string `json:"server_data"`
	LocalVersion       *int64 `json:"local_version,omitempty"`
	ServerVersion      *int64 `json:"server_version,omitempty"`
	ResolutionStrategy string `json:"resolution_strategy,omitempty"`
	ResolvedAt         string `json:"resolved_at,omitempty"`
	ResolvedBy         string `json:"resolved_by,omitempty"`
	CreatedAt          string `json:"created_at"`
	ConflictDetails    string `json:"conflict_details"`
}

type resolveInput struct {
	ID         int64  `path:"id"`
	Resolution string `query:"resolution" example:"SERVER_WINS" doc:"SERVER_WINS, CLIENT_WINS, MANUAL или MERGED"`
	ResolvedBy string `query:"resolved_by"`
}

type resolveOutput struct {
	Body ConflictResponse
}
