package sync

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	syncdomain "salesmanager/internal/domain/sync"
)

func parseOptionalTimestamp(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := syncdomain.ParseTimestamp(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", field, err)
	}
	return t, nil
}

func toBatchPush(req BatchRequest) (syncdomain.BatchPush, error) {
	clientTS, err := parseOptionalTimestamp("client_timestamp", req.ClientTimestamp)
	if err != nil {
		return syncdomain.BatchPush{}, err
	}
	push := syncdomain.BatchPush{
		ClientTimestamp: clientTS,
		DeviceID:        req.DeviceID,
		AppVersion:      req.AppVersion,
		SyncSessionID:   req.SyncSessionID,
	}
	if len(req.Operations) > 0 {
		push.Operations = make([]syncdomain.Operation, 0, len(req.Operations))
	}
	for i, op := range req.Operations {
		ts, err := parseOptionalTimestamp(fmt.Sprintf("operations[%d].timestamp", i), op.Timestamp)
		if err != nil {
			return syncdomain.BatchPush{}, err
		}
		push.Operations = append(push.Operations, syncdomain.Operation{
			EntityType:    syncdomain.EntityType(strings.ToLower(strings.TrimSpace(op.EntityType))),
			OperationType: syncdomain.OperationType(strings.ToLower(strings.TrimSpace(op.OperationType))),
			EntityID:      op.EntityID,
			LocalID:       op.LocalID,
			EntityData:    op.EntityData,
			Timestamp:     ts,
			Priority:      op.Priority,
			RetryCount:    op.RetryCount,
		})
	}
	return push, nil
}

func toBatchResponse(r *syncdomain.BatchReply) BatchResponse {
	res := BatchResponse{
		SuccessCount:     r.SuccessCount,
		ErrorCount:       r.ErrorCount,
		ConflictCount:    r.ConflictCount,
		SkippedCount:     r.SkippedCount,
		TotalProcessed:   r.TotalProcessed,
		ProcessingTimeMs: r.ProcessingTimeMs,
		ServerTimestamp:  syncdomain.FormatTimestamp(r.ServerTimestamp),
		SyncSessionID:    r.SyncSessionID,
		Results:          make([]OperationResultResponse, 0, len(r.Results)),
		Conflicts:        make([]ConflictEnvelopeResponse, 0, len(r.Conflicts)),
		Errors:           make([]ErrorEnvelopeResponse, 0, len(r.Errors)),
		Statistics: BatchStatisticsResponse{
			ByEntityType:            r.Statistics.ByEntityType,
			ByOperationType:         r.Statistics.ByOperationType,
			AverageProcessingTimeMs: r.Statistics.AverageProcessingTimeMs,
			TotalDataSizeBytes:      r.Statistics.TotalDataSizeBytes,
		},
	}
	for _, o := range r.Results {
		res.Results = append(res.Results, OperationResultResponse{
			EntityID:      o.EntityID,
			LocalID:       o.LocalID,
			ServerID:      o.ServerID,
			EntityType:    string(o.EntityType),
			OperationType: string(o.OperationType),
			Status:        string(o.Status),
			Message:       o.Message,
			Timestamp:     syncdomain.FormatTimestamp(o.Timestamp),
			ErrorCode:     string(o.ErrorCode),
			ConflictID:    o.ConflictID,
		})
	}
	for _, c := range r.Conflicts {
		res.Conflicts = append(res.Conflicts, ConflictEnvelopeResponse{
			ConflictID:   c.ConflictID,
			EntityID:     c.EntityID,
			EntityType:   string(c.EntityType),
			ConflictType: string(c.ConflictType),
			LocalData:    c.LocalData,
			ServerData:   c.ServerData,
			Priority:     c.Priority,
			Timestamp:    syncdomain.FormatTimestamp(c.Timestamp),
			Message:      c.Message,
		})
	}
	for _, e := range r.Errors {
		res.Errors = append(res.Errors, ErrorEnvelopeResponse{
			EntityID:      e.EntityID,
			EntityType:    string(e.EntityType),
			OperationType: string(e.OperationType),
			ErrorCode:     string(e.ErrorCode),
			ErrorMessage:  e.ErrorMessage,
			Timestamp:     syncdomain.FormatTimestamp(e.Timestamp),
		})
	}
	return res
}

func toDeltaRequest(in *deltaInput) (syncdomain.DeltaRequest, error) {
	since, err := syncdomain.ParseTimestamp(in.LastSyncTimestamp)
	if err != nil {
		return syncdomain.DeltaRequest{}, fmt.Errorf("last_sync_timestamp: %w", err)
	}
	req := syncdomain.DeltaRequest{
		LastSyncTimestamp: since,
		Limit:             in.Limit,
		Cursor:            in.Cursor,
		DeviceID:          in.DeviceID,
		AppVersion:        in.AppVersion,
		SyncSessionID:     in.SyncSessionID,
	}
	for _, raw := range in.EntityTypes {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				req.EntityTypes = append(req.EntityTypes, syncdomain.EntityType(strings.ToLower(s)))
			}
		}
	}
	return req, nil
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := syncdomain.FormatTimestamp(*t)
	return &s
}

func toDeltaResponse(r *syncdomain.DeltaReply) DeltaResponse {
	res := DeltaResponse{
		ModifiedEntities:  make([]ModifiedEntityResponse, 0, len(r.ModifiedEntities)),
		DeletedEntities:   make([]DeletedEntityResponse, 0, len(r.DeletedEntities)),
		TotalModified:     r.TotalModified,
		TotalDeleted:      r.TotalDeleted,
		ServerTimestamp:   syncdomain.FormatTimestamp(r.ServerTimestamp),
		NextSyncTimestamp: syncdomain.FormatTimestamp(r.NextSyncTimestamp),
		NextCursor:        r.NextCursor,
		HasMore:           r.HasMore,
		SyncSessionID:     r.SyncSessionID,
		Statistics: DeltaStatisticsResponse{
			ByEntityType:       r.Statistics.ByEntityType,
			ByOperationType:    r.Statistics.ByOperationType,
			OldestModification: formatOptional(r.Statistics.OldestModification),
			NewestModification: formatOptional(r.Statistics.NewestModification),
			TotalDataSizeBytes: r.Statistics.TotalDataSizeBytes,
		},
	}
	for _, m := range r.ModifiedEntities {
		res.ModifiedEntities = append(res.ModifiedEntities, ModifiedEntityResponse{
			EntityID:      m.EntityID,
			EntityType:    string(m.EntityType),
			EntityData:    m.EntityData,
			LastModified:  syncdomain.FormatTimestamp(m.LastModified),
			Version:       m.Version,
			OperationType: string(m.OperationType),
		})
	}
	for _, d := range r.DeletedEntities {
		res.DeletedEntities = append(res.DeletedEntities, DeletedEntityResponse{
			EntityID:   d.EntityID,
			EntityType: string(d.EntityType),
			DeletedAt:  syncdomain.FormatTimestamp(d.DeletedAt),
			Version:    d.Version,
		})
	}
	return res
}

func toConflictResponse(c syncdomain.SyncConflict) ConflictResponse {
	res := ConflictResponse{
		ID:                 c.ID,
		UserID:             c.UserID,
		EntityType:         string(c.EntityType),
		EntityID:           c.EntityID,
		ConflictType:       string(c.ConflictType),
		LocalData:          c.LocalData,
		ServerData:         c.ServerData,
		LocalVersion:       c.LocalVersion,
		ServerVersion:      c.ServerVersion,
		ResolutionStrategy: string(c.ResolutionStrategy),
		ResolvedBy:         c.ResolvedBy,
		CreatedAt:          syncdomain.FormatTimestamp(c.CreatedAt),
		ConflictDetails:    c.ConflictDetails,
	}
	if c.ResolvedAt != nil {
		res.ResolvedAt = syncdomain.FormatTimestamp(*c.ResolvedAt)
	}
	return res
}

func parseUserID(s string) (*int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("user_id: %w", err)
	}
	return &id, nil
}
