package sync

import (
	"context"
	"encoding/json"
	"fmt"
)

// Recorder сохраняет конфликт со снимками данных клиента и сервера
type Recorder struct {
	clock Clock
}

// NewRecorder создает Recorder
func NewRecorder(clock Clock) *Recorder {
	if clock == nil {
		clock = systemClock
	}
	return &Recorder{clock: clock}
}

// Record собирает SyncConflict и сохраняет его в store текущей транзакции
func (r *Recorder) Record(
	ctx context.Context,
	store ConflictStore,
	op Operation,
	adapter Adapter,
	server Entity,
	det *Detection,
) (*SyncConflict, error) {
	local, err := encodeSnapshot(op.EntityData)
	if err != nil {
		return nil, fmt.Errorf("encode local data: %w", err)
	}

	c := &SyncConflict{
		UserID:          conflictOwner(ctx, op.EntityData),
		EntityType:      op.EntityType,
		EntityID:        op.EntityID,
		ConflictType:    det.Type,
		LocalData:       local,
		CreatedAt:       r.clock(),
		ConflictDetails: det.Details,
	}
	if server != nil {
		serverData, err := encodeSnapshot(adapter.ToMap(server))
		if err != nil {
			return nil, fmt.Errorf("encode server data: %w", err)
		}
		c.ServerData = serverData
	}
	if det.Client != nil {
		v := det.Client.UnixMilli()
		c.LocalVersion = &v
	}
	if !det.Server.IsZero() {
		v := det.Server.UnixMilli()
		c.ServerVersion = &v
	}

	saved, err := store.Save(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("save conflict: %w", err)
	}
	return saved, nil
}

// conflictOwner владелец конфликта: аутентифицированный пользователь,
// затем user_id из данных операции, иначе 0
func conflictOwner(ctx context.Context, data map[string]any) int64 {
	if p, ok := PrincipalFrom(ctx); ok && p.UserID > 0 {
		return p.UserID
	}
	v, ok := attrs(data).lookup("user_id", "userId")
	if !ok {
		return 0
	}
	id, err := toInt(v)
	if err != nil {
		return 0
	}
	return id
}

// encodeSnapshot стабильная сериализация: encoding/json сортирует ключи карты
func encodeSnapshot(data map[string]any) (string, error) {
	if data == nil {
		return "{}", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
