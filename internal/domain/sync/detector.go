package sync

import (
	"fmt"
	"time"
)

// Detection результат проверки операции на конфликт
type Detection struct {
	Type    ConflictType
	Client  *time.Time
	Server  time.Time
	Details string
}

// Detector сравнивает версию клиента (updated_at) с состоянием сервера.
// Время сравнивается с точностью хранилища (миллисекунды)
type Detector struct{}

// CheckUpdate VERSION_MISMATCH, если клиент прислал updated_at и он не совпадает с серверным.
// Без updated_at запись проходит (last-writer-wins)
func (Detector) CheckUpdate(server time.Time, data map[string]any) (*Detection, error) {
	client, err := clientUpdatedAt(data)
	if err != nil {
		return nil, err
	}
	if client == nil || server.IsZero() {
		return nil, nil
	}
	if Truncate(server).Equal(Truncate(*client)) {
		return nil, nil
	}
	return &Detection{
		Type:   ConflictVersionMismatch,
		Client: client,
		Server: server,
		Details: fmt.Sprintf("version mismatch: client updated_at %s, server updated_at %s",
			FormatTimestamp(*client), FormatTimestamp(server)),
	}, nil
}

// CheckDelete DELETE_UPDATE, если сервер изменил сущность строго позже версии клиента
func (Detector) CheckDelete(server time.Time, data map[string]any) (*Detection, error) {
	client, err := clientUpdatedAt(data)
	if err != nil {
		return nil, err
	}
	if client == nil || server.IsZero() {
		return nil, nil
	}
	if !Truncate(server).After(Truncate(*client)) {
		return nil, nil
	}
	return &Detection{
		Type:   ConflictDeleteUpdate,
		Client: client,
		Server: server,
		Details: fmt.Sprintf("entity modified on server at %s after client version %s",
			FormatTimestamp(server), FormatTimestamp(*client)),
	}, nil
}
