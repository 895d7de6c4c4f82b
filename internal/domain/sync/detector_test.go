package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_CheckUpdate(t *testing.T) {
	server := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		server   time.Time
		data     map[string]any
		want     ConflictType
		wantCode ErrorCode
	}{
		{name: "no client version", server: server, data: map[string]any{"name": "x"}},
		{name: "same version", server: server, data: map[string]any{"updated_at": "2024-01-01T10:00:00.000Z"}},
		{name: "same version camelCase", server: server, data: map[string]any{"updatedAt": "2024-01-01T10:00:00Z"}},
		{name: "sub-millisecond difference", server: server.Add(400 * time.Microsecond),
			data: map[string]any{"updated_at": "2024-01-01T10:00:00.000Z"}},
		{name: "zone-less client version", server: server, data: map[string]any{"updated_at": "2024-01-01T10:00:00"}},
		{name: "stale client version", server: server,
			data: map[string]any{"updated_at": "2024-01-01T09:59:00.000Z"}, want: ConflictVersionMismatch},
		{name: "newer client version", server: server,
			data: map[string]any{"updated_at": "2024-01-01T10:00:00.001Z"}, want: ConflictVersionMismatch},
		{name: "server without version", data: map[string]any{"updated_at": "2024-01-01T09:59:00.000Z"}},
		{name: "malformed client version", server: server,
			data: map[string]any{"updated_at": "yesterday"}, wantCode: CodeInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := Detector{}.CheckUpdate(tt.server, tt.data)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, CodeOf(err))
				return
			}
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, det)
				return
			}
			require.NotNil(t, det)
			assert.Equal(t, tt.want, det.Type)
			assert.NotEmpty(t, det.Details)
		})
	}
}

func TestDetector_CheckDelete(t *testing.T) {
	server := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		data map[string]any
		want ConflictType
	}{
		{name: "nil payload"},
		{name: "client saw current version", data: map[string]any{"updated_at": "2024-01-01T10:00:00.000Z"}},
		{name: "client newer than server", data: map[string]any{"updated_at": "2024-01-01T11:00:00.000Z"}},
		{name: "server modified later", data: map[string]any{"updated_at": "2024-01-01T09:00:00.000Z"}, want: ConflictDeleteUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, err := Detector{}.CheckDelete(server, tt.data)
			require.NoError(t, err)
			if tt.want == "" {
				assert.Nil(t, det)
				return
			}
			require.NotNil(t, det)
			assert.Equal(t, tt.want, det.Type)
			require.NotNil(t, det.Client)
			assert.Equal(t, server, det.Server)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "2024-01-02T12:00:00.000Z", want: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)},
		{in: "2024-01-02T14:00:00.123+02:00", want: time.Date(2024, 1, 2, 12, 0, 0, 123e6, time.UTC)},
		{in: "2024-01-02T12:00:00.123456", want: time.Date(2024, 1, 2, 12, 0, 0, 123e6, time.UTC)},
		{in: "2024-01-02 12:00:00", want: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)},
		{in: "", wantErr: true},
		{in: "02/01/2024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
	assert.Equal(t, "2024-01-02T12:00:00.120Z", FormatTimestamp(time.Date(2024, 1, 2, 12, 0, 0, 120e6, time.UTC)))
}

func TestCursor_RoundTrip(t *testing.T) {
	c := Cursor{At: time.Date(2024, 1, 2, 12, 0, 0, 5e6, time.UTC), Kind: EntitySale, ID: 77}
	got, err := DecodeCursor(c.Encode())
	require.NoError(t, err)
	assert.True(t, c.At.Equal(got.At))
	assert.Equal(t, c.Kind, got.Kind)
	assert.Equal(t, c.ID, got.ID)

	for _, bad := range []string{"!!!", "bm90LWEtY3Vyc29y", Cursor{Kind: "receipt"}.Encode()} {
		_, err := DecodeCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestLowerBound(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	at := since.Add(time.Hour)
	cur := &Cursor{At: at, Kind: EntitySale, ID: 10}

	assert.Equal(t, Watermark{UpdatedAt: since, ID: 1<<63 - 1}, lowerBound(since, nil, EntitySale))
	assert.Equal(t, Watermark{UpdatedAt: at, ID: 1<<63 - 1}, lowerBound(since, cur, EntityProduct))
	assert.Equal(t, Watermark{UpdatedAt: at, ID: 10}, lowerBound(since, cur, EntitySale))
	assert.Equal(t, Watermark{UpdatedAt: at, ID: 0}, lowerBound(since, cur, EntityStockMovement))
}
