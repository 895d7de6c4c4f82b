package sync

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// DeltaProducer выдает изменения сервера после watermark клиента.
//
// Страница собирается в глобальном порядке (updated_at, тип, id) по всем запрошенным типам,
// а в ответе группируется по типам: product, sale, stock_movement. Если страница обрезана
// лимитом, next_sync_timestamp не превышает updated_at последней включенной сущности и
// отступает на 1 мс, когда следующая сущность имеет тот же updated_at. Курсор next_cursor
// позволяет продолжить чтение без повторов внутри одной миллисекунды.
//
// Запрос без курсора всегда продвигает watermark: если отступ вернул бы его к since,
// страница расширяется до конца миллисекунды и может превысить limit.
type DeltaProducer struct {
	registry     *Registry
	entities     EntityStore
	logger       *SyncLogger
	defaultLimit int
	maxLimit     int
	clock        Clock
	log          *slog.Logger
}

// NewDeltaProducer создает DeltaProducer
func NewDeltaProducer(
	registry *Registry,
	entities EntityStore,
	logger *SyncLogger,
	defaultLimit, maxLimit int,
	clock Clock,
	log *slog.Logger,
) *DeltaProducer {
	if clock == nil {
		clock = systemClock
	}
	return &DeltaProducer{
		registry:     registry,
		entities:     entities,
		logger:       logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		clock:        clock,
		log:          log.With("component", "sync_delta"),
	}
}

type candidate struct {
	kind   EntityType
	order  int
	entity Entity
	at     time.Time
}

func (c candidate) less(o candidate) bool {
	if !c.at.Equal(o.at) {
		return c.at.Before(o.at)
	}
	if c.order != o.order {
		return c.order < o.order
	}
	return c.entity.GetID() < o.entity.GetID()
}

// Produce собирает одну страницу дельты
func (d *DeltaProducer) Produce(ctx context.Context, req DeltaRequest) (*DeltaReply, error) {
	start := time.Now()
	if req.LastSyncTimestamp.IsZero() {
		return nil, fmt.Errorf("%w: last_sync_timestamp is required", ErrInvalidTimestamp)
	}
	since := Truncate(req.LastSyncTimestamp)

	var cur *Cursor
	if req.Cursor != "" {
		c, err := DecodeCursor(req.Cursor)
		if err != nil {
			return nil, err
		}
		// курсор старше watermark ничего не добавляет
		if !c.At.Before(since) {
			cur = &c
		}
	}

	limit := d.limit(req.Limit)
	kinds := d.kinds(req.EntityTypes)

	var candidates []candidate
	for _, kind := range kinds {
		after := lowerBound(since, cur, kind)
		found, err := d.entities.FindUpdatedAfter(ctx, kind, after, limit+1)
		if err != nil {
			return nil, fmt.Errorf("find modified %s: %w", kind, err)
		}
		adapter, err := d.registry.Lookup(kind)
		if err != nil {
			return nil, err
		}
		for _, e := range found {
			candidates = append(candidates, candidate{
				kind:   kind,
				order:  kindOrder(kind),
				entity: e,
				at:     Truncate(adapter.LastModified(e)),
			})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].less(candidates[j]) })

	hasMore := len(candidates) > limit
	page := candidates
	if hasMore {
		page = candidates[:limit]
	}

	// без курсора страница, оборванная внутри миллисекунды since+1мс, не сдвинула бы
	// watermark, и повторный запрос вернул бы те же строки. Дочитываем эту миллисекунду целиком
	tie := false
	if cur == nil && hasMore {
		last, next := page[len(page)-1], candidates[limit]
		if next.at.Equal(last.at) && !last.at.Add(-time.Millisecond).After(since) {
			extended, err := d.completeMillisecond(ctx, candidates, kinds, last.at, limit)
			if err != nil {
				return nil, err
			}
			candidates = extended
			n := sort.Search(len(candidates), func(i int) bool { return candidates[i].at.After(last.at) })
			page = candidates[:n]
			hasMore = n < len(candidates)
			tie = true
		}
	}

	now := d.clock()
	reply := &DeltaReply{
		ModifiedEntities:  make([]ModifiedEntity, 0, len(page)),
		DeletedEntities:   []DeletedEntity{},
		ServerTimestamp:   now,
		NextSyncTimestamp: now,
		HasMore:           hasMore,
		SyncSessionID:     uuid.NewString(),
		Statistics: DeltaStatistics{
			ByEntityType:    map[string]int{},
			ByOperationType: map[string]int{},
		},
	}

	if hasMore && len(page) > 0 {
		last := page[len(page)-1]
		watermark := last.at
		if !tie && candidates[limit].at.Equal(watermark) {
			watermark = watermark.Add(-time.Millisecond)
		}
		if watermark.After(now) {
			watermark = now
		}
		reply.NextSyncTimestamp = watermark
		reply.NextCursor = Cursor{At: last.at, Kind: last.kind, ID: last.entity.GetID()}.Encode()
	}

	// в ответе сущности сгруппированы по типам, внутри типа порядок (updated_at, id)
	sort.SliceStable(page, func(i, j int) bool { return page[i].order < page[j].order })
	for _, c := range page {
		adapter, _ := d.registry.Lookup(c.kind)
		m := ModifiedEntity{
			EntityID:      strconv.FormatInt(c.entity.GetID(), 10),
			EntityType:    c.kind,
			EntityData:    adapter.ToMap(c.entity),
			LastModified:  c.at,
			Version:       c.at.UnixMilli(),
			OperationType: OperationUpdate,
		}
		reply.ModifiedEntities = append(reply.ModifiedEntities, m)
		d.collect(&reply.Statistics, m)
	}
	reply.TotalModified = len(reply.ModifiedEntities)
	reply.TotalDeleted = len(reply.DeletedEntities)

	elapsed := time.Since(start).Milliseconds()
	d.log.Info("delta produced", "session_id", reply.SyncSessionID, "since", FormatTimestamp(since),
		"modified", reply.TotalModified, "has_more", reply.HasMore, "duration_ms", elapsed)
	d.logger.Delta(ctx, req, reply, elapsed)

	return reply, nil
}

// completeMillisecond добирает из хранилища сущности с updated_at == at, не попавшие в выборку
// limit+1. Добирать нужно только типы, выборка которых заполнена и оканчивается на at
func (d *DeltaProducer) completeMillisecond(
	ctx context.Context,
	candidates []candidate,
	kinds []EntityType,
	at time.Time,
	limit int,
) ([]candidate, error) {
	for _, kind := range kinds {
		count := 0
		var last candidate
		for _, c := range candidates {
			if c.kind == kind {
				count++
				last = c
			}
		}
		if count <= limit || !last.at.Equal(at) {
			continue
		}

		adapter, err := d.registry.Lookup(kind)
		if err != nil {
			return nil, err
		}
		after := Watermark{UpdatedAt: at, ID: last.entity.GetID()}
		for {
			found, err := d.entities.FindUpdatedAfter(ctx, kind, after, limit+1)
			if err != nil {
				return nil, fmt.Errorf("find modified %s: %w", kind, err)
			}
			var lastAt time.Time
			for _, e := range found {
				lastAt = Truncate(adapter.LastModified(e))
				candidates = append(candidates, candidate{kind: kind, order: kindOrder(kind), entity: e, at: lastAt})
				after.ID = e.GetID()
			}
			if len(found) <= limit || !lastAt.Equal(at) {
				break
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].less(candidates[j]) })
	return candidates, nil
}

func (d *DeltaProducer) collect(stats *DeltaStatistics, m ModifiedEntity) {
	stats.ByEntityType[string(m.EntityType)]++
	stats.ByOperationType[string(m.OperationType)]++
	stats.TotalDataSizeBytes += payloadSize(m.EntityData)
	at := m.LastModified
	if stats.OldestModification == nil || at.Before(*stats.OldestModification) {
		stats.OldestModification = &at
	}
	if stats.NewestModification == nil || at.After(*stats.NewestModification) {
		stats.NewestModification = &at
	}
}

func (d *DeltaProducer) limit(requested int) int {
	if requested <= 0 {
		return d.defaultLimit
	}
	if requested > d.maxLimit {
		return d.maxLimit
	}
	return requested
}

func (d *DeltaProducer) kinds(filter []EntityType) []EntityType {
	all := d.registry.Kinds()
	if len(filter) == 0 {
		return all
	}
	wanted := make(map[EntityType]struct{}, len(filter))
	for _, k := range filter {
		wanted[k] = struct{}{}
	}
	kinds := make([]EntityType, 0, len(all))
	for _, k := range all {
		if _, ok := wanted[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// lowerBound нижняя граница (updated_at, id) для типа kind.
// Без курсора это все сущности строго после since
func lowerBound(since time.Time, cur *Cursor, kind EntityType) Watermark {
	if cur == nil {
		return Watermark{UpdatedAt: since, ID: math.MaxInt64}
	}
	order, curOrder := kindOrder(kind), kindOrder(cur.Kind)
	switch {
	case order < curOrder:
		return Watermark{UpdatedAt: cur.At, ID: math.MaxInt64}
	case order == curOrder:
		return Watermark{UpdatedAt: cur.At, ID: cur.ID}
	default:
		return Watermark{UpdatedAt: cur.At, ID: 0}
	}
}

func kindOrder(kind EntityType) int {
	for i, k := range EntityTypes {
		if k == kind {
			return i
		}
	}
	return len(EntityTypes)
}

// Cursor позиция последней выданной сущности в порядке (updated_at, тип, id)
type Cursor struct {
	At   time.Time
	Kind EntityType
	ID   int64
}

// Encode непрозрачное представление курсора для клиента
func (c Cursor) Encode() string {
	raw := fmt.Sprintf("%d:%s:%d", c.At.UnixMilli(), c.Kind, c.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor разбирает курсор, выданный Encode
func DecodeCursor(s string) (Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 {
		return Cursor{}, fmt.Errorf("%w: malformed value", ErrInvalidCursor)
	}
	ms, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	kind, err := ParseEntityType(parts[1])
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return Cursor{At: time.UnixMilli(ms).UTC(), Kind: kind, ID: id}, nil
}
