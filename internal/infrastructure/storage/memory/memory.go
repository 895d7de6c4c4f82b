// Package memory хранилище движка синхронизации в памяти процесса.
// Используется в режиме разработки и в тестах движка
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	syncdomain "salesmanager/internal/domain/sync"
)

// Storage реализует хранилища сущностей, конфликтов и журнала
type Storage struct {
	mu        sync.RWMutex
	txMu      sync.Mutex
	state     *state
	conflicts *conflictStore
	logs      *logStore
}

type state struct {
	entities       map[syncdomain.EntityType]map[int64]syncdomain.Entity
	nextID         map[syncdomain.EntityType]int64
	conflicts      map[int64]syncdomain.SyncConflict
	nextConflictID int64
	logs           []syncdomain.SyncLog
}

func newState() *state {
	return &state{
		entities:  map[syncdomain.EntityType]map[int64]syncdomain.Entity{},
		nextID:    map[syncdomain.EntityType]int64{},
		conflicts: map[int64]syncdomain.SyncConflict{},
	}
}

// New создает пустое хранилище
func New() *Storage {
	s := &Storage{state: newState()}
	s.conflicts = &conflictStore{s: s}
	s.logs = &logStore{s: s}
	return s
}

// Stores набор хранилищ для движка синхронизации
func (s *Storage) Stores() syncdomain.Stores {
	return syncdomain.Stores{
		Entities:  s,
		Conflicts: s.conflicts,
		Logs:      s.logs,
		Tx:        s,
	}
}

func (s *Storage) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Storage) Close() error {
	return nil
}

// WithinTx выполняет fn, откатывая при ошибке или панике только записи, сделанные через
// хранилища транзакции. Записи вне транзакции и журнал не затрагиваются, счетчики ID
// не возвращаются, как последовательности в postgres. Транзакции выполняются по одной
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context, tx syncdomain.TxStores) error) (err error) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	undo := &undoLog{}
	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			undo.rollback(s.state)
			s.mu.Unlock()
		}
	}()

	tx := syncdomain.TxStores{
		Entities:  &txEntities{Storage: s, undo: undo},
		Conflicts: &txConflicts{conflictStore: s.conflicts, undo: undo},
	}
	if err = fn(ctx, tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// undoLog шаги отката в порядке записи
type undoLog struct {
	steps []func(st *state)
}

func (u *undoLog) rollback(st *state) {
	for i := len(u.steps) - 1; i >= 0; i-- {
		u.steps[i](st)
	}
}

func (u *undoLog) entity(kind syncdomain.EntityType, id int64, prev syncdomain.Entity, existed bool) {
	u.steps = append(u.steps, func(st *state) {
		if !existed {
			delete(st.entities[kind], id)
			return
		}
		if st.entities[kind] == nil {
			st.entities[kind] = map[int64]syncdomain.Entity{}
		}
		st.entities[kind][id] = prev
	})
}

func (u *undoLog) conflict(id int64, prev syncdomain.SyncConflict, existed bool) {
	u.steps = append(u.steps, func(st *state) {
		if !existed {
			delete(st.conflicts, id)
			return
		}
		st.conflicts[id] = prev
	})
}

type txEntities struct {
	*Storage
	undo *undoLog
}

func (t *txEntities) Save(ctx context.Context, e syncdomain.Entity) (syncdomain.Entity, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	saved, prev, existed, err := t.saveLocked(e)
	if err != nil {
		return nil, err
	}
	t.undo.entity(saved.Kind(), saved.GetID(), prev, existed)
	return saved, nil
}

func (t *txEntities) DeleteByID(ctx context.Context, kind syncdomain.EntityType, id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, existed := t.state.entities[kind][id]
	if !existed {
		return nil
	}
	delete(t.state.entities[kind], id)
	t.undo.entity(kind, id, prev, true)
	return nil
}

type txConflicts struct {
	*conflictStore
	undo *undoLog
}

func (t *txConflicts) Save(ctx context.Context, cf *syncdomain.SyncConflict) (*syncdomain.SyncConflict, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	saved, prev, existed := t.saveLocked(cf)
	t.undo.conflict(saved.ID, prev, existed)
	return saved, nil
}

func (t *txConflicts) Resolve(
	ctx context.Context,
	id int64,
	strategy syncdomain.ResolutionStrategy,
	resolvedBy string,
	at time.Time,
) (*syncdomain.SyncConflict, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	prev := t.s.state.conflicts[id]
	resolved, err := t.resolveLocked(id, strategy, resolvedBy, at)
	if err != nil {
		return nil, err
	}
	t.undo.conflict(id, prev, true)
	return resolved, nil
}

func (s *Storage) FindByID(ctx context.Context, kind syncdomain.EntityType, id int64) (syncdomain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.state.entities[kind][id]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", kind, id, syncdomain.ErrEntityNotFound)
	}
	return cloneEntity(e), nil
}

func (s *Storage) Save(ctx context.Context, e syncdomain.Entity) (syncdomain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	saved, _, _, err := s.saveLocked(e)
	return saved, err
}

// saveLocked пишет сущность и возвращает прежнюю версию для отката
func (s *Storage) saveLocked(e syncdomain.Entity) (saved, prev syncdomain.Entity, existed bool, err error) {
	kind := e.Kind()
	stored := cloneEntity(e)
	if stored == nil {
		return nil, nil, false, fmt.Errorf("unsupported entity %T", e)
	}
	if s.state.entities[kind] == nil {
		s.state.entities[kind] = map[int64]syncdomain.Entity{}
	}

	id := e.GetID()
	if id == 0 {
		s.state.nextID[kind]++
		id = s.state.nextID[kind]
		setID(stored, id)
	} else if id > s.state.nextID[kind] {
		s.state.nextID[kind] = id
	}
	prev, existed = s.state.entities[kind][id]
	s.state.entities[kind][id] = stored
	return cloneEntity(stored), prev, existed, nil
}

func (s *Storage) DeleteByID(ctx context.Context, kind syncdomain.EntityType, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.state.entities[kind], id)
	return nil
}

func (s *Storage) FindUpdatedAfter(
	ctx context.Context,
	kind syncdomain.EntityType,
	after syncdomain.Watermark,
	limit int,
) ([]syncdomain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	since := syncdomain.Truncate(after.UpdatedAt)
	var found []syncdomain.Entity
	for id, e := range s.state.entities[kind] {
		at := syncdomain.Truncate(updatedAt(e))
		if at.After(since) || (at.Equal(since) && id > after.ID) {
			found = append(found, cloneEntity(e))
		}
	}
	sort.Slice(found, func(i, j int) bool {
		ai, aj := updatedAt(found[i]), updatedAt(found[j])
		if !ai.Equal(aj) {
			return ai.Before(aj)
		}
		return found[i].GetID() < found[j].GetID()
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (s *Storage) Count(ctx context.Context, kind syncdomain.EntityType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.state.entities[kind])), nil
}

// Logs записи журнала синхронизации в порядке добавления
func (s *Storage) Logs() []syncdomain.SyncLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]syncdomain.SyncLog(nil), s.state.logs...)
}

type conflictStore struct {
	s *Storage
}

func (c *conflictStore) Save(ctx context.Context, cf *syncdomain.SyncConflict) (*syncdomain.SyncConflict, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	saved, _, _ := c.saveLocked(cf)
	return saved, nil
}

func (c *conflictStore) saveLocked(cf *syncdomain.SyncConflict) (saved *syncdomain.SyncConflict, prev syncdomain.SyncConflict, existed bool) {
	st := c.s.state
	cp := *cf
	if cp.ID == 0 {
		st.nextConflictID++
		cp.ID = st.nextConflictID
	}
	prev, existed = st.conflicts[cp.ID]
	st.conflicts[cp.ID] = cp
	return &cp, prev, existed
}

func (c *conflictStore) FindUnresolved(ctx context.Context, userID *int64) ([]syncdomain.SyncConflict, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	res := []syncdomain.SyncConflict{}
	for _, cf := range c.s.state.conflicts {
		if !cf.Pending() {
			continue
		}
		if userID != nil && cf.UserID != *userID {
			continue
		}
		res = append(res, cf)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (c *conflictStore) FindByID(ctx context.Context, id int64) (*syncdomain.SyncConflict, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()

	cf, ok := c.s.state.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("id %d: %w", id, syncdomain.ErrConflictNotFound)
	}
	return &cf, nil
}

func (c *conflictStore) Resolve(
	ctx context.Context,
	id int64,
	strategy syncdomain.ResolutionStrategy,
	resolvedBy string,
	at time.Time,
) (*syncdomain.SyncConflict, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	return c.resolveLocked(id, strategy, resolvedBy, at)
}

func (c *conflictStore) resolveLocked(
	id int64,
	strategy syncdomain.ResolutionStrategy,
	resolvedBy string,
	at time.Time,
) (*syncdomain.SyncConflict, error) {
	cf, ok := c.s.state.conflicts[id]
	if !ok {
		return nil, fmt.Errorf("id %d: %w", id, syncdomain.ErrConflictNotFound)
	}
	if !cf.Pending() {
		return nil, fmt.Errorf("id %d: %w", id, syncdomain.ErrConflictAlreadyResolved)
	}
	cf.ResolutionStrategy = strategy
	cf.ResolvedBy = resolvedBy
	cf.ResolvedAt = &at
	c.s.state.conflicts[id] = cf
	return &cf, nil
}

type logStore struct {
	s *Storage
}

func (l *logStore) Append(ctx context.Context, rec *syncdomain.SyncLog) error {
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	rec.ID = int64(len(l.s.state.logs) + 1)
	l.s.state.logs = append(l.s.state.logs, *rec)
	return nil
}

func cloneEntity(e syncdomain.Entity) syncdomain.Entity {
	switch v := e.(type) {
	case *syncdomain.Product:
		c := *v
		return &c
	case *syncdomain.Sale:
		c := *v
		return &c
	case *syncdomain.StockMovement:
		c := *v
		return &c
	default:
		return nil
	}
}

func setID(e syncdomain.Entity, id int64) {
	switch v := e.(type) {
	case *syncdomain.Product:
		v.ID = id
	case *syncdomain.Sale:
		v.ID = id
	case *syncdomain.StockMovement:
		v.ID = id
	}
}

func updatedAt(e syncdomain.Entity) time.Time {
	switch v := e.(type) {
	case *syncdomain.Product:
		return v.UpdatedAt
	case *syncdomain.Sale:
		return v.UpdatedAt
	case *syncdomain.StockMovement:
		return v.UpdatedAt
	default:
		return time.Time{}
	}
}
