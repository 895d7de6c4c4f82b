package migration

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	// Blank import required for PostgreSQL driver registration for migrations
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"golang.org/x/exp/slog"
)

// Migrator интерфейс для самой библиотеки migrate.Migrate
type Migrator interface {
	Up() error
	Down() error
	Close() (error, error)
}

// MigrationEngine фабрика мигратора (чтобы не лезть в ФС и БД в тестах)
type MigrationEngine func(source fs.FS, databaseURL string) (Migrator, error)

type Migration struct {
	source      fs.FS
	databaseURL string
	engine      MigrationEngine
	log         *slog.Logger
}

func NewMigration(source fs.FS, databaseURL string, engine MigrationEngine, log *slog.Logger) *Migration {
	return &Migration{
		source:      source,
		databaseURL: databaseURL,
		engine:      engine,
		log:         log.With("component", "migration"),
	}
}

// DefaultEngine реальная реализация: встроенные SQL файлы через iofs
func DefaultEngine(source fs.FS, databaseURL string) (Migrator, error) {
	d, err := iofs.New(source, ".")
	if err != nil {
		return nil, fmt.Errorf("open migrations source: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", d, databaseURL)
}

// Up применяет все миграции. Отсутствие изменений не ошибка
func (mg *Migration) Up() error {
	return mg.run("up", Migrator.Up)
}

// Down откатывает все миграции
func (mg *Migration) Down() error {
	return mg.run("down", Migrator.Down)
}

func (mg *Migration) run(direction string, step func(Migrator) error) (err error) {
	m, err := mg.engine(mg.source, mg.databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		serr, dberr := m.Close()
		if serr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration source error: %v", err, serr)
			} else {
				err = serr
			}
		}
		if dberr != nil {
			if err != nil {
				err = fmt.Errorf("%w; migration database error: %v", err, dberr)
			} else {
				err = dberr
			}
		}
	}()
	if err := step(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			mg.log.Info("no migrations to apply", "direction", direction)
			return nil
		}
		return fmt.Errorf("%w; migration %s error", err, direction)
	}
	mg.log.Info("migrations applied", "direction", direction)
	return nil
}
