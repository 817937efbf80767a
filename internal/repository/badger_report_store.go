package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"FinSelect/internal/domain/models"
	domrepo "FinSelect/internal/domain/repository"
	applogger "FinSelect/pkg/logger"

	"github.com/dgraph-io/badger/v4"
)

// BadgerReportStore persists reports in an embedded Badger database so a
// single node keeps its history across restarts without Redis.
type BadgerReportStore struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenBadgerReportStore opens (or creates) the database at dir. An empty dir
// keeps everything in memory.
func OpenBadgerReportStore(dir string, ttl time.Duration, l *applogger.Logger) (*BadgerReportStore, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create report dir %s: %w", dir, err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if l != nil {
		opts = opts.WithLogger(badgerLogger{l})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerReportStore{db: db, ttl: ttl}, nil
}

func (s *BadgerReportStore) Save(_ context.Context, r *models.ModelReport) error {
	if r.ID == "" {
		return errors.New("save report: empty id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(reportKey(r.ID)), data)
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

func (s *BadgerReportStore) Get(_ context.Context, id string) (*models.ModelReport, error) {
	var r models.ModelReport
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportKey(id)))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, &r) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domrepo.ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	return &r, nil
}

// Acquire sets a lock key inside a transaction; a concurrent holder makes the
// commit conflict, which counts as not acquired.
func (s *BadgerReportStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, func(), error) {
	k := []byte(lockKey(key))
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(k); err == nil {
			return badger.ErrConflict
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.SetEntry(badger.NewEntry(k, []byte("locked")).WithTTL(ttl))
	})
	if errors.Is(err, badger.ErrConflict) {
		return false, func() {}, nil
	}
	if err != nil {
		return false, func() {}, fmt.Errorf("acquire %s: %w", key, err)
	}
	release := func() {
		_ = s.db.Update(func(txn *badger.Txn) error { return txn.Delete(k) })
	}
	return true, release, nil
}

func (s *BadgerReportStore) Close() error {
	return s.db.Close()
}

type badgerLogger struct{ l *applogger.Logger }

func (b badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(fmt.Sprintf(format, args...), applogger.String("component", "badger"))
}

func (b badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(fmt.Sprintf(format, args...), applogger.String("component", "badger"))
}

func (b badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...), applogger.String("component", "badger"))
}

func (b badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(fmt.Sprintf(format, args...), applogger.String("component", "badger"))
}
