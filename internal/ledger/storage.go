package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"txexport/internal/components/assert"
	"txexport/internal/components/chrono"
	"txexport/internal/components/db"
)

// Storage is the single key/value slot a Session is persisted into.
//
// note: fault injection point
type Storage interface {
	// Load returns a fresh session when nothing has been saved yet.
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, session Session) error
	Clear(ctx context.Context) error
}

func decodeSession(value []byte) (Session, error) {
	session := NewSession()
	err := json.Unmarshal(value, &session)
	if err != nil {
		return Session{}, fmt.Errorf("decode session: %w", err)
	}
	session.normalize()
	return session, nil
}

// SqliteStorage keeps the session as JSON in one row of the Slot table.
type SqliteStorage struct {
	qry    *db.Queries
	makeTx db.MakeTx
	key    string
	time   chrono.API
}

func NewSqliteStorage(database *sql.DB, time chrono.API) (SqliteStorage, error) {
	assert.NotNil(time)

	_, err := database.Exec(db.Schema)
	if err != nil {
		return SqliteStorage{}, fmt.Errorf("apply schema: %w", err)
	}
	return SqliteStorage{
		qry:    db.New(database),
		makeTx: db.NewMakeTx(database),
		key:    db.SessionKey,
		time:   time,
	}, nil
}

func (s SqliteStorage) Load(ctx context.Context) (Session, error) {
	slot, err := s.qry.GetSlot(ctx, s.key)
	if errors.Is(err, sql.ErrNoRows) {
		return NewSession(), nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("get slot: %w", err)
	}
	return decodeSession([]byte(slot.Value))
}

func (s SqliteStorage) Save(ctx context.Context, session Session) error {
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return err
	}
	defer discard()

	err = tx.PutSlot(ctx, db.PutSlotParams{
		Key:       s.key,
		Value:     string(value),
		UpdatedAt: s.time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("put slot: %w", err)
	}
	return commit()
}

func (s SqliteStorage) Clear(ctx context.Context) error {
	err := s.qry.DeleteSlot(ctx, s.key)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// MemoryStorage keeps the serialized session in memory, so every Load
// returns an independent copy just like a real slot would.
type MemoryStorage struct {
	mu    sync.Mutex
	value []byte
	saves int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value == nil {
		return NewSession(), nil
	}
	return decodeSession(m.value)
}

func (m *MemoryStorage) Save(ctx context.Context, session Session) error {
	value, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	m.mu.Lock()
	m.value = value
	m.saves++
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.value = nil
	m.mu.Unlock()
	return nil
}

// Saves returns how many times Save has been called.
func (m *MemoryStorage) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
