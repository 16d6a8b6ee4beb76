// Package testutil wires in-memory infrastructure for package tests.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/restaurant/internal/repo"
	"github.com/Skotchmaster/restaurant/pkg/db"
)

// InitTestDB opens a private in-memory SQLite database with all tables migrated.
func InitTestDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, repo.New(gdb).Migrate())

	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

type Event struct {
	Topic string
	Key   string
	Value any
}

// Events records published events.
type Events struct {
	mu     sync.Mutex
	events []Event
	Err    error
}

func (e *Events) PublishEvent(_ context.Context, topic, key string, event any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.events = append(e.events, Event{Topic: topic, Key: key, Value: event})
	return nil
}

func (e *Events) All() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Event, len(e.events))
	copy(out, e.events)
	return out
}

// Types returns the "type" field of every recorded event on topic.
func (e *Events) Types(topic string) []string {
	var out []string
	for _, ev := range e.All() {
		if ev.Topic != topic {
			continue
		}
		if m, ok := ev.Value.(map[string]any); ok {
			if s, ok := m["type"].(string); ok {
				out = append(out, s)
			}
		}
	}
	return out
}
