package audit

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/enrollhq/accessgate/pkg/observability"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewStore(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.NoError(t, err)
	return store
}

func TestStoreRecordAndQuery(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		{Time: base, RequestID: "req-1", Action: ActionUserRegister, TargetID: 7},
		{Time: base.Add(time.Minute), RequestID: "req-2", Action: ActionPermissionUpdate, TargetID: 7,
			Detail: map[string]string{"permissions": "consultant,content_manager"}},
		{Time: base.Add(2 * time.Minute), RequestID: "req-3", Action: ActionUserBan, TargetID: 9},
	}
	for _, ev := range events {
		require.NoError(t, store.Record(ctx, ev))
	}

	got, err := store.RecentByTarget(ctx, 7, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, ActionPermissionUpdate, got[0].Action, "newest first")
	assert.Equal(t, "consultant,content_manager", got[0].Detail["permissions"])
	assert.Equal(t, ActionUserRegister, got[1].Action)
	assert.Equal(t, "req-1", got[1].RequestID)
}

func TestStoreRecordDefaultsTime(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Event{Action: ActionRoleSwitch}))

	got, err := store.RecentByTarget(ctx, 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now().UTC(), got[0].Time, time.Minute)
}

func TestStoreRecordLimit(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Event{
			Time:     time.Date(2026, 8, 1, 10, i, 0, 0, time.UTC),
			Action:   ActionPermissionUpdate,
			TargetID: 3,
		}))
	}

	got, err := store.RecentByTarget(ctx, 3, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestStoreRecordInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnResult(sqlmock.NewResult(0, 0))
	store, err := NewStore(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO audit_events").
		WillReturnError(sql.ErrConnDone)

	err = store.Record(context.Background(), Event{Action: ActionUserBan, TargetID: 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to record audit event")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").
		WillReturnError(sql.ErrConnDone)

	_, err = NewStore(db, observability.NewLogger(observability.ErrorLevel, io.Discard))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize audit schema")
}

func TestNopRecorder(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), Event{Action: ActionUserBan}))
}
