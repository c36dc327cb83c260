package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dmitrijs2005/goalboard/internal/client/migrations"
	"github.com/dmitrijs2005/goalboard/internal/client/models"
	"github.com/dmitrijs2005/goalboard/internal/client/remote"
	"github.com/dmitrijs2005/goalboard/internal/common"
	"github.com/dmitrijs2005/goalboard/internal/dbx"
	"github.com/dmitrijs2005/goalboard/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// ---- helpers ----

func setupQueue(t *testing.T, applier Applier, opts ...Option) *Queue {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := dbx.Open(context.Background(), "sqlite", dsn, migrations.Migrations, "sqlite3")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	q := New(NewSQLiteRepository(db), applier, logging.Nop(), opts...)
	require.NoError(t, q.Init(context.Background()))
	return q
}

// fakeApplier replays scripted errors in call order; nil means success.
type fakeApplier struct {
	mu      sync.Mutex
	errs    []error
	applied []common.Operation
	block   chan struct{}
}

func (f *fakeApplier) Apply(ctx context.Context, op common.Operation) (common.Row, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	if err != nil {
		return common.Row{}, err
	}
	f.applied = append(f.applied, op)
	return common.Row{ID: fmt.Sprintf("srv-%d", len(f.applied)), CreatedAt: time.Now(), Data: op.Data}, nil
}

func (f *fakeApplier) tables() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, op := range f.applied {
		out = append(out, op.Table)
	}
	return out
}

var owner = models.Confirmed("u1")

func post(local int64) Mutation {
	return InsertFeedPost{
		LocalID: models.Provisional(local),
		Fields:  models.FeedPostFields{UserID: owner, UserName: "Ann", Content: "hi"},
	}
}

func dailyLog(count int) Mutation {
	return UpsertDailyLog{
		Fields: models.DailyLogFields{UserID: owner, Date: "2026-10-14", Category: models.CategoryReviews, Count: count},
	}
}

// ---- mutations ----

func TestUpsertDailyLog_FixesConflictKey(t *testing.T) {
	op, err := dailyLog(5).Operation()
	require.NoError(t, err)

	assert.Equal(t, common.OpUpsert, op.Type)
	assert.Equal(t, common.TableDailyLogs, op.Table)
	assert.Equal(t, "user_id,date,category", op.ConflictKey)

	var data map[string]any
	require.NoError(t, json.Unmarshal(op.Data, &data))
	assert.Equal(t, "u1", data["user_id"])
	assert.EqualValues(t, 5, data["count"])
	assert.NotContains(t, data, "id")
}

func TestMutations_RejectProvisionalReferences(t *testing.T) {
	temp := models.Provisional(99)

	tests := []struct {
		name string
		m    Mutation
	}{
		{"log owner", UpsertDailyLog{Fields: models.DailyLogFields{UserID: temp}}},
		{"post owner", InsertFeedPost{Fields: models.FeedPostFields{UserID: temp, Content: "x"}}},
		{"like on pending post", InsertFeedLike{Fields: models.FeedLikeFields{PostID: temp, UserID: owner}}},
		{"update pending user", UpdateUser{ID: temp}},
		{"delete pending appointment", DeleteAppointment{ID: temp}},
		{"delete unset comment", DeleteFeedComment{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.m.Operation()
			assert.True(t, errors.Is(err, ErrNotAddressable), "got %v", err)
		})
	}
}

func TestMutations_FixTables(t *testing.T) {
	tests := []struct {
		m     Mutation
		table string
		typ   common.OpType
	}{
		{InsertUser{LocalID: models.Provisional(1), Fields: models.UserFields{Name: "A"}}, common.TableUsers, common.OpInsert},
		{UpdateUser{ID: owner}, common.TableUsers, common.OpUpdate},
		{DeleteUser{ID: owner}, common.TableUsers, common.OpDelete},
		{InsertAppointment{Fields: models.AppointmentFields{UserID: owner}}, common.TableAppointments, common.OpInsert},
		{UpdateAppointment{ID: models.Confirmed("a1"), Fields: models.AppointmentFields{UserID: owner}}, common.TableAppointments, common.OpUpdate},
		{DeleteFeedPost{ID: models.Confirmed("p1")}, common.TableFeedPosts, common.OpDelete},
		{UpdateFeedPost{ID: models.Confirmed("p1"), Fields: models.FeedPostFields{UserID: owner}}, common.TableFeedPosts, common.OpUpdate},
		{InsertFeedLike{Fields: models.FeedLikeFields{PostID: models.Confirmed("p1"), UserID: owner}}, common.TableFeedLikes, common.OpInsert},
		{DeleteFeedLike{ID: models.Confirmed("l1")}, common.TableFeedLikes, common.OpDelete},
		{InsertFeedComment{Fields: models.FeedCommentFields{PostID: models.Confirmed("p1"), UserID: owner}}, common.TableFeedComments, common.OpInsert},
	}
	for _, tt := range tests {
		op, err := tt.m.Operation()
		require.NoError(t, err)
		assert.Equal(t, tt.table, op.Table)
		assert.Equal(t, tt.typ, op.Type)
	}
}

// ---- queue ----

func TestEnqueue_BeforeInit(t *testing.T) {
	q := New(NewSQLiteRepository(nil), &fakeApplier{}, logging.Nop())
	assert.ErrorIs(t, q.Enqueue(context.Background(), dailyLog(1)), ErrNotInitialized)

	_, err := q.Process(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestEnqueue_RejectsUnaddressable(t *testing.T) {
	q := setupQueue(t, &fakeApplier{})
	ctx := context.Background()

	err := q.Enqueue(ctx, InsertFeedPost{Fields: models.FeedPostFields{UserID: models.Provisional(5), Content: "x"}})
	assert.ErrorIs(t, err, ErrNotAddressable)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcess_DrainsInOrderAndAcknowledges(t *testing.T) {
	fa := &fakeApplier{}
	q := setupQueue(t, fa)
	ctx := context.Background()

	var acked []string
	q.OnAck(func(_ context.Context, op common.Operation, row common.Row) {
		acked = append(acked, op.LocalID+"->"+row.ID)
	})

	require.NoError(t, q.Enqueue(ctx, post(10)))
	require.NoError(t, q.Enqueue(ctx, dailyLog(5)))
	require.NoError(t, q.Enqueue(ctx, post(11)))

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "temp_10", pending[0].Op.LocalID)

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 3}, res)

	assert.Equal(t, []string{common.TableFeedPosts, common.TableDailyLogs, common.TableFeedPosts}, fa.tables())
	assert.Equal(t, []string{"temp_10->srv-1", "->srv-2", "temp_11->srv-3"}, acked)
}

func TestProcess_TransientFailureKeepsOrder(t *testing.T) {
	fa := &fakeApplier{errs: []error{nil, fmt.Errorf("dial: %w", remote.ErrUnavailable)}}
	q := setupQueue(t, fa)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, post(1)))
	require.NoError(t, q.Enqueue(ctx, post(2)))
	require.NoError(t, q.Enqueue(ctx, post(3)))

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 2, res.Remaining)

	pending, err := q.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "temp_2", pending[0].Op.LocalID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "unavailable")

	res, err = q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
	assert.Zero(t, res.Remaining)

	require.Len(t, fa.applied, 3)
	assert.Equal(t, "temp_3", fa.applied[2].LocalID)
}

func TestProcess_RejectedOperationIsParked(t *testing.T) {
	fa := &fakeApplier{errs: []error{fmt.Errorf("bad payload: %w", remote.ErrRejected)}}
	q := setupQueue(t, fa)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, post(1)))
	require.NoError(t, q.Enqueue(ctx, post(2)))

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Applied: 1, Failed: 1}, res)

	failed, err := q.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "temp_1", failed[0].Op.LocalID)
	assert.Equal(t, StatusFailed, failed[0].Status)
}

func TestProcess_DeleteOfMissingRecordCountsAsApplied(t *testing.T) {
	fa := &fakeApplier{errs: []error{remote.ErrNotFound}}
	q := setupQueue(t, fa)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, DeleteFeedLike{ID: models.Confirmed("l1")}))

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
}

func TestProcess_ConcurrentCallIsBusy(t *testing.T) {
	fa := &fakeApplier{block: make(chan struct{})}
	q := setupQueue(t, fa)
	ctx := context.Background()
	require.NoError(t, q.Enqueue(ctx, post(1)))

	done := make(chan Result)
	go func() {
		res, _ := q.Process(ctx)
		done <- res
	}()

	require.Eventually(t, func() bool { return q.draining.Load() }, time.Second, time.Millisecond)

	res, err := q.Process(ctx)
	require.NoError(t, err)
	assert.True(t, res.Busy)

	close(fa.block)
	assert.Equal(t, 1, (<-done).Applied)
}

func TestFlush_DropsPending(t *testing.T) {
	q := setupQueue(t, &fakeApplier{})
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, post(1)))
	require.NoError(t, q.Enqueue(ctx, post(2)))

	n, err := q.Flush(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	left, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, left)
}

func TestStartInterval_DrainsPeriodically(t *testing.T) {
	fa := &fakeApplier{}
	q := setupQueue(t, fa, WithInterval(10*time.Millisecond))
	ctx := context.Background()

	q.StartInterval(ctx)
	q.StartInterval(ctx)
	require.NoError(t, q.Enqueue(ctx, dailyLog(1)))

	assert.Eventually(t, func() bool { return len(fa.tables()) == 1 }, time.Second, 5*time.Millisecond)

	q.StopInterval()
	q.StopInterval()
}

func TestSQLiteRepository_CountReportsQueryErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLiteRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sync_queue`).
		WithArgs(string(StatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	n, err := repo.Count(context.Background(), StatusPending)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM sync_queue`).
		WithArgs(string(StatusFailed)).
		WillReturnError(errors.New("database is locked"))
	_, err = repo.Count(context.Background(), StatusFailed)
	require.ErrorContains(t, err, "failed to count queue")

	require.NoError(t, mock.ExpectationsWereMet())
}
