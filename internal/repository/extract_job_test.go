package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/quote-compare/constants"
	"github.com/joseph-ayodele/quote-compare/internal/common"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), Config{}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(nil) })
	return db
}

func TestExtractJobLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	require.NoError(t, HealthCheck(ctx, db, time.Second, nil))

	repo := NewExtractJobRepository(db, nil)

	job, err := repo.Start(ctx, "s1", "a.pdf", "abc123")
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusRunning, job.Status)

	require.NoError(t, repo.Advance(ctx, job.ID, constants.JobStatusTextExtracted, constants.MethodText, 2))
	require.NoError(t, repo.Advance(ctx, job.ID, constants.JobStatusRequestSent, constants.MethodText, 2))
	require.NoError(t, repo.FinishSuccess(ctx, job.ID, `{"氏名":"山田"}`, `{"氏名":"山田","ファイル名":"a.pdf"}`, "gemini-2.5-flash"))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusNormalized, got.Status)
	assert.Equal(t, constants.MethodText, got.Method)
	assert.Equal(t, 2, got.Pages)
	assert.Equal(t, "gemini-2.5-flash", got.ModelName)
	assert.True(t, job.StartedAt.Equal(got.StartedAt))
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.Status.Terminal())
}

func TestExtractJobFailureKeepsRaw(t *testing.T) {
	ctx := context.Background()
	repo := NewExtractJobRepository(openTestDB(t), nil)

	job, err := repo.Start(ctx, "s1", "bad.pdf", "h")
	require.NoError(t, err)
	require.NoError(t, repo.FinishFailure(ctx, job.ID, string(common.StageNormalize), "not a JSON object", "申し訳ありません"))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusFailed, got.Status)
	assert.Equal(t, "normalize", got.Stage)
	assert.Equal(t, "申し訳ありません", got.RawResponse)
}

func TestListBySession(t *testing.T) {
	ctx := context.Background()
	r := NewExtractJobRepository(openTestDB(t), nil).(*extractJobRepo)

	base := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	i := 0
	r.now = func() time.Time { i++; return base.Add(time.Duration(i) * time.Minute) }

	for _, name := range []string{"1.pdf", "2.pdf", "3.pdf"} {
		_, err := r.Start(ctx, "s1", name, "h")
		require.NoError(t, err)
	}
	_, err := r.Start(ctx, "other", "x.pdf", "h")
	require.NoError(t, err)

	jobs, err := r.ListBySession(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "3.pdf", jobs[0].FileName)
	assert.Equal(t, "1.pdf", jobs[2].FileName)

	jobs, err = r.ListBySession(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestGetMissing(t *testing.T) {
	_, err := NewExtractJobRepository(openTestDB(t), nil).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.Rebind("SELECT 1 WHERE a = ? AND b = ?"))
	lite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, "a = ?", lite.Rebind("a = ?"))
}
