package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgres(t *testing.T) Postgres {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("pong"),
		tcpostgres.WithUsername("pong"),
		tcpostgres.WithPassword("pong"),
		tc.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate postgres: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(ctx, db))
	return Postgres{DB: db}
}

func TestPostgresLifecycle(t *testing.T) {
	pg := setupPostgres(t)
	ctx := context.Background()
	begin := time.Now().UTC().Truncate(time.Millisecond)

	opened := Opened{MatchID: "m1", QueueKind: "RANK", Players: [2]string{"alice", "bob"}, BeginDate: begin}
	require.NoError(t, pg.MatchOpened(ctx, opened))
	// Recording the same opening twice is harmless.
	require.NoError(t, pg.MatchOpened(ctx, opened))

	recent, err := pg.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Nil(t, recent[0].EndDate)
	assert.Empty(t, recent[0].WinnerID)

	end := begin.Add(3 * time.Minute)
	require.NoError(t, pg.MatchClosed(ctx, Closed{MatchID: "m1", EndDate: end, WinnerID: "bob", Reason: "score", Score: [2]int{7, 10}}))

	recent, err = pg.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	got := recent[0]
	assert.Equal(t, [2]string{"alice", "bob"}, got.Players)
	assert.Equal(t, "bob", got.WinnerID)
	assert.Equal(t, "score", got.Reason)
	assert.Equal(t, [2]int{7, 10}, got.Score)
	require.NotNil(t, got.EndDate)
	assert.True(t, end.Equal(*got.EndDate))
}

func TestPostgresCloseUnknownMatch(t *testing.T) {
	pg := setupPostgres(t)

	err := pg.MatchClosed(context.Background(), Closed{MatchID: "missing", EndDate: time.Now(), Reason: "aborted"})
	assert.ErrorIs(t, err, ErrUnknownMatch)
}
