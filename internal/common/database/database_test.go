package database

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"conversation-orchestrator/internal/common/config"
)

func setupMockDB(t *testing.T) (*PostgresClient, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresFromDB(db), mock
}

func TestPostgres_Migrate(t *testing.T) {
	client, mock := setupMockDB(t)

	for _, stmt := range SchemaStatements(8) {
		mock.ExpectExec(regexp.QuoteMeta(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, client.Migrate(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, SchemaStatements(8)[4], "vector(8)")
}

func TestPostgres_MigrateStopsOnFailure(t *testing.T) {
	client, mock := setupMockDB(t)

	stmts := SchemaStatements(4)
	mock.ExpectExec(regexp.QuoteMeta(stmts[0])).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(stmts[1])).WillReturnError(errors.New("permission denied"))

	err := client.Migrate(context.Background(), 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration step 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_WithTx(t *testing.T) {
	t.Run("commit", func(t *testing.T) {
		client, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectExec("UPDATE escalations").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := client.WithTx(context.Background(), func(tx *sql.Tx) error {
			_, err := tx.Exec("UPDATE escalations SET status = 'resolved'")
			return err
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback", func(t *testing.T) {
		client, mock := setupMockDB(t)
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := client.WithTx(context.Background(), func(tx *sql.Tx) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRedis_Ping(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	assert.NoError(t, client.Ping(context.Background()))
}

func TestRedisOptions(t *testing.T) {
	t.Run("url address", func(t *testing.T) {
		opts, err := redisOptions(config.RedisConfig{Address: "redis://:secret@cache.internal:6380/3"})
		require.NoError(t, err)
		assert.Equal(t, "cache.internal:6380", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 10, opts.PoolSize)
	})

	t.Run("config overrides url", func(t *testing.T) {
		opts, err := redisOptions(config.RedisConfig{
			Address:  "redis://cache.internal:6380/3",
			Password: "from-env",
			DB:       5,
			PoolSize: 32,
		})
		require.NoError(t, err)
		assert.Equal(t, "from-env", opts.Password)
		assert.Equal(t, 5, opts.DB)
		assert.Equal(t, 32, opts.PoolSize)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := redisOptions(config.RedisConfig{Address: "redis://cache.internal:6380/notadb"})
		assert.Error(t, err)
	})
}

func newFakeElasticsearch(t *testing.T, handler http.HandlerFunc) *ElasticsearchClient {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := NewElasticsearch(config.ElasticsearchConfig{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return client
}

func TestElasticsearch_EnsureIndex(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		var created int32
		client := newFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodHead:
				w.WriteHeader(http.StatusNotFound)
			case http.MethodPut:
				atomic.AddInt32(&created, 1)
				assert.Equal(t, "/knowledge", r.URL.Path)
				_, _ = w.Write([]byte(`{"acknowledged":true}`))
			}
		})

		require.NoError(t, client.EnsureIndex(context.Background(), "knowledge", KnowledgeIndexMapping))
		assert.Equal(t, int32(1), atomic.LoadInt32(&created))
	})

	t.Run("existing index is left alone", func(t *testing.T) {
		client := newFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodHead {
				t.Errorf("unexpected %s", r.Method)
			}
			w.WriteHeader(http.StatusOK)
		})

		assert.NoError(t, client.EnsureIndex(context.Background(), "knowledge", KnowledgeIndexMapping))
	})

	t.Run("ping", func(t *testing.T) {
		client := newFakeElasticsearch(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		assert.NoError(t, client.Ping())
	})
}
