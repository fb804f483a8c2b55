package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBucket struct{ err error }

func (f fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, f.err
}

func newMockDB(t *testing.T, runs, troubled int) *HealthChecker {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectPing()
	mock.ExpectQuery("FROM autopilot_runs").
		WillReturnRows(sqlmock.NewRows([]string{"count", "troubled"}).AddRow(runs, troubled))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewHealthChecker(db, rdb, fakeBucket{}, "autopilot-runs")
}

func serveHealth(t *testing.T, hc *HealthChecker, path string) (int, map[string]any) {
	t.Helper()
	router := SetupRoutes(NewHandlers(nil), hc, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthAllComponentsUp(t *testing.T) {
	hc := newMockDB(t, 4, 0)

	code, body := serveHealth(t, hc, "/health")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	for _, name := range []string{"database", "redis", "archive", "cycles"} {
		assert.Equal(t, "up", checks[name].(map[string]any)["status"], name)
	}
}

func TestHealthDegradedByFailingCycles(t *testing.T) {
	hc := newMockDB(t, 4, 1)

	code, body := serveHealth(t, hc, "/health/ready")

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, true, body["ready"])
}

func TestHealthArchiveUnreachable(t *testing.T) {
	hc := newMockDB(t, 0, 0)
	hc.s3Client = fakeBucket{err: errors.New("access denied")}

	_, body := serveHealth(t, hc, "/health")

	assert.Equal(t, "degraded", body["status"])
	archive := body["checks"].(map[string]any)["archive"].(map[string]any)
	assert.Equal(t, "down", archive["status"])
}

func TestReadinessFailsWhenDatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectQuery("FROM autopilot_runs").WillReturnError(errors.New("connection refused"))

	code, body := serveHealth(t, NewHealthChecker(db, nil, nil, ""), "/health/ready")

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
}
