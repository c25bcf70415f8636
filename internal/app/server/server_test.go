package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"hrpay/internal/domain/auth"
	"hrpay/internal/platform/config"
)

const testSecret = "server-test-secret-with-enough-bytes"

func testConfig() config.Config {
	return config.Config{
		Environment:         "test",
		StoreDriver:         config.StoreMemory,
		JWTSecret:           testSecret,
		MaxBodyBytes:        1 << 20,
		RateLimitPerMinute:  600,
		EnforceSelfApproval: true,
		PayDateOffset:       7 * 24 * time.Hour,
		MetricsEnabled:      true,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := New(context.Background(), testConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func token(t *testing.T, claims auth.Claims) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, claims, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestHealthAndReadiness(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	}
}

func TestPayrollRoutesNeedToken(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/payroll/records", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDraftCreationIsAuditedAndCounted(t *testing.T) {
	app := newTestApp(t)
	hr := token(t, auth.Claims{UserID: "u-hr", EmployeeID: "EMP-0001", RoleName: auth.RoleHR})

	body := `{"payPeriod":"2024-06","employees":[{"employeeId":"EMP-1001","name":"Alice Deng","baseSalary":3000}],"deductions":{"taxRate":15}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/drafts", strings.NewReader(body))
	req.Header.Set("Authorization", hr)
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/v1/audit/events?type=PAYROLL_DRAFTS_CREATED", nil)
	req.Header.Set("Authorization", hr)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot struct {
		Data struct {
			AuditEvents map[string]float64 `json:"auditEvents"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snapshot))
	assert.Equal(t, 1.0, snapshot.Data.AuditEvents["PAYROLL_DRAFTS_CREATED"])
}

func TestAuditRoutesForbiddenForEmployees(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/audit/events", nil)
	req.Header.Set("Authorization", token(t, auth.Claims{UserID: "u-alice", EmployeeID: "EMP-1001", RoleName: auth.RoleEmployee}))
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestReadinessToleratesRedisOutage(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectPing().SetErr(errors.New("dial tcp: connection refused"))
	core, logs := observer.New(zapcore.WarnLevel)
	storeUp := func(context.Context) error { return nil }

	require.NoError(t, readiness(context.Background(), storeUp, rdb, zap.New(core)))
	require.NoError(t, mock.ExpectationsWereMet())
	require.Equal(t, 1, logs.FilterMessageSnippet("redis not ready").Len())
}

func TestReadinessFailsWhenStoreDown(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	storeDown := func(context.Context) error { return errors.New("pool closed") }

	err := readiness(context.Background(), storeDown, rdb, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store")
	assert.NoError(t, mock.ExpectationsWereMet())
}
