package audithandler

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrpay/internal/domain/audit"
	"hrpay/internal/domain/auth"
)

type allowAll struct{ allowed bool }

func (a allowAll) HasPermission(context.Context, auth.Actor, string) (bool, error) {
	return a.allowed, nil
}

func seededRouter(t *testing.T, allowed bool) http.Handler {
	t.Helper()
	mem := audit.NewMemory()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, typ := range []string{"PAYROLL_PROCESSED", "PAYROLL_EMPLOYEE_APPROVAL", "PAYROLL_FINANCE_APPROVAL"} {
		require.NoError(t, mem.Record(context.Background(), audit.Event{
			Type:      typ,
			Domain:    "payroll",
			ActorID:   "u-hr",
			EntityID:  "rec-1",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	h := NewHandler(mem, allowAll{allowed: allowed}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithActor(req.Context(), auth.Actor{UserID: "u-hr", Role: auth.RoleHR})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func TestListEventsPaginatesNewestFirst(t *testing.T) {
	router := seededRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-Total-Count"))

	var body struct {
		Data []audit.Event `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "PAYROLL_FINANCE_APPROVAL", body.Data[0].Type)
	assert.Equal(t, "PAYROLL_EMPLOYEE_APPROVAL", body.Data[1].Type)
}

func TestListEventsFiltersByType(t *testing.T) {
	router := seededRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events?type=PAYROLL_PROCESSED", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
}

func TestExportEventsWritesCSV(t *testing.T) {
	router := seededRouter(t, true)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events/export", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "type", rows[0][1])
	assert.Equal(t, "2024-06-01T09:02:00Z", rows[1][6])
}

func TestAuditRoutesRequirePermission(t *testing.T) {
	router := seededRouter(t, false)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type failingCount struct {
	*audit.Memory
}

func (failingCount) Count(context.Context, audit.Filter) (int, error) {
	return 0, errors.New("connection reset")
}

func TestListEventsFailsWhenCountFails(t *testing.T) {
	mem := audit.NewMemory()
	require.NoError(t, mem.Record(context.Background(), audit.Event{Type: "PAYROLL_PROCESSED", Domain: "payroll", ActorID: "u-hr"}))
	h := NewHandler(failingCount{Memory: mem}, allowAll{allowed: true}, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithActor(req.Context(), auth.Actor{UserID: "u-hr", Role: auth.RoleHR})))
		})
	})
	h.RegisterRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/audit/events", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Total-Count"))
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "audit_list_failed", body.Error.Code)
}
