package payrollhandler

import (
	"bytes"
	"encoding/json"
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
	"hrpay/internal/domain/payroll"
	"hrpay/internal/transport/http/middleware"
)

const actorHeader = "X-Test-Actor"

var actors = map[string]auth.Actor{
	"hr":       {UserID: "u-hr", EmployeeID: "EMP-0001", Email: "hr@bank.test", Role: auth.RoleHR},
	"finance":  {UserID: "u-fin", EmployeeID: "EMP-0002", Email: "finance@bank.test", Role: auth.RoleFinance},
	"alice":    {UserID: "u-alice", EmployeeID: "EMP-1001", Email: "alice@bank.test", Role: auth.RoleEmployee},
	"bob":      {UserID: "u-bob", EmployeeID: "EMP-1002", Email: "bob@bank.test", Role: auth.RoleEmployee},
	"unlinked": {UserID: "u-unlinked", Email: "contractor@bank.test", Role: auth.RoleEmployee},
}

const draftBody = `{
	"payPeriod": "2024-06",
	"employees": [
		{"employeeId": "EMP-1001", "name": "Alice Deng", "department": "Retail", "position": "Teller", "baseSalary": 3000},
		{"employeeId": "EMP-1002", "name": "Bob Lado", "department": "Retail", "position": "Teller", "baseSalary": 2500}
	],
	"paymentComponents": {"transport": 600},
	"deductions": {"taxRate": 15, "socialSecurityRate": 5, "pensionRate": 3}
}`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type testServer struct {
	router http.Handler
	audit  *audit.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	enforcer, err := auth.NewEnforcer(auth.RolePermissions)
	require.NoError(t, err)

	store := payroll.NewMemoryStore()
	events := audit.NewMemory()
	clock := payroll.WithClock(func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) })

	h := NewHandler(
		payroll.NewLifecycle(store, enforcer, events, clock),
		payroll.NewCoordinator(store, enforcer, events, clock),
		enforcer,
		nil,
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if actor, ok := actors[req.Header.Get(actorHeader)]; ok {
				req = req.WithContext(auth.WithActor(req.Context(), actor))
			}
			next.ServeHTTP(w, req)
		})
	})
	h.RegisterRoutes(r)
	return &testServer{router: r, audit: events}
}

func (s *testServer) do(t *testing.T, actor, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if actor != "" {
		req.Header.Set(actorHeader, actor)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

// processAll runs a draft through creation, readiness and processing and
// returns the records keyed by employee id.
func (s *testServer) processAll(t *testing.T) map[string]payroll.Record {
	t.Helper()
	rec, env := s.do(t, "hr", http.MethodPost, "/payroll/drafts", draftBody)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var draft payroll.Draft
	require.NoError(t, json.Unmarshal(env.Data, &draft))

	rec, _ = s.do(t, "hr", http.MethodPost, "/payroll/drafts/"+draft.ID+"/ready", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(t, "hr", http.MethodPost, "/payroll/drafts/process", `{"draftIds":["`+draft.ID+`"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result payroll.ProcessResult
	require.NoError(t, json.Unmarshal(env.Data, &result))

	out := make(map[string]payroll.Record, len(result.Records))
	for _, r := range result.Records {
		out[r.EmployeeID] = r
	}
	return out
}

func TestCalculateTax(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "alice", http.MethodPost, "/payroll/tax/calculate", `{"grossSalary":3600,"exemptions":{"personal":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var calc payroll.TaxCalculation
	require.NoError(t, json.Unmarshal(env.Data, &calc))
	assert.Equal(t, 345.0, calc.PersonalIncomeTax)
	assert.Equal(t, 288.0, calc.SocialSecurityContribution)
	assert.Equal(t, 180.0, calc.PensionContribution)
}

func TestCalculateTaxRejectsNegativeGross(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "alice", http.MethodPost, "/payroll/tax/calculate", `{"grossSalary":-1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestEndOfService(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "hr", http.MethodPost, "/payroll/end-of-service",
		`{"serviceStart":"2020-01-01","serviceEnd":"2025-01-01","lastBasicSalary":3000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var calc payroll.EndOfServiceCalculation
	require.NoError(t, json.Unmarshal(env.Data, &calc))
	assert.Equal(t, 105, calc.GratuityDays)
	assert.Equal(t, 9550.0, calc.NetEndOfServicePay)

	rec, env = s.do(t, "hr", http.MethodPost, "/payroll/end-of-service",
		`{"serviceStart":"2025-01-01","serviceEnd":"2020-01-01","lastBasicSalary":3000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", env.Error.Code)
}

func TestRoutesRequireActor(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, "", http.MethodGet, "/payroll/records", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateDraftRequiresManage(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "alice", http.MethodPost, "/payroll/drafts", draftBody)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)
	assert.Len(t, s.audit.Events(), 1)
	assert.Equal(t, payroll.EventUnauthorizedAttempt, s.audit.Events()[0].Type)
}

func TestApprovalFlowEndToEnd(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)
	alice := records["EMP-1001"]
	require.Equal(t, payroll.StatusPendingEmployeeApproval, alice.PaymentStatus)
	assert.Equal(t, 2772.0, alice.NetPay)

	rec, env := s.do(t, "alice", http.MethodPost, "/payroll/records/"+alice.ID+"/employee-approval", `{"decision":"Approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated payroll.Record
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, payroll.StatusEmployeeApproved, updated.PaymentStatus)
	assert.Equal(t, payroll.ApprovalPending, updated.FinanceApproval.Status)

	rec, env = s.do(t, "finance", http.MethodPost, "/payroll/records/"+alice.ID+"/finance-approval", `{"decision":"Approved","notes":"ok"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, payroll.StatusFinanceApproved, updated.PaymentStatus)

	rec, env = s.do(t, "finance", http.MethodPost, "/payroll/records/"+records["EMP-1002"].ID+"/finance-approval", `{"decision":"Approved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_transition", env.Error.Code)
}

func TestEmployeeCannotApproveSomeoneElsesRecord(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)

	rec, env := s.do(t, "bob", http.MethodPost, "/payroll/records/"+records["EMP-1001"].ID+"/employee-approval", `{"decision":"Approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", env.Error.Code)
}

func TestFinanceApprovalRequiresCapability(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)

	rec, _ := s.do(t, "hr", http.MethodPost, "/payroll/records/"+records["EMP-1001"].ID+"/finance-approval", `{"decision":"Approved"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApprovalRejectsUnknownDecision(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)

	rec, env := s.do(t, "alice", http.MethodPost, "/payroll/records/"+records["EMP-1001"].ID+"/employee-approval", `{"decision":"Maybe"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestUnknownRecordIsNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, env := s.do(t, "finance", http.MethodGet, "/payroll/records/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "record_not_found", env.Error.Code)

	rec, env = s.do(t, "hr", http.MethodGet, "/payroll/drafts/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "draft_not_found", env.Error.Code)
}

func TestBatchFinanceApproval(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)
	alice := records["EMP-1001"]

	rec, _ := s.do(t, "alice", http.MethodPost, "/payroll/records/"+alice.ID+"/employee-approval", `{"decision":"Approved"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := `{"recordIds":["` + alice.ID + `","` + records["EMP-1002"].ID + `","missing"],"decision":"Approved"}`
	rec, env := s.do(t, "finance", http.MethodPost, "/payroll/records/finance-approval/batch", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result payroll.BatchResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	require.Len(t, result.Updated, 1)
	assert.Equal(t, alice.ID, result.Updated[0].ID)
	assert.ElementsMatch(t, []string{records["EMP-1002"].ID, "missing"}, result.Skipped)

	rec, _ = s.do(t, "finance", http.MethodPost, "/payroll/records/finance-approval/batch", `{"recordIds":[],"decision":"Approved"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecordsIsScopedForEmployees(t *testing.T) {
	s := newTestServer(t)
	s.processAll(t)

	rec, env := s.do(t, "alice", http.MethodGet, "/payroll/records?employeeId=EMP-1002", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var own []payroll.Record
	require.NoError(t, json.Unmarshal(env.Data, &own))
	require.Len(t, own, 1)
	assert.Equal(t, "EMP-1001", own[0].EmployeeID)

	rec, env = s.do(t, "finance", http.MethodGet, "/payroll/records?status=Pending%20Employee%20Approval", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []payroll.Record
	require.NoError(t, json.Unmarshal(env.Data, &all))
	assert.Len(t, all, 2)

	rec, env = s.do(t, "finance", http.MethodGet, "/payroll/records?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Total-Count"))
	var page []payroll.Record
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page, 1)

	rec, _ = s.do(t, "finance", http.MethodGet, "/payroll/records?status=Paid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecordsEmptyForActorWithoutEmployeeID(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)

	rec, env := s.do(t, "unlinked", http.MethodGet, "/payroll/records", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))
	var listed []payroll.Record
	require.NoError(t, json.Unmarshal(env.Data, &listed))
	assert.Empty(t, listed)

	rec, _ = s.do(t, "unlinked", http.MethodGet, "/payroll/records?employeeId=EMP-1001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-Total-Count"))

	rec, _ = s.do(t, "unlinked", http.MethodGet, "/payroll/records/"+records["EMP-1001"].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = s.do(t, "unlinked", http.MethodGet, "/payroll/records/"+records["EMP-1002"].ID+"/payslip", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecordOutsideScopeIsIndistinguishableFromMissing(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)

	hidden, hiddenEnv := s.do(t, "bob", http.MethodGet, "/payroll/records/"+records["EMP-1001"].ID, "")
	missing, missingEnv := s.do(t, "bob", http.MethodGet, "/payroll/records/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, hidden.Code)
	assert.Equal(t, missing.Code, hidden.Code)
	require.NotNil(t, hiddenEnv.Error)
	require.NotNil(t, missingEnv.Error)
	assert.Equal(t, missingEnv.Error.Code, hiddenEnv.Error.Code)
}

func TestPayslipFormats(t *testing.T) {
	s := newTestServer(t)
	records := s.processAll(t)
	alice := records["EMP-1001"]

	rec, _ := s.do(t, "alice", http.MethodGet, "/payroll/records/"+alice.ID+"/payslip", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYSLIP 2024-06")

	rec, _ = s.do(t, "alice", http.MethodGet, "/payroll/records/"+alice.ID+"/payslip?format=pdf", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec, env := s.do(t, "bob", http.MethodGet, "/payroll/records/"+alice.ID+"/payslip", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "record_not_found", env.Error.Code)

	rec, _ = s.do(t, "alice", http.MethodGet, "/payroll/records/"+alice.ID+"/payslip?format=docx", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessDraftsSkipsDraftsNotReady(t *testing.T) {
	s := newTestServer(t)

	rec, _ := s.do(t, "hr", http.MethodPost, "/payroll/drafts", draftBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := s.do(t, "hr", http.MethodPost, "/payroll/drafts/process", `{}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result payroll.ProcessResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Empty(t, result.Records)
	assert.Len(t, result.Skipped, 1)
}
