package timesheet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"autolog.dev/autolog/approval"
	"autolog.dev/autolog/core"
	"autolog.dev/autolog/core/coretest"
	"autolog.dev/autolog/infrastructure/email"
	"autolog.dev/autolog/pdf"
	"autolog.dev/autolog/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeMailer struct {
	mu       sync.Mutex
	messages []*email.Message
	err      error
}

func (m *fakeMailer) Send(_ context.Context, msg *email.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.messages = append(m.messages, msg)
	return "id", nil
}

type fakePDF struct {
	calls int
	err   error
	cache map[string][]byte
}

func (f *fakePDF) Generate(_ context.Context, path string) (*pdf.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if data, ok := f.cache[path]; ok {
		return &pdf.Result{Data: data, CacheHit: true}, nil
	}
	data := []byte("%PDF-" + path)
	f.cache[path] = data
	return &pdf.Result{Data: data}, nil
}

type server struct {
	engine *gin.Engine
	store  *coretest.MemoryStore
	mailer *fakeMailer
	pdf    *fakePDF
	tokens *security.TokenService
}

func newServer(records ...core.Timesheet) *server {
	s := &server{
		store:  coretest.NewMemoryStore(records...),
		mailer: &fakeMailer{},
		pdf:    &fakePDF{cache: map[string][]byte{}},
		tokens: security.NewTokenService("s3cret"),
	}
	from := email.NoReplySender("mg.autolog.dev")
	workflow := approval.NewWorkflow(approval.Options{
		Store:   s.store,
		Tokens:  s.tokens,
		Mailer:  s.mailer,
		SiteURL: "https://autolog.dev",
		From:    from,
		Logger:  zerolog.Nop(),
	})

	s.engine = gin.New()
	Register(s.engine.Group("/api"), Options{
		Store:       s.store,
		Workflow:    workflow,
		Links:       approval.NewLinkSender(s.tokens, s.mailer, "https://autolog.dev", from),
		PDF:         s.pdf,
		ExpireAfter: 30 * 24 * time.Hour,
		BearerKey:   "k3y",
		Logger:      zerolog.Nop(),
	})
	return s
}

func (s *server) do(method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func abc123() core.Timesheet {
	return core.Timesheet{
		RandomPath:       "abc123",
		User:             core.User{Name: "Bob", Email: "bob@x.com"},
		Approver:         &core.Approver{Name: "Jane", Email: "jane@x.com"},
		MonthYear:        "March 2024",
		RequiresApproval: true,
		Timesheets: []core.ProjectTimesheet{
			{Namespace: "autolog", TotalHours: 8, Timesheet: []core.DayLog{{Hours: 8}}},
		},
	}
}

func TestRequestThenApproveEndToEnd(t *testing.T) {
	s := newServer(abc123())

	w := s.do(http.MethodGet, "/api/request?timesheet_id=abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res struct {
		Message   string `json:"message"`
		SignedURL string `json:"signedUrl"`
		Record    struct {
			User          string `json:"user"`
			ApproversName string `json:"approvers_name"`
			Period        string `json:"period"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Email sent successfully", res.Message)
	assert.Equal(t, "Bob", res.Record.User)
	assert.Equal(t, "Jane", res.Record.ApproversName)
	assert.Equal(t, "March 2024", res.Record.Period)

	link, err := url.Parse(res.SignedURL)
	require.NoError(t, err)
	assert.Equal(t, "/abc123", link.Path)
	token := link.Query().Get("signed_token")
	assert.Len(t, token, 64)

	w = s.do(http.MethodGet, "/api/approve?timesheet_id=abc123&signed_token="+token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Timesheet approved successfully"}`, w.Body.String())

	stored, _ := s.store.Get("abc123")
	assert.True(t, stored.Approved)

	// second approval is idempotent
	w = s.do(http.MethodGet, "/api/approve?timesheet_id=abc123&signed_token="+token, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, s.mailer.messages, 2, "one request email and one confirmation")
}

func TestRequestErrors(t *testing.T) {
	incomplete := abc123()
	incomplete.Approver = nil
	s := newServer(incomplete)

	w := s.do(http.MethodGet, "/api/request", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing timesheet ID"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/request?timesheet_id=abc123", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Timesheet record is missing required fields"}`, w.Body.String())
	assert.Empty(t, s.mailer.messages)
}

func TestRequestAlreadyApproved(t *testing.T) {
	approved := abc123()
	approved.Approved = true
	s := newServer(approved)

	w := s.do(http.MethodGet, "/api/request?timesheet_id=abc123", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Timesheet has already been approved"}`, w.Body.String())
	assert.Empty(t, s.mailer.messages)
}

func TestRequestEmailFailure(t *testing.T) {
	s := newServer(abc123())
	s.mailer.err = errors.New("Forbidden")

	w := s.do(http.MethodGet, "/api/request?timesheet_id=abc123", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to send email: Forbidden"}`, w.Body.String())
}

func TestApproveErrors(t *testing.T) {
	s := newServer(abc123())

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{name: "missing token", query: "timesheet_id=abc123", status: http.StatusBadRequest, body: `{"message":"Invalid request parameters"}`},
		{name: "repeated id", query: "timesheet_id=abc123&timesheet_id=x&signed_token=aa", status: http.StatusBadRequest, body: `{"message":"Invalid request parameters"}`},
		{name: "bad token", query: "timesheet_id=abc123&signed_token=deadbeef", status: http.StatusForbidden, body: `{"message":"Invalid or expired token"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodGet, "/api/approve?"+tt.query, "", nil)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
	assert.Zero(t, s.store.Finds)
}

func TestApproveStoreFailure(t *testing.T) {
	s := newServer(abc123())
	s.store.Err = errors.New("server selection timeout")
	token, _ := s.tokens.Sign("abc123")

	w := s.do(http.MethodGet, "/api/approve?timesheet_id=abc123&signed_token="+token, "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"Failed to approve timesheet: server selection timeout"}`, w.Body.String())
}

func TestCreate(t *testing.T) {
	s := newServer()
	auth := map[string]string{"Authorization": "Bearer k3y"}

	body := `{"random_path":"new1","user":{"name":"Bob","email":"bob@x.com"},"month_year":"March 2024","creation_date":"2024-03-01T10:00:00.000Z","approved":false}`
	w := s.do(http.MethodPost, "/api/timesheets", body, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	stored, ok := s.store.Get("new1")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), stored.CreationDate)
	assert.Equal(t, "Bob", stored.User.Name)
	assert.Equal(t, 1, s.store.IndexCalls)
	assert.Equal(t, 30*24*time.Hour, s.store.IndexExpiry)

	// the index is only ensured until it succeeds once
	w = s.do(http.MethodPost, "/api/timesheets", `{"random_path":"new2"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, s.store.IndexCalls)

	stored, _ = s.store.Get("new2")
	assert.False(t, stored.CreationDate.IsZero(), "creation_date defaults to now")
}

func TestCreateConflict(t *testing.T) {
	s := newServer(abc123())

	w := s.do(http.MethodPost, "/api/timesheets", `{"random_path":"abc123"}`, map[string]string{"Authorization": "Bearer k3y"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"error":"Path already exists"}`, w.Body.String())
	assert.Zero(t, s.store.Inserts)
}

func TestCreateRejects(t *testing.T) {
	s := newServer()

	w := s.do(http.MethodPost, "/api/timesheets", `{"random_path":"x"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/timesheets", `{"user":{}}`, map[string]string{"Authorization": "Bearer k3y"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Field 'random_path' is required"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/timesheets", `{"random_path":"x","creation_date":"someday"}`, map[string]string{"Authorization": "Bearer k3y"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, s.store.Inserts)
}

func TestCreateStoreFailure(t *testing.T) {
	s := newServer()
	s.store.Err = errors.New("connection refused")

	w := s.do(http.MethodPost, "/api/timesheets", `{"random_path":"x"}`, map[string]string{"Authorization": "Bearer k3y"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error: connection refused"}`, w.Body.String())
}

func TestGeneratePDF(t *testing.T) {
	s := newServer()

	w := s.do(http.MethodGet, "/api/generate-pdf?path=abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=timesheet.pdf", w.Header().Get("Content-Disposition"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	first := w.Body.String()

	w = s.do(http.MethodGet, "/api/generate-pdf?path=abc123", "", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, first, w.Body.String())

	w = s.do(http.MethodGet, "/api/generate-pdf", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	s.pdf.err = errors.New("browser crashed")
	w = s.do(http.MethodGet, "/api/generate-pdf?path=other", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to generate PDF"}`, w.Body.String())
}

func TestSendApprovalEmail(t *testing.T) {
	s := newServer()

	w := s.do(http.MethodPost, "/api/send-approval-email", `{"approverEmail":"jane@x.com","timesheetId":"abc123","senderName":"Bob"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Email sent successfully", res["message"])
	assert.True(t, strings.HasPrefix(res["signedUrl"], "https://autolog.dev/abc123?signed_token="))

	w = s.do(http.MethodPost, "/api/send-approval-email", `{"approverEmail":"jane@x.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing required fields"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/send-approval-email", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "POST", w.Header().Get("Allow"))

	s.mailer.err = errors.New("Mailgun error: Unauthorized")
	w = s.do(http.MethodPost, "/api/send-approval-email", `{"approverEmail":"jane@x.com","timesheetId":"abc123","senderName":"Bob"}`, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Mailgun error: Unauthorized"}`, w.Body.String())
}

func TestExportXLSX(t *testing.T) {
	s := newServer(abc123())

	w := s.do(http.MethodGet, "/api/export-xlsx?path=abc123", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(w.Body)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary", "autolog"}, f.GetSheetList())

	w = s.do(http.MethodGet, "/api/export-xlsx?path=missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
