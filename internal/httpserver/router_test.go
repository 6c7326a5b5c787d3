package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"intraportal/internal/handler"
	"intraportal/internal/importer"
	"intraportal/internal/model"
	"intraportal/internal/progress"
	"intraportal/internal/service/project"
	"intraportal/internal/service/task"
	"intraportal/internal/store/memstore"
	"intraportal/pkg/auth"
	"intraportal/pkg/rbac"
	"intraportal/pkg/trace"
)

const planXML = `<?xml version="1.0" encoding="UTF-8"?>
<Project xmlns="http://schemas.microsoft.com/project">
  <Title>Office Move</Title>
  <StartDate>2024-01-01T08:00:00</StartDate>
  <FinishDate>2024-03-01T17:00:00</FinishDate>
  <Tasks>
    <Task><UID>1</UID><ID>1</ID><Name>Plan</Name><OutlineLevel>1</OutlineLevel></Task>
    <Task><UID>10</UID><ID>2</ID><Name>Survey</Name><OutlineLevel>2</OutlineLevel><PercentComplete>50</PercentComplete></Task>
    <Task><UID>11</UID><ID>3</ID><Name>Measure</Name><OutlineLevel>3</OutlineLevel><PercentComplete>100</PercentComplete></Task>
  </Tasks>
  <Resources><Resource><UID>5</UID><Name>Jane Doe</Name></Resource></Resources>
  <Assignments><Assignment><TaskUID>10</TaskUID><ResourceUID>5</ResourceUID><Units>50</Units></Assignment></Assignments>
</Project>`

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	router    *Router
	st        *memstore.Store
	validator *auth.Validator
}

func newTestServer(t *testing.T, db Pinger) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	st := memstore.New()
	agg := progress.NewAggregator(log)
	if db == nil {
		db = st
	}

	validator := auth.NewValidator("test-secret", "intraportal")
	imp := importer.NewService(st, agg, nil, importer.Config{}, log)
	ph := handler.NewProjectHandler(imp, project.NewService(st, agg, log), 0, log)
	th := handler.NewTaskHandler(task.NewService(st, agg, log), log)

	return &testServer{
		router:    NewRouter(ph, th, validator, db, log),
		st:        st,
		validator: validator,
	}
}

func (s *testServer) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := s.validator.Sign(7, role, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, req *http.Request, role string) *httptest.ResponseRecorder {
	t.Helper()
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, role))
	}
	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/projects/import-xml", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	var body struct {
		Error string `json:"error"`
	}
	decode(t, w, &body)
	return body.Error
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/health", "/readyz"} {
		w := s.do(t, httptest.NewRequest(http.MethodGet, path, nil), "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	down := newTestServer(t, pingFunc(func(ctx context.Context) error { return errors.New("connection refused") }))
	w := down.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil), "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTraceIDHeader(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(trace.HeaderName, "abc123")
	w := s.do(t, req, "")
	assert.Equal(t, "abc123", w.Header().Get(trace.HeaderName))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil), "")
	assert.Len(t, w.Header().Get(trace.HeaderName), 32)
}

func TestAuthAndPermissions(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, httptest.NewRequest(http.MethodGet, "/projects", nil), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w = s.do(t, req, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleEmployee)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/projects", nil), rbac.RoleEmployee)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImportEndpoint(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleManager)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var res importer.Result
	decode(t, w, &res)
	assert.NotZero(t, res.ProjectID)
	assert.Equal(t, 1, res.Phases)
	assert.Equal(t, 2, res.Tasks)
	assert.Equal(t, 1, res.EmployeesCreated)
	assert.Equal(t, 1, res.Assignments)
	assert.InDelta(t, 100, res.Progress, 1e-9)
	assert.Empty(t, res.Warnings)

	w = s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleManager)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/projects/"+strconv.FormatInt(res.ProjectID, 10), nil), rbac.RoleEmployee)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.ProjectSummary
	decode(t, w, &summary)
	assert.Equal(t, "Office Move", summary.Name)
	assert.Equal(t, 2, summary.TaskCount)
	assert.Equal(t, 1, summary.TopLevelTasks)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/employees", nil), rbac.RoleEmployee)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "jane.doe@salam.com")
}

func TestImportEndpointRejects(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name     string
		filename string
		content  string
		wantMsg  string
	}{
		{"missing file", "", "", "No file uploaded"},
		{"wrong extension", "plan.mpp", planXML, "File must be an XML file"},
		{"empty file", "plan.xml", "", "File must be a non-empty XML file"},
		{"not xml", "plan.xml", "name,progress\nfoo,1", "Invalid MS Project XML file"},
		{"wrong root", "plan.xml", "<Workbook/>", "Invalid MS Project XML file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, uploadRequest(t, tt.filename, tt.content), rbac.RoleAdmin)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.wantMsg, errorOf(t, w))
		})
	}
}

func TestImportEndpointStoreFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.st.FailOn("InsertTask", errors.New("disk full"))

	w := s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleManager)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to import XML file", errorOf(t, w))
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleManager)
	require.Equal(t, http.StatusCreated, w.Code)
	var res importer.Result
	decode(t, w, &res)

	tasks, err := s.st.ListTasksByProject(context.Background(), res.ProjectID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	parentID, childID := tasks[0].ID, tasks[1].ID
	childPath := "/tasks/" + strconv.FormatInt(childID, 10)

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/tasks/"+strconv.FormatInt(parentID, 10), nil), rbac.RoleEmployee)
	require.Equal(t, http.StatusOK, w.Code)
	var detail model.TaskDetail
	decode(t, w, &detail)
	assert.Len(t, detail.Subtasks, 1)
	require.Len(t, detail.Assignments, 1)
	assert.InDelta(t, 50, detail.Assignments[0].Units, 1e-9)

	put := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPut, childPath, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	w = s.do(t, put(`{"progress": 150}`), rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "progress")

	w = s.do(t, put(`{"progress": "x"}`), rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid request body", errorOf(t, w))

	w = s.do(t, put(`{"name": "   "}`), rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name: must not be empty", errorOf(t, w))

	w = s.do(t, put(`{"status": "done"}`), rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, errorOf(t, w), "status: unknown value done")

	parentReq := httptest.NewRequest(http.MethodPut, "/tasks/"+strconv.FormatInt(parentID, 10), strings.NewReader(`{"progress": 30}`))
	parentReq.Header.Set("Content-Type", "application/json")
	w = s.do(t, parentReq, rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "progress: is derived from subtasks", errorOf(t, w))

	w = s.do(t, put(`{"progress": 20, "end_date": "2024-02-01T17:00:00Z"}`), rbac.RoleEmployee)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &detail)
	assert.InDelta(t, 20, detail.Progress, 1e-9)
	require.NotNil(t, detail.Parent)
	assert.InDelta(t, 20, detail.Parent.Progress, 1e-9)

	project, err := s.st.GetProject(context.Background(), res.ProjectID)
	require.NoError(t, err)
	assert.InDelta(t, 20, project.Progress, 1e-9)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, childPath, nil), rbac.RoleEmployee)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, childPath, nil), rbac.RoleManager)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, childPath, nil), rbac.RoleEmployee)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "task not found", errorOf(t, w))

	w = s.do(t, httptest.NewRequest(http.MethodGet, "/tasks/abc", nil), rbac.RoleEmployee)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProjectEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, uploadRequest(t, "plan.xml", planXML), rbac.RoleManager)
	require.Equal(t, http.StatusCreated, w.Code)
	var res importer.Result
	decode(t, w, &res)
	path := "/projects/" + strconv.FormatInt(res.ProjectID, 10)

	w = s.do(t, httptest.NewRequest(http.MethodPost, path+"/recompute", nil), rbac.RoleEmployee)
	require.Equal(t, http.StatusOK, w.Code)
	var rec progress.Result
	decode(t, w, &rec)
	assert.InDelta(t, 100, rec.Progress, 1e-9)
	assert.Equal(t, 0, rec.Updated)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, path, nil), rbac.RoleManager)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodDelete, path, nil), rbac.RoleAdmin)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodGet, path, nil), rbac.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, httptest.NewRequest(http.MethodPost, "/projects/999/recompute", nil), rbac.RoleAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
