package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/gradebook/apps/api/echo"
	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/portal"
	"github.com/trezcool/gradebook/storage/kv/memkv"
	"github.com/trezcool/gradebook/tests"
)

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	tab      string
	wantCode int
	wantData []byte
}

// setup starts a server whose tabs share one in-memory store.
func setup(t *testing.T) (Server, *testutil.Logger) {
	logger := &testutil.Logger{}
	validate, translator := core.NewValidator()
	db := memkv.Open()

	app := NewServer(&Options{
		TestMode:       true,
		DisableReqLogs: true,
		Logger:         logger,
		Translator:     translator,
		NewTab: func(ctx context.Context) (*portal.Portal, error) {
			return portal.New(ctx, &portal.Options{
				Store:      db.NewStore(),
				Logger:     logger,
				Validate:   validate,
				Translator: translator,
			})
		},
	})
	t.Cleanup(func() { _ = app.Close() })
	return app, logger
}

func newTabRequest(method, path, tab string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if tab != "" {
		req.Header.Set(TabHeader, tab)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func serve(app Server, method, path, tab string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newTabRequest(method, path, tab, data...)
	app.ServeHTTP(rec, req)
	return rec
}

func openTab(t *testing.T, app Server) string {
	rec := serve(app, http.MethodPost, "/v1/tabs", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp TabResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tab)
	return resp.Tab
}

func login(t *testing.T, app Server, tab string, req LoginRequest) {
	rec := serve(app, http.MethodPost, "/v1/login", tab, marshallObj(t, req))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func loginAdmin(t *testing.T, app Server, tab string) {
	login(t, app, tab, LoginRequest{Role: "teacher", Username: "admin", Password: "admin"})
}

func putStudent(t *testing.T, app Server, tab, id string, req StudentRequest) StudentResponse {
	rec := serve(app, http.MethodPut, "/v1/students/"+id, tab, marshallObj(t, req))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stud StudentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stud))
	return stud
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "code")
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String(), "data")
	}
}

func runHttpTests(t *testing.T, app Server, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.method, tt.path, tt.tab, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
