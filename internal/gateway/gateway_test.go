package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authcenter"
	"github.com/MrEthical07/authcenter/metrics/export/prometheus"
	"github.com/MrEthical07/authcenter/registry"
	"github.com/MrEthical07/authcenter/registry/memregistry"
	"github.com/gin-gonic/gin"
)

const testUUID = "5f0c1d2e-0000-4000-8000-000000000001"

func newTestRouter(t *testing.T) (*gin.Engine, *memregistry.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reg := memregistry.New()
	if err := reg.PutUser(testUUID, authcenter.DefaultUserTypeID, "13800000001", "secret-1"); err != nil {
		t.Fatalf("PutUser failed: %v", err)
	}
	engine, err := authcenter.New().
		WithRegistry(reg).
		WithEndpoints("registry-a").
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return NewRouter(engine, Options{Metrics: prometheus.NewPrometheusExporter(engine).Handler()}), reg
}

func post(t *testing.T, r http.Handler, path, body string) (*httptest.ResponseRecorder, authcenter.Result) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	var res authcenter.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("response is not a result envelope: %v (%s)", err, w.Body.String())
	}
	return w, res
}

func TestLoginAndCheckToken(t *testing.T) {
	r, _ := newTestRouter(t)

	w, res := post(t, r, "/api/v1/auth/login", `{"userName":"13800000001","password":"secret-1"}`)
	if w.Code != http.StatusOK || res.RetCode != authcenter.CodeSuccess {
		t.Fatalf("unexpected login response %d %+v", w.Code, res)
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatal("expected a generated request id")
	}
	token, _ := res.Data["token"].(string)
	if !strings.HasPrefix(token, testUUID+"_") {
		t.Fatalf("unexpected token %q", token)
	}

	w, res = post(t, r, "/api/v1/auth/checkToken", `{"token":"`+token+`"}`)
	if w.Code != http.StatusOK || !res.OK() {
		t.Fatalf("unexpected checkToken response %d %+v", w.Code, res)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), testUUID) {
		t.Fatalf("unexpected /me response %d %s", rec.Code, rec.Body.String())
	}
}

func TestStatusMapping(t *testing.T) {
	r, reg := newTestRouter(t)

	tests := []struct {
		name       string
		path       string
		body       string
		fault      int
		wantStatus int
		wantCode   int
	}{
		{"bad password", "/api/v1/auth/login", `{"userName":"13800000001","password":"nope"}`, 0, http.StatusUnauthorized, authcenter.CodeInvalidCredentials},
		{"missing field", "/api/v1/auth/login", `{"userName":"13800000001"}`, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"not json", "/api/v1/auth/login", `userName=1`, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"empty body", "/api/v1/auth/login", ``, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"null body", "/api/v1/auth/login", `null`, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"json array", "/api/v1/auth/checkToken", `["a_b"]`, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"numeric token", "/api/v1/auth/checkToken", `{"token":12}`, 0, http.StatusBadRequest, authcenter.CodeSchemaInvalid},
		{"malformed token", "/api/v1/auth/checkToken", `{"token":"garbage"}`, 0, http.StatusUnauthorized, authcenter.CodeInvalidToken},
		{"registry error", "/api/v1/auth/checkToken", `{"token":"` + testUUID + `_x"}`, 503001, http.StatusBadGateway, 503001},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.fault != 0 {
				reg.FailNext(registry.CmdGetDevice, tc.fault, "Device manager busy.")
			}
			w, res := post(t, r, tc.path, tc.body)
			if w.Code != tc.wantStatus || res.RetCode != tc.wantCode {
				t.Fatalf("expected %d/%d, got %d/%d (%s)", tc.wantStatus, tc.wantCode, w.Code, res.RetCode, res.Description)
			}
			if res.Data == nil {
				t.Fatal("data must always be an object")
			}
		})
	}
}

func TestMeRequiresToken(t *testing.T) {
	r, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+testUUID+"_forged")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestPingAndMetrics(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	post(t, r, "/api/v1/auth/checkToken", `{"token":"garbage"}`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "authcenter_token_malformed_total 1") {
		t.Fatalf("expected malformed counter in metrics, got:\n%s", w.Body.String())
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[int]int{
		authcenter.CodeSuccess:             http.StatusOK,
		authcenter.CodeUnknownCommand:      http.StatusBadRequest,
		authcenter.CodeInvalidToken:        http.StatusUnauthorized,
		authcenter.CodeRegistryUnavailable: http.StatusBadGateway,
		authcenter.CodeInternal:            http.StatusInternalServerError,
		409002:                             http.StatusBadGateway,
	}
	for code, want := range tests {
		if got := StatusFor(code); got != want {
			t.Fatalf("StatusFor(%d) = %d, want %d", code, got, want)
		}
	}
}
