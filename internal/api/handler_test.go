package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/shipchat/shipchat/internal/auth"
	"github.com/shipchat/shipchat/internal/config"
)

func TestHealthEndpoint(t *testing.T) {
	cfg, err := config.Load("shipchat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestReadyEndpointReturns503WhenDependencyFails(t *testing.T) {
	cfg, err := config.Load("shipchat-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		Readiness: func(_ context.Context) error {
			return errors.New("dependency down")
		},
	})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestProtectedRouteRequiresAuth(t *testing.T) {
	cfg, err := config.Load("shipchat-api", mapLookup(map[string]string{
		"SHIPCHAT_AUTH_REQUIRED": "true",
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}
	validator, err := auth.NewStaticAPIKeyValidator("k1:frontend")
	if err != nil {
		t.Fatalf("validator setup failed: %v", err)
	}

	h := NewHandler(cfg, Dependencies{
		AuthMiddleware: auth.Middleware(nil, validator),
		Registry:       newTestRegistry(),
		DefaultModel:   "llama3-70b-8192",
		MaxReflections: 5,
	})

	unauthResp := httptest.NewRecorder()
	h.ServeHTTP(unauthResp, httptest.NewRequest(http.MethodPost, "/v1/sessions", jsonBody(t, map[string]any{})))
	if unauthResp.Code != http.StatusUnauthorized {
		t.Fatalf("unauth status = %d", unauthResp.Code)
	}

	authReq := httptest.NewRequest(http.MethodPost, "/v1/sessions", jsonBody(t, map[string]any{}))
	authReq.Header.Set("X-API-Key", "k1")
	authResp := httptest.NewRecorder()
	h.ServeHTTP(authResp, authReq)
	if authResp.Code != http.StatusCreated {
		t.Fatalf("auth status = %d, body=%s", authResp.Code, authResp.Body.String())
	}
}

func TestCheckMasterDatasetReportsMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.Load("shipchat-api", mapLookup(map[string]string{
		"SHIPCHAT_DATA_DIR": dir,
	}))
	if err != nil {
		t.Fatalf("config load failed: %v", err)
	}

	check := CheckMasterDataset(cfg)
	if err := check(context.Background()); err == nil {
		t.Fatal("expected error for missing master dataset")
	}

	path := filepath.Join(dir, cfg.Data.MasterFile)
	if err := os.WriteFile(path, []byte("Codice\n1R2176985\n"), 0o644); err != nil {
		t.Fatalf("write dataset: %v", err)
	}
	if err := check(context.Background()); err != nil {
		t.Fatalf("check after write = %v", err)
	}
}

func TestCombineReadinessChecksStopsOnFirstFailure(t *testing.T) {
	order := make([]int, 0, 3)
	combined := CombineReadinessChecks(
		func(_ context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(_ context.Context) error {
			order = append(order, 2)
			return errors.New("boom")
		},
		func(_ context.Context) error {
			order = append(order, 3)
			return nil
		},
	)

	err := combined(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("execution order = %#v", order)
	}
}

func mapLookup(values map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
