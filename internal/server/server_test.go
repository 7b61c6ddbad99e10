package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"plantline/internal/config"
	"plantline/internal/db"
	"plantline/internal/domain"
	"plantline/internal/engine"
	"plantline/internal/migrate"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test plant"))
	e.Now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v1",
		Auth:     AuthConfig{JWTSecret: "test-secret", AllowAnonymous: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.close)
	return ts
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createAsset(t *testing.T, srv *testServer, name string) domain.Asset {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v1/assets", map[string]any{
		"name":        name,
		"criticality": 4,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create asset: %d %s", res.StatusCode, string(data))
	}
	var asset domain.Asset
	if err := json.Unmarshal(data, &asset); err != nil {
		t.Fatalf("unmarshal asset: %v", err)
	}
	return asset
}

func TestWorkOrderLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	asset := createAsset(t, srv, "press 1")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/work-orders", map[string]any{
		"asset_id":     asset.ID,
		"kind":         "corrective",
		"title":        "belt snapped",
		"priority":     "high",
		"machine_down": true,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create work order: %d %s", res.StatusCode, string(data))
	}
	var wo domain.WorkOrder
	if err := json.Unmarshal(data, &wo); err != nil {
		t.Fatalf("unmarshal work order: %v", err)
	}
	if wo.Status != "pending" || wo.Kind != "corrective" {
		t.Fatalf("unexpected work order: %+v", wo)
	}

	// machine down flagged the asset
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/assets/"+itoa(asset.ID), nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get asset: %d %s", res.StatusCode, string(data))
	}
	var fetched domain.Asset
	_ = json.Unmarshal(data, &fetched)
	if fetched.Status != "broken" {
		t.Fatalf("expected broken asset, got %s", fetched.Status)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/work-orders/"+itoa(wo.ID), map[string]any{
		"status": "in_progress",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("start work order: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/work-orders/"+itoa(wo.ID), map[string]any{
		"status": "completed",
		"completion": map[string]any{
			"downtime_hours": 3.5,
			"solution_notes": "replaced belt",
		},
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete work order: %d %s", res.StatusCode, string(data))
	}
	var done domain.WorkOrder
	_ = json.Unmarshal(data, &done)
	if done.CompletedAt == nil || done.DowntimeHours == nil || *done.DowntimeHours != 3.5 {
		t.Fatalf("completion not recorded: %+v", done)
	}

	// invalid transition surfaces as a conflict
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v1/work-orders/"+itoa(wo.ID), map[string]any{
		"status": "pending",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
}

func TestSheetCloseRejectionEnvelope(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()
	asset := createAsset(t, srv, "boiler")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/task-definitions", map[string]any{
		"asset_id":  asset.ID,
		"name":      "check pressure",
		"frequency": "daily",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task definition: %d %s", res.StatusCode, string(data))
	}
	var td domain.TaskDefinition
	_ = json.Unmarshal(data, &td)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sheets", map[string]any{
		"asset_id":     asset.ID,
		"month":        5,
		"year":         2026,
		"working_days": 22,
		"counts": []map[string]any{
			{"task_def_id": td.ID, "performed": 30, "possible": 22},
		},
	}, nil)
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "sheet_counts_invalid" {
		t.Fatalf("wrong error code %q", envelope.Error.Code)
	}
	if envelope.Error.Details["task_def_ids"] == nil {
		t.Fatalf("expected offending task definitions in details: %s", string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/sheets", map[string]any{
		"asset_id":     asset.ID,
		"month":        5,
		"year":         2026,
		"working_days": 22,
		"counts": []map[string]any{
			{"task_def_id": td.ID, "performed": 11, "possible": 22},
		},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("close sheet: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/sheets/compliance?asset_id="+itoa(asset.ID)+"&month=5&year=2026", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("compliance: %d %s", res.StatusCode, string(data))
	}
	var report ComplianceResponse
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal compliance: %v", err)
	}
	if report.GlobalPercent != 50.0 {
		t.Fatalf("global percent = %v, want 50.0", report.GlobalPercent)
	}
}

func TestMovementOverdrawConflict(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/items", map[string]any{
		"name":         "coolant",
		"quantity":     5,
		"min_quantity": 2,
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create item: %d %s", res.StatusCode, string(data))
	}
	var item domain.InventoryItem
	_ = json.Unmarshal(data, &item)

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/items/"+itoa(item.ID)+"/movements", map[string]any{
		"type":     "consumption",
		"quantity": 50,
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthRequiredWithoutAnonymous(t *testing.T) {
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, config.Default("test plant"))
	handler, err := New(Config{Engine: e, BasePath: "/v1", Auth: AuthConfig{JWTSecret: "s3cret"}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	defer func() {
		srv.Shutdown(context.Background())
		ln.Close()
	}()
	url := "http://" + ln.Addr().String()
	client := &http.Client{}

	// health stays open
	res, _ := doJSON(t, client, http.MethodGet, url+"/v1/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health: %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodGet, url+"/v1/assets", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}

	// dev login mints a usable token
	res, data = doJSON(t, client, http.MethodPost, url+"/v1/auth/dev/login", map[string]any{"actor_id": "tech-1"}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dev login: %d %s", res.StatusCode, string(data))
	}
	var login DevLoginResponse
	if err := json.Unmarshal(data, &login); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	res, data = doJSON(t, client, http.MethodGet, url+"/v1/assets", nil, map[string]string{
		"Authorization": "Bearer " + login.Token,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("authorized list assets: %d %s", res.StatusCode, string(data))
	}
}

func TestAPIKeyRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/api-keys", map[string]any{"name": "ci"}, map[string]string{
		"X-Actor-Id": "tech-2",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("mint key: %d %s", res.StatusCode, string(data))
	}
	var minted MintAPIKeyResponse
	if err := json.Unmarshal(data, &minted); err != nil {
		t.Fatalf("unmarshal minted key: %v", err)
	}
	if minted.Key == "" || minted.ActorID != "tech-2" {
		t.Fatalf("unexpected minted key: %+v", minted)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/assets", nil, map[string]string{
		"X-Api-Key": minted.Key,
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("api key request: %d %s", res.StatusCode, string(data))
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
