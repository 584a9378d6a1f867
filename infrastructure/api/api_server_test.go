package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smartsense/smartsense"
	"github.com/smartsense/smartsense/application/service"
	"github.com/smartsense/smartsense/domain/floorplan"
	"github.com/smartsense/smartsense/infrastructure/api"
	"github.com/smartsense/smartsense/infrastructure/vectorstore"
	"github.com/smartsense/smartsense/internal/config"
)

const testAPIKey = "test-secret-key"

const listingsCSV = "property_id,title,long_description,location,price,image_file\n" +
	"P1,Loft,Bright loft near the river,Berlin,450000,\n" +
	"P2,Cottage,Quiet cottage with garden,Hamburg,320000,\n"

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1, 1}
	}
	return out, nil
}

type fakeDetector struct{}

func (fakeDetector) Detect(context.Context, string) floorplan.Detection {
	return floorplan.Counted(map[string]int{"room": 4})
}

func newTestClient(t *testing.T, apiKeys ...string) *smartsense.Client {
	t.Helper()
	dir := t.TempDir()
	assets := filepath.Join(dir, "assets")
	for _, sub := range []string{"images", "certificates"} {
		if err := os.MkdirAll(filepath.Join(assets, sub), 0o755); err != nil {
			t.Fatalf("create %s: %v", sub, err)
		}
	}

	cfg := config.NewAppConfigWithOptions(
		config.WithDataDir(filepath.Join(dir, "data")),
		config.WithDBURL("sqlite:///"+filepath.Join(dir, "test.db")),
		config.WithAssets(config.NewAssetsConfig(assets).WithRowSource(filepath.Join(assets, "listings.csv"))),
		config.WithEmbeddingDimension(3),
		config.WithAPIKeys(apiKeys),
	)
	client, err := smartsense.New(
		smartsense.WithConfig(cfg),
		smartsense.WithEmbedder(fakeEmbedder{}),
		smartsense.WithDetector(fakeDetector{}),
		smartsense.WithVectorStore(vectorstore.NewMemory()),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func multipartUpload(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, handler http.Handler, path, filename, content, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", contentType)
	if apiKey != "" {
		req.Header.Set("X-API-KEY", apiKey)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func waitForRun(t *testing.T, handler http.Handler, id string) service.Run {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		req := httptest.NewRequest(http.MethodGet, "/ingest/runs/"+id, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("get run: status = %d; body: %s", w.Code, w.Body.String())
		}
		var run service.Run
		if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
			t.Fatalf("decode run: %v", err)
		}
		if run.State != service.RunRunning {
			return run
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return service.Run{}
}

func TestAPIServer_Status(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client, "1.2.3").Handler()

	for _, path := range []string{"/", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want %d", path, w.Code, http.StatusOK)
		}
		var body struct {
			Status  string `json:"status"`
			Version string `json:"version"`
		}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Status != "ok" || body.Version != "1.2.3" {
			t.Errorf("GET %s: body = %+v", path, body)
		}
	}
}

func TestAPIServer_IngestIsWriteProtected(t *testing.T) {
	client := newTestClient(t, testAPIKey)
	handler := api.NewAPIServer(client, "dev").Handler()

	t.Run("POST /ingest without key returns 401", func(t *testing.T) {
		w := upload(t, handler, "/ingest", "listings.csv", listingsCSV, "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusUnauthorized, w.Body.String())
		}
		if _, err := os.Stat(client.Config().Assets().RowSource()); !os.IsNotExist(err) {
			t.Errorf("row source written without a key: %v", err)
		}
	})

	t.Run("POST /ingest with wrong key returns 401", func(t *testing.T) {
		w := upload(t, handler, "/ingest", "listings.csv", listingsCSV, "wrong")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})

	t.Run("GET /ingest/runs/unknown without key is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ingest/runs/unknown", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("POST /search without key is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"loft"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
		}
	})
}

func TestAPIServer_IngestThenRead(t *testing.T) {
	client := newTestClient(t, testAPIKey)
	handler := api.NewAPIServer(client, "dev").Handler()

	w := upload(t, handler, "/ingest", "listings.csv", listingsCSV, testAPIKey)
	if w.Code != http.StatusAccepted {
		t.Fatalf("upload: status = %d, want %d; body: %s", w.Code, http.StatusAccepted, w.Body.String())
	}
	var accepted struct {
		RunID string `json:"run_id"`
	}
	if err := json.NewDecoder(w.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode: %v", err)
	}

	run := waitForRun(t, handler, accepted.RunID)
	if run.State != service.RunSucceeded {
		t.Fatalf("run state = %s, error = %s", run.State, run.Error)
	}
	if run.Report == nil || run.Report.RowsProcessed != 2 {
		t.Fatalf("report = %+v, want 2 processed rows", run.Report)
	}

	req := httptest.NewRequest(http.MethodGet, "/properties/P1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get property: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var record struct {
		PropertyID      string `json:"property_id"`
		ParsedFloorplan any    `json:"parsed_floorplan"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.PropertyID != "P1" {
		t.Errorf("property_id = %q, want P1", record.PropertyID)
	}

	req = httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"query":"garden","limit":1}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status = %d; body: %s", rec.Code, rec.Body.String())
	}
	var results struct {
		Results []struct {
			PropertyID string `json:"property_id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&results); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if len(results.Results) != 1 {
		t.Errorf("results = %d, want 1", len(results.Results))
	}
}

func TestAPIServer_ParseFloorplan(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client, "dev").Handler()

	w := upload(t, handler, "/parse-floorplan", "plan.png", "not really a png", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var body struct {
		JSONOutput map[string]int `json:"json_output"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.JSONOutput["room"] != 4 {
		t.Errorf("json_output = %v, want room=4", body.JSONOutput)
	}
}

func TestAPIServer_UnknownPropertyReturns404(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client, "dev").Handler()

	req := httptest.NewRequest(http.MethodGet, "/properties/missing", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
