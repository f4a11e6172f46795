package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"caseline/internal/config"
	"caseline/internal/db"
	"caseline/internal/engine"
	"caseline/internal/migrate"
	"caseline/internal/report"
	"caseline/internal/storage"
)

type testServer struct {
	URL        string
	Dispatcher *report.Dispatcher
	client     *http.Client
	close      func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
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
	cfg := config.Default()
	table, err := cfg.Workflows()
	if err != nil {
		t.Fatalf("workflows: %v", err)
	}
	uploads, err := storage.NewUploadStore(t.TempDir())
	if err != nil {
		t.Fatalf("upload store: %v", err)
	}
	reports, err := storage.NewReportStore(t.TempDir())
	if err != nil {
		t.Fatalf("report store: %v", err)
	}
	e := engine.New(conn, cfg, table, uploads)
	dispatcher := report.NewDispatcher(&report.Pipeline{
		Repo:    e.Repo,
		Uploads: uploads,
		Reports: reports,
	}, nil)
	handler, err := New(Config{
		Engine:     e,
		Dispatcher: dispatcher,
		Reports:    reports,
		Uploads:    uploads,
		BasePath:   "/v0",
		Auth:       AuthConfig{AllowLegacyActorHeader: true},
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
	testSrv := &testServer{
		URL:        "http://" + ln.Addr().String(),
		Dispatcher: dispatcher,
		client:     &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
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
	req.Header.Set("X-Actor-Id", "tester")
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

func createCase(t *testing.T, srv *testServer, number string) CaseResponse {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases", map[string]any{
		"case_number": number,
		"case_type":   "PAD",
		"summary":     "Apuração de conduta",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create case status %d: %s", res.StatusCode, string(data))
	}
	var created CaseResponse
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal case: %v", err)
	}
	return created
}

func TestCreateCaseAndDuplicateConflict(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	created := createCase(t, srv, "001/2025")
	if created.CurrentStage != "Autuado" {
		t.Fatalf("expected initial stage Autuado, got %s", created.CurrentStage)
	}

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases", map[string]any{
		"case_number": "001/2025",
		"case_type":   "PAD",
		"summary":     "outro",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "duplicate_case_number" {
		t.Fatalf("unexpected error code: %s", envelope.Error.Code)
	}
}

func TestAdvanceWithAttachments(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := createCase(t, srv, "002/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+created.ID+"/advance", map[string]any{
		"stage": "Instrução",
		"note":  "Juntada de documentos",
		"attachments": []map[string]any{
			{"name": "defesa.pdf", "content": []byte("%PDF-1.4 fake")},
			{"name": "foto.png", "content": []byte("not a pdf")},
		},
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("advance status %d: %s", res.StatusCode, string(data))
	}
	var result AdvanceStageResponse
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if result.Entry.StageName != "Instrução" {
		t.Fatalf("unexpected stage: %s", result.Entry.StageName)
	}
	if len(result.Entry.Documents) != 1 {
		t.Fatalf("expected 1 accepted document, got %d", len(result.Entry.Documents))
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected 1 warning for the png, got %v", result.Warnings)
	}

	// Accepted upload is downloadable.
	dlRes, dlData := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/uploads/"+result.Entry.Documents[0].Filename, nil, nil)
	if dlRes.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", dlRes.StatusCode)
	}
	if string(dlData) != "%PDF-1.4 fake" {
		t.Fatalf("unexpected download body: %q", dlData)
	}
}

func TestAdvanceMissingStage(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := createCase(t, srv, "003/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+created.ID+"/advance", map[string]any{
		"note": "sem etapa",
	}, nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, string(data))
	}
}

func TestGetCaseDetailAndNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := createCase(t, srv, "004/2025")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/"+created.ID, nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var detail CaseDetailResponse
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if len(detail.Entries) != 1 {
		t.Fatalf("expected instauration entry, got %d", len(detail.Entries))
	}
	if len(detail.Stages) == 0 {
		t.Fatal("detail should include the workflow stage list")
	}

	notFound, _ := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/cases/does-not-exist", nil, nil)
	if notFound.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", notFound.StatusCode)
	}
}

func TestReportGenerationAccepted(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	created := createCase(t, srv, "005/2025")

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/cases/"+created.ID+"/report", map[string]any{}, nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.StatusCode, string(data))
	}
	srv.Dispatcher.Wait()

	listRes, listData := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/reports", nil, nil)
	if listRes.StatusCode != http.StatusOK {
		t.Fatalf("list reports status %d", listRes.StatusCode)
	}
	var reports []ReportResponse
	if err := json.Unmarshal(listData, &reports); err != nil {
		t.Fatalf("unmarshal reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}

	dlRes, dlData := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/reports/"+reports[0].Filename, nil, nil)
	if dlRes.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", dlRes.StatusCode)
	}
	if !bytes.HasPrefix(dlData, []byte("%PDF")) {
		t.Fatal("report download is not a PDF stream")
	}
}

func TestDashboard(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	createCase(t, srv, "006/2025")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/dashboard", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var dash DashboardResponse
	if err := json.Unmarshal(data, &dash); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if dash.TotalCases != 1 || dash.ActiveCases != 1 {
		t.Fatalf("unexpected dashboard: %+v", dash)
	}
}

func TestAgendaEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/agenda", map[string]any{
		"description": "Notificar servidor",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create agenda status %d: %s", res.StatusCode, string(data))
	}
	var task AgendaTaskResponse
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}

	toggleRes, toggleData := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/agenda/1/toggle", nil, nil)
	if toggleRes.StatusCode != http.StatusOK {
		t.Fatalf("toggle status %d: %s", toggleRes.StatusCode, string(toggleData))
	}
	var toggled AgendaTaskResponse
	_ = json.Unmarshal(toggleData, &toggled)
	if !toggled.Done {
		t.Fatal("toggle should mark done")
	}
	_ = task
}

func TestUnauthenticatedRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/v0/cases", nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", res.StatusCode)
	}

	// Health stays open.
	healthRes, err := srv.Client().Get(srv.URL + "/v0/health")
	if err != nil {
		t.Fatal(err)
	}
	defer healthRes.Body.Close()
	if healthRes.StatusCode != http.StatusOK {
		t.Fatalf("health should not require auth, got %d", healthRes.StatusCode)
	}
}
