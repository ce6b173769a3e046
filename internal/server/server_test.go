package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"testing"

	"whsper/internal/domain"
	"whsper/internal/engine"
	"whsper/internal/fixtures"
	"whsper/internal/store/badger"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
	logs   *bytes.Buffer
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

const seed = `
window_config:
  window_duration_secs: 3600
  min_claim_delay_secs: 60
claims:
  - {id: 1, creator: GC, recipient: GR, amount: "1000", token: CT, status: pending, created_at: 10, claim_window_start: 20, claim_window_end: 30}
  - {id: 3, creator: GC, recipient: GR, amount: -5, token: CT, status: cancelled, created_at: 10, claim_window_start: 20, claim_window_end: 30}
  - {id: 4, creator: GC, recipient: GR, amount: "170141183460469231731687303715884105727", token: CT, status: pending, created_at: 10, claim_window_start: 20, claim_window_end: 30}
index_entries:
  - {index: recipient, owner: GR, ids: [2]}
`

func newTestServer(t *testing.T, seedYAML string) (*testServer, func()) {
	t.Helper()
	s, err := badger.Open(badger.InMemoryConfig())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if seedYAML != "" {
		doc, err := fixtures.FromYAML([]byte(seedYAML))
		if err != nil {
			t.Fatalf("parse seed: %v", err)
		}
		if _, err := fixtures.Load(context.Background(), s, doc); err != nil {
			t.Fatalf("load seed: %v", err)
		}
	}
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	handler, err := New(Config{Engine: engine.New(s, logger), BasePath: "/v0", Logger: logger})
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
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		logs:   logs,
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			s.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doGet(t *testing.T, client *http.Client, url string, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
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

func listIDs(t *testing.T, data []byte) []uint64 {
	t.Helper()
	var body ClaimListResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal list: %v (%s)", err, data)
	}
	var ids []uint64
	for _, c := range body.Items {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestGetClaimFoundAndNotFound(t *testing.T) {
	srv, cleanup := newTestServer(t, seed)
	defer cleanup()

	res, data := doGet(t, srv.Client(), srv.URL+"/v0/claims/4", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get claim status %d: %s", res.StatusCode, data)
	}
	var found GetClaimResponse
	if err := json.Unmarshal(data, &found); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if found.Result != "found" || found.Claim == nil {
		t.Fatalf("expected found, got %s", data)
	}
	if found.Claim.Amount != "170141183460469231731687303715884105727" || found.Claim.Status != "pending" {
		t.Fatalf("unexpected claim %+v", found.Claim)
	}

	res, data = doGet(t, srv.Client(), srv.URL+"/v0/claims/2", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("missing claim should be 200, got %d: %s", res.StatusCode, data)
	}
	var missing GetClaimResponse
	_ = json.Unmarshal(data, &missing)
	if missing.Result != "not_found" || missing.Claim != nil {
		t.Fatalf("expected not_found, got %s", data)
	}
}

func TestGetClaimBadID(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	res, data := doGet(t, srv.Client(), srv.URL+"/v0/claims/abc", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
	}
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if env.Error.Code != "bad_request" {
		t.Fatalf("expected bad_request code, got %s", data)
	}
}

func TestClaimsByRecipient(t *testing.T) {
	srv, cleanup := newTestServer(t, seed)
	defer cleanup()

	res, data := doGet(t, srv.Client(), srv.URL+"/v0/recipients/GR/claims?limit=10", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, data)
	}
	if got := listIDs(t, data); len(got) != 2 || got[0] != 1 || got[1] != 4 {
		t.Fatalf("expected [1 4], got %v", got)
	}

	_, data = doGet(t, srv.Client(), srv.URL+"/v0/recipients/GR/claims?limit=10&include_terminal=true", nil)
	if got := listIDs(t, data); len(got) != 3 || got[0] != 1 || got[1] != 3 || got[2] != 4 {
		t.Fatalf("expected [1 3 4], got %v", got)
	}

	_, data = doGet(t, srv.Client(), srv.URL+"/v0/recipients/GNOBODY/claims?limit=5", nil)
	if !strings.Contains(string(data), `"items":[]`) {
		t.Fatalf("expected empty items array, got %s", data)
	}
}

func TestClaimsByCreatorLimits(t *testing.T) {
	srv, cleanup := newTestServer(t, seed)
	defer cleanup()

	for _, q := range []string{"limit=0", "limit=-7"} {
		_, data := doGet(t, srv.Client(), srv.URL+"/v0/creators/GC/claims?"+q, nil)
		var body ClaimListResponse
		if err := json.Unmarshal(data, &body); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
		if body.Limit != 1 || len(body.Items) != 1 || body.Items[0].ID != 1 {
			t.Fatalf("%s: expected one claim with limit 1, got %s", q, data)
		}
	}

	_, data := doGet(t, srv.Client(), srv.URL+"/v0/creators/GC/claims?limit=99999999999999999999", nil)
	var body ClaimListResponse
	_ = json.Unmarshal(data, &body)
	if body.Limit != domain.MaxPageSize {
		t.Fatalf("expected limit capped at %d, got %s", domain.MaxPageSize, data)
	}

	_, data = doGet(t, srv.Client(), srv.URL+"/v0/creators/GC/claims", nil)
	_ = json.Unmarshal(data, &body)
	if body.Limit != 20 {
		t.Fatalf("expected default limit 20, got %s", data)
	}

	res, data := doGet(t, srv.Client(), srv.URL+"/v0/creators/GC/claims?include_terminal=maybe", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad flag, got %d: %s", res.StatusCode, data)
	}
	res, data = doGet(t, srv.Client(), srv.URL+"/v0/creators/GC/claims?limit=ten", nil)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d: %s", res.StatusCode, data)
	}
}

func TestWindowConfigDefaults(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	_, data := doGet(t, srv.Client(), srv.URL+"/v0/claim-window-config", nil)
	var cfg ClaimWindowConfigResponse
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if cfg != (ClaimWindowConfigResponse{}) {
		t.Fatalf("expected zero config, got %s", data)
	}

	seeded, cleanupSeeded := newTestServer(t, seed)
	defer cleanupSeeded()
	_, data = doGet(t, seeded.Client(), seeded.URL+"/v0/claim-window-config", nil)
	_ = json.Unmarshal(data, &cfg)
	if cfg.WindowDurationSecs != 3600 || cfg.MinClaimDelaySecs != 60 {
		t.Fatalf("unexpected config %s", data)
	}
}

func TestRequestIDAndAccessLog(t *testing.T) {
	srv, cleanup := newTestServer(t, "")
	defer cleanup()
	res, _ := doGet(t, srv.Client(), srv.URL+"/v0/health", map[string]string{requestIDHeader: "req-123"})
	if res.Header.Get(requestIDHeader) != "req-123" {
		t.Fatalf("request id not echoed: %q", res.Header.Get(requestIDHeader))
	}
	res, _ = doGet(t, srv.Client(), srv.URL+"/v0/health", nil)
	if res.Header.Get(requestIDHeader) == "" {
		t.Fatalf("request id not generated")
	}
	if !strings.Contains(srv.logs.String(), "request_id=req-123") {
		t.Fatalf("access log missing request id: %s", srv.logs.String())
	}
}

func TestOpenAPIAndMetrics(t *testing.T) {
	srv, cleanup := newTestServer(t, seed)
	defer cleanup()
	_, _ = doGet(t, srv.Client(), srv.URL+"/v0/recipients/GR/claims?limit=10", nil)

	res, data := doGet(t, srv.Client(), srv.URL+"/v0/openapi.json", nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), "get-claims-by-recipient") {
		t.Fatalf("openapi missing operations: %d", res.StatusCode)
	}
	res, data = doGet(t, srv.Client(), srv.URL+"/metrics", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("metrics status %d", res.StatusCode)
	}
	for _, name := range []string{"whsper_queries_total", "whsper_dangling_index_entries_total"} {
		if !strings.Contains(string(data), name) {
			t.Fatalf("metrics missing %s", name)
		}
	}
}

func TestParseLimit(t *testing.T) {
	cases := map[string]uint32{"": 20, "0": 0, "-1": 0, "5": 5, "4294967296": 4294967295, "-99999999999999999999": 0}
	for in, want := range cases {
		got, err := parseLimit(in, 20)
		if err != nil || got != want {
			t.Fatalf("parseLimit(%q)=%d,%v want %d", in, got, err, want)
		}
	}
	if _, err := parseLimit("1.5", 20); err == nil {
		t.Fatalf("expected error for fractional limit")
	}
}
