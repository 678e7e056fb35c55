package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"submission-harvester/internal/config"
	"submission-harvester/internal/flow"
	"submission-harvester/internal/graphstore"
	"submission-harvester/internal/models"
)

type fakeStore struct {
	submitted  map[string]bool
	vendorOrg  map[string]string // vendor+key+org -> organization id
	statuses   map[string]*graphstore.SubmissionStatus
	verifyErr  error
	checkedKey string
}

func (f *fakeStore) IsSubmitted(_ context.Context, graph, resource string) (bool, error) {
	return f.submitted[resource], nil
}

func (f *fakeStore) VerifyVendor(_ context.Context, accountGraph, vendor, key, organization string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	f.checkedKey = key
	return f.vendorOrg[vendor+"|"+key+"|"+organization], nil
}

func (f *fakeStore) SubmissionStatusFor(_ context.Context, resource string) (*graphstore.SubmissionStatus, error) {
	st, ok := f.statuses[resource]
	if !ok {
		return nil, fmt.Errorf("submission %s: %w", resource, graphstore.ErrNotResolved)
	}
	return st, nil
}

type fakeSubmitter struct {
	graphs []string
	reqs   []models.SubmissionRequest
	err    error
}

func (f *fakeSubmitter) ScheduleSubmission(_ context.Context, graph string, req models.SubmissionRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.graphs = append(f.graphs, graph)
	f.reqs = append(f.reqs, req)
	return "http://job/1", nil
}

type fakeDispatcher struct {
	batches []models.DeltaBatch
	block   chan struct{}
	err     error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, batch models.DeltaBatch) error {
	if f.block != nil {
		<-f.block
	}
	f.batches = append(f.batches, batch)
	return f.err
}

type fakeLimiter struct {
	allowed bool
}

func (f *fakeLimiter) Allow(context.Context, string) (bool, float64, error) { return f.allowed, 0, nil }
func (f *fakeLimiter) RetryAfter() time.Duration                            { return time.Second }

type testServer struct {
	store      *fakeStore
	submitter  *fakeSubmitter
	dispatcher *fakeDispatcher
	limiter    *fakeLimiter
	srv        *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Load()
	store := &fakeStore{
		submitted: map[string]bool{},
		vendorOrg: map[string]string{
			"http://vendors/acme|s3cr3t|http://org/abc": "abc",
		},
		statuses: map[string]*graphstore.SubmissionStatus{},
	}
	submitter := &fakeSubmitter{}
	dispatcher := &fakeDispatcher{}
	limiter := &fakeLimiter{allowed: true}
	s := New(cfg, store, submitter, dispatcher, flow.NewGate(1, 50*time.Millisecond), limiter, nil)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testServer{store: store, submitter: submitter, dispatcher: dispatcher, limiter: limiter, srv: srv}
}

func validBody() string {
	return `{
		"href": "https://gemeente.example.org/meldingen/42",
		"submittedResource": "http://data.lblod.info/submissions/42",
		"organization": "http://org/abc",
		"vendor": "http://vendors/acme",
		"key": "s3cr3t"
	}`
}

func postJSON(t *testing.T, url, contentType, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSubmitAcceptsValidSubmission(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", validBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out["job"] != "http://job/1" {
		t.Fatalf("job = %q", out["job"])
	}
	if len(ts.submitter.graphs) != 1 || !strings.Contains(ts.submitter.graphs[0], "/organizations/abc/") {
		t.Fatalf("graphs = %v, want the expanded tenant graph", ts.submitter.graphs)
	}
}

func TestSubmitContentTypeChecked(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.srv.URL+"/submissions", "text/plain", validBody())
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}

	resp = postJSON(t, ts.srv.URL+"/submissions", "application/ld+json", validBody())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("ld+json status = %d, want 201", resp.StatusCode)
	}
}

func TestSubmitRejectsArrayBody(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", "["+validBody()+"]")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitReportsEveryMissingProperty(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", `{"href": "ftp://nope"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode errors: %v", err)
	}
	// Bad href plus four missing properties.
	if len(body.Errors) != 5 {
		t.Fatalf("errors = %+v, want 5 entries", body.Errors)
	}
}

func TestSubmitUnknownVendorKey(t *testing.T) {
	ts := newTestServer(t)

	body := strings.Replace(validBody(), "s3cr3t", "wrong", 1)
	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", body)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if len(ts.submitter.reqs) != 0 {
		t.Fatalf("submission scheduled despite bad key: %+v", ts.submitter.reqs)
	}
}

func TestSubmitDuplicateResource(t *testing.T) {
	ts := newTestServer(t)
	ts.store.submitted["http://data.lblod.info/submissions/42"] = true

	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", validBody())
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	ts := newTestServer(t)
	ts.limiter.allowed = false

	resp := postJSON(t, ts.srv.URL+"/submissions", "application/json", validBody())
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("429 without Retry-After")
	}
}

func TestDeltaProcessesBatch(t *testing.T) {
	ts := newTestServer(t)

	resp := postJSON(t, ts.srv.URL+"/delta", "application/json",
		`[{"inserts":[{"subject":{"type":"uri","value":"http://remote/1"},"predicate":{"type":"uri","value":"http://www.w3.org/ns/adms#status"},"object":{"type":"uri","value":"http://lblod.data.gift/file-download-statuses/success"}}],"deletes":[]}]`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if len(ts.dispatcher.batches) != 1 || len(ts.dispatcher.batches[0].Inserts()) != 1 {
		t.Fatalf("dispatched batches = %+v", ts.dispatcher.batches)
	}
}

func TestDeltaRejectedWhenGateFull(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.block = make(chan struct{})
	defer close(ts.dispatcher.block)

	// First batch holds the gate, second fills the only queue slot.
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := http.Post(ts.srv.URL+"/delta", "application/json", strings.NewReader(`[]`))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	deadline := time.Now().Add(time.Second)
	for {
		resp := postJSON(t, ts.srv.URL+"/delta", "application/json", `[]`)
		if resp.StatusCode == http.StatusServiceUnavailable {
			if resp.Header.Get("Retry-After") == "" {
				t.Fatal("503 without Retry-After")
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("never saw a 503, last status %d", resp.StatusCode)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDeltaInfrastructureFailureEarnsRetry(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.err = errors.New("sparql endpoint down")

	resp := postJSON(t, ts.srv.URL+"/delta", "application/json", `[]`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.store.statuses["http://data.lblod.info/submissions/42"] = &graphstore.SubmissionStatus{
		Job:    "http://job/1",
		Status: models.TaskBusy,
	}

	resp, err := http.Get(ts.srv.URL + "/submissions/status?resource=" + "http://data.lblod.info/submissions/42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out graphstore.SubmissionStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Job != "http://job/1" || out.Status != models.TaskBusy {
		t.Fatalf("status = %+v", out)
	}

	resp, err = http.Get(ts.srv.URL + "/submissions/status?resource=http://unknown")
	if err != nil {
		t.Fatalf("get unknown: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown resource status = %d, want 404", resp.StatusCode)
	}

	resp, err = http.Get(ts.srv.URL + "/submissions/status")
	if err != nil {
		t.Fatalf("get without resource: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing resource status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
