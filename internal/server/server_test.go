package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"vigia/internal/config"
	"vigia/internal/domain"
	"vigia/internal/engine"
	"vigia/internal/store"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	cfg := config.Default("vigia")
	st := store.New()
	e := engine.New(st, cfg)
	if err := e.Seed(); err != nil {
		t.Fatalf("seed: %v", err)
	}
	handler, err := New(Config{Engine: e, BasePath: "/v0"})
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
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
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

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func TestReviewLifecycle(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	createRes, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-1001",
		"title":       "Llamada facturación",
	}, asActor("u-tl-1"))
	if createRes.StatusCode != http.StatusCreated {
		t.Fatalf("create review status %d: %s", createRes.StatusCode, string(data))
	}
	var created domain.Review
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}
	if created.Queue != domain.QueueGeneral {
		t.Fatalf("expected queue General, got %s", created.Queue)
	}
	if len(created.Transitions) != 1 {
		t.Fatalf("expected creation transition, got %d", len(created.Transitions))
	}

	// Pendiente -> En Proceso -> Completado
	res, data := doJSON(t, client, http.MethodPatch, srv.URL+"/v0/reviews/"+created.ID+"/status", map[string]any{
		"status": "En Proceso",
	}, asActor("u-tl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status change: %d %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/reviews/"+created.ID+"/status", map[string]any{
		"status": "Completado",
	}, asActor("u-tl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete: %d %s", res.StatusCode, string(data))
	}

	// Terminal status cannot be left by a non-admin.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/reviews/"+created.ID+"/status", map[string]any{
		"status": "En Proceso",
	}, asActor("u-tl-1"))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 leaving terminal status, got %d: %s", res.StatusCode, string(data))
	}

	// The administrator override is allowed and ledgered.
	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/reviews/"+created.ID+"/status", map[string]any{
		"status": "En Proceso",
		"reason": "revisión reabierta",
	}, asActor("u-adm-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin override: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reviews/"+created.ID+"/audit", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("audit: %d %s", res.StatusCode, string(data))
	}
	var entries []domain.AuditEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	var sawOverride bool
	for _, entry := range entries {
		if entry.Action == domain.ActionAdminOverride {
			sawOverride = true
		}
	}
	if !sawOverride {
		t.Fatalf("expected an admin override entry in %d audit entries", len(entries))
	}
}

func TestTagPermissionDenied(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-2001",
		"title":       "Llamada soporte",
	}, asActor("u-sup-1"))
	var created domain.Review
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews/"+created.ID+"/tags", map[string]any{
		"dimension": "adhesionGeneral",
		"level":     "Alto",
	}, asActor("u-sup-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for supervisor assigning Alto, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope.Error.Code != "permission_denied" {
		t.Fatalf("expected permission_denied, got %q", envelope.Error.Code)
	}

	// The attempt is ledgered, the review itself is untouched.
	_, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reviews/"+created.ID, nil, nil)
	var after domain.Review
	if err := json.Unmarshal(data, &after); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}
	if len(after.Tags) != 0 {
		t.Fatalf("tags should be empty after denial, got %v", after.Tags)
	}
	if !after.UpdatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("UpdatedAt moved on a denied attempt")
	}
	last := after.Audit[len(after.Audit)-1]
	if last.Action != domain.ActionDeniedAttempt {
		t.Fatalf("expected denied attempt entry, got %s", last.Action)
	}
}

func TestHighTagRoutesToSupervision(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-3001",
		"title":       "Llamada ventas",
	}, asActor("u-ger-1"))
	var created domain.Review
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews/"+created.ID+"/tags", map[string]any{
		"dimension": "adhesionGeneral",
		"level":     "Alto",
	}, asActor("u-ger-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tag: %d %s", res.StatusCode, string(data))
	}
	var tagged domain.Review
	if err := json.Unmarshal(data, &tagged); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}
	if tagged.Queue != domain.QueueSupervision {
		t.Fatalf("expected Supervisión after Alto tag, got %s", tagged.Queue)
	}
	lastTransition := tagged.Transitions[len(tagged.Transitions)-1]
	if lastTransition.AppliedRuleID == "" {
		t.Fatalf("expected rule provenance on automatic transition")
	}
}

func TestPrideCaseOverride(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-4001",
		"title":       "Atención ejemplar",
	}, asActor("u-tl-1"))
	var created domain.Review
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews/"+created.ID+"/pride", nil, asActor("u-tl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("pride: %d %s", res.StatusCode, string(data))
	}
	var marked domain.Review
	if err := json.Unmarshal(data, &marked); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}
	if marked.Queue != domain.QueueManagement {
		t.Fatalf("pride case should land in Gerencia, got %s", marked.Queue)
	}
	if marked.CalibrationMark == nil || marked.CalibrationMark.Type != domain.CalibrationManagers {
		t.Fatalf("pride case should carry a manager calibration mark, got %+v", marked.CalibrationMark)
	}
}

func TestRuleAdministration(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	rule := map[string]any{
		"id":   "regla-test",
		"name": "Rechazados a gerencia",
		"conditions": map[string]any{
			"source_queue": "General",
			"statuses":     []string{"Rechazado"},
		},
		"action": map[string]any{
			"destination_queue": "Gerencia",
		},
		"active": true,
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", rule, asActor("u-ger-1"))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin rule create, got %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules", rule, asActor("u-adm-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create rule: %d %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/rules/regla-test/toggle", nil, asActor("u-adm-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("toggle rule: %d %s", res.StatusCode, string(data))
	}
	var toggled domain.TransitionRule
	if err := json.Unmarshal(data, &toggled); err != nil {
		t.Fatalf("unmarshal rule: %v", err)
	}
	if toggled.Active {
		t.Fatalf("expected rule inactive after toggle")
	}

	res, data = doJSON(t, client, http.MethodDelete, srv.URL+"/v0/rules/regla-test", nil, asActor("u-adm-1"))
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		t.Fatalf("delete rule: %d %s", res.StatusCode, string(data))
	}
}

func TestCalibrationSession(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-5001",
		"title":       "Llamada retención",
	}, asActor("u-sup-1"))
	var review domain.Review
	if err := json.Unmarshal(data, &review); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/calibrations", map[string]any{
		"type":            "Calibración Supervisores",
		"title":           "Calibración semanal",
		"participant_ids": []string{"u-tl-1"},
		"linked_reviews":  []string{review.ID},
	}, asActor("u-sup-1"))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create calibration: %d %s", res.StatusCode, string(data))
	}
	var session domain.CalibrationRecord
	if err := json.Unmarshal(data, &session); err != nil {
		t.Fatalf("unmarshal calibration: %v", err)
	}
	if session.Queue != domain.QueueSupervision {
		t.Fatalf("supervisor track should open in Supervisión, got %s", session.Queue)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/calibrations/"+session.ID+"/status", map[string]any{
		"status": "En Revisión",
	}, asActor("u-sup-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance calibration: %d %s", res.StatusCode, string(data))
	}

	// Skipping straight to Completado from Pendiente is rejected.
	res2, data2 := doJSON(t, client, http.MethodPost, srv.URL+"/v0/calibrations", map[string]any{
		"type":  "Calibración Supervisores",
		"title": "Otra sesión",
	}, asActor("u-sup-1"))
	if res2.StatusCode != http.StatusCreated {
		t.Fatalf("create second calibration: %d %s", res2.StatusCode, string(data2))
	}
	var second domain.CalibrationRecord
	if err := json.Unmarshal(data2, &second); err != nil {
		t.Fatalf("unmarshal calibration: %v", err)
	}
	res2, data2 = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/calibrations/"+second.ID+"/status", map[string]any{
		"status": "Completado",
	}, asActor("u-sup-1"))
	if res2.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 skipping lifecycle, got %d: %s", res2.StatusCode, string(data2))
	}
}

func TestRoleScopedListing(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()

	_, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-6001",
		"title":       "Llamada uno",
	}, asActor("u-tl-1"))
	_, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/reviews", map[string]any{
		"case_number": "CASO-6002",
		"title":       "Llamada dos",
	}, asActor("u-ger-1"))
	var other domain.Review
	if err := json.Unmarshal(data, &other); err != nil {
		t.Fatalf("unmarshal review: %v", err)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/reviews", nil, asActor("u-tl-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", res.StatusCode, string(data))
	}
	var visible []domain.Review
	if err := json.Unmarshal(data, &visible); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	for _, r := range visible {
		if r.ID == other.ID {
			t.Fatalf("team leader should not see another owner's review")
		}
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/reviews", nil, asActor("u-adm-1"))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("admin list: %d %s", res.StatusCode, string(data))
	}
	var all []domain.Review
	if err := json.Unmarshal(data, &all); err != nil {
		t.Fatalf("unmarshal list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("administrator should see every review, got %d", len(all))
	}
}
