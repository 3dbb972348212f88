package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dentcal/internal/config"
	"dentcal/internal/model"
)

func newTestClient(t *testing.T, handler http.Handler, labelField string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.Remote.BaseURL = srv.URL
	if labelField != "" {
		cfg.LabelField = labelField
	}
	return NewClient(cfg, "")
}

func TestListUnwrapsEnvelopeAndLabelVariants(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("date"); got != "2026-03-03" {
			t.Errorf("date param = %q, want 2026-03-03", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"_id":"A1","title":"Cleaning","start_time":"2026-03-03T09:00:00Z","end_time":"2026-03-03T09:30:00Z","status":"UPCOMING"},
			{"id":"A2","notes":"RCT","start_time":"2026-03-03T10:00:00Z","end_time":"2026-03-03T11:00:00Z","status":"COMPLETED"},
			{"_id":"bad","title":"broken","start_time":"not-a-time","end_time":"","status":"UPCOMING"}
		]}`))
	}), "")

	got, err := c.List(context.Background(), time.Date(2026, 3, 3, 12, 0, 0, 0, time.Local))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d appointments, want 2 (malformed record skipped)", len(got))
	}
	if got[0].ID != "A1" || got[0].Label != "Cleaning" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].ID != "A2" || got[1].Label != "RCT" {
		t.Errorf("second = %+v", got[1])
	}
	if !got[0].End.After(got[0].Start) {
		t.Error("decoded span is not positive")
	}
}

func TestGetExpandsReferences(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/A1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"_id":"A1","title":"Cleaning",
			"start_time":"2026-03-03T09:00:00Z","end_time":"2026-03-03T09:30:00Z",
			"patient_id":{"_id":"P9","name":"Asha Nair","custom_id":"DC-104"},
			"branch_id":{"_id":"B2","name":"Riverside"},
			"status":"UPCOMING"
		}`))
	}), "")

	got, err := c.Get(context.Background(), "A1")
	if err != nil {
		t.Fatal(err)
	}
	if got.PatientID != "P9" || got.PatientName != "Asha Nair" || got.PatientCustomID != "DC-104" {
		t.Errorf("patient ref = %+v", got)
	}
	if got.BranchID != "B2" || got.BranchName != "Riverside" {
		t.Errorf("branch ref = %+v", got)
	}
}

func TestGetNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}), "")

	_, err := c.Get(context.Background(), "gone")
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateWritesConfiguredLabelField(t *testing.T) {
	var captured map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %q, want PATCH", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatal(err)
		}
		w.Write([]byte(`{"_id":"A1","notes":"Ortho","start_time":"2026-03-03T10:00:00Z","end_time":"2026-03-03T10:30:00Z","status":"UPCOMING"}`))
	}), "notes")

	start := time.Date(2026, 3, 3, 10, 0, 0, 0, time.Local)
	got, err := c.Update(context.Background(), "A1", model.Appointment{
		ID:     "A1",
		Label:  "Ortho",
		Start:  start,
		End:    start.Add(30 * time.Minute),
		Status: model.StatusUpcoming,
	})
	if err != nil {
		t.Fatal(err)
	}

	if captured["notes"] != "Ortho" {
		t.Errorf("payload label field = %v, want notes=Ortho (got %v)", captured["notes"], captured)
	}
	if _, hasTitle := captured["title"]; hasTitle {
		t.Error("payload carries a title field despite label_field=notes")
	}
	if got.Label != "Ortho" {
		t.Errorf("reconciled label = %q", got.Label)
	}
}

func TestSearchPatientsDoubleEnvelope(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("search"); got != "asha" {
			t.Errorf("search param = %q", got)
		}
		w.Write([]byte(`{"data":{"data":[{"_id":"P9","name":"Asha Nair","custom_id":"DC-104"}]}}`))
	}), "")

	got, err := c.SearchPatients(context.Background(), "asha")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "P9" || got[0].CustomID != "DC-104" {
		t.Errorf("patients = %+v", got)
	}
}

func TestDeleteIssuesDelete(t *testing.T) {
	var gotMethod, gotPath string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusOK)
	}), "")

	if err := c.Delete(context.Background(), "A1"); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/appointments/A1" {
		t.Errorf("request = %s %s", gotMethod, gotPath)
	}
}

func TestServerErrorSurfacesStatus(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), "")

	_, err := c.Branches(context.Background())
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if errors.Is(err, model.ErrNotFound) {
		t.Error("500 mapped to ErrNotFound")
	}
}
