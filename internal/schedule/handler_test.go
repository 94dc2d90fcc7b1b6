package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

// fakeService drives the handler from a Store and Selector without a
// running scheduler loop.
type fakeService struct {
	store      *Store
	selector   *Selector
	now        time.Time
	refreshErr error
	refreshes  int
}

func newFakeService(snap Snapshot, now time.Time) *fakeService {
	svc := &fakeService{store: storeWith(snap), selector: NewSelector(""), now: now}
	svc.selector.Init(svc.store, now)
	return svc
}

func (f *fakeService) Channels() []Channel               { return f.store.Channels() }
func (f *fakeService) Channel(id string) (Channel, bool) { return f.store.Channel(id) }

func (f *fakeService) State() State {
	st := State{Selection: f.selector.Selection(), UpdatedAt: f.now}
	if ch, ok := f.selector.ActiveChannel(); ok {
		st.Channel = &ch
	}
	if p, ok := f.selector.ActiveProgram(); ok {
		st.Program = &p
	}
	return st
}

func (f *fakeService) SetActiveChannel(channelID, programID string) bool {
	return f.selector.SetActiveChannel(f.store, channelID, programID, f.now)
}

func (f *fakeService) ResumeLive() bool {
	sel := f.selector.Selection()
	if sel == nil {
		return false
	}
	return f.selector.SetActiveChannel(f.store, sel.Channel(), "", f.now)
}

func (f *fakeService) Refresh() error {
	f.refreshes++
	return f.refreshErr
}

func newTestHandler(t *testing.T, svc Service, now time.Time) *Handler {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewHandler(svc, log, func() time.Time { return now })
}

func newTestRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/channels", h.ListChannels)
	r.Get("/channels/{channel_id}/now", h.GetNow)
	r.Route("/active", func(r chi.Router) {
		r.Get("/", h.GetActive)
		r.Put("/", h.SetActive)
		r.Post("/live", h.ResumeLive)
	})
	r.Post("/refresh", h.Refresh)
	return r
}

func serve(r http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_ListChannels(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(baseSnapshot(), at("10:15")), at("10:15")))

	rec := serve(r, http.MethodGet, "/channels", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []Channel
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "channel1" || len(got[1].Programs) != 2 {
		t.Errorf("unexpected channels %+v", got)
	}
}

func TestHandler_ListChannels_empty(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(Snapshot{}, at("10:15")), at("10:15")))

	rec := serve(r, http.MethodGet, "/channels", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := bytes.TrimSpace(rec.Body.Bytes()); string(body) != "[]" {
		t.Errorf("expected empty JSON array, got %s", body)
	}
}

func TestHandler_GetNow(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(baseSnapshot(), at("10:15")), at("10:15")))

	rec := serve(r, http.MethodGet, "/channels/channel2/now", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got nowResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Channel == nil || got.Channel.ID != "channel2" {
		t.Errorf("unexpected channel %+v", got.Channel)
	}
	if got.Live == nil || got.Live.ID != "program3" {
		t.Errorf("expected live program3, got %+v", got.Live)
	}
	if len(got.Next) != 1 || got.Next[0].ID != "program4" {
		t.Errorf("expected next [program4], got %+v", got.Next)
	}
}

func TestHandler_GetNow_gap(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(baseSnapshot(), at("09:00")), at("09:00")))

	rec := serve(r, http.MethodGet, "/channels/channel1/now?n=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got nowResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Live != nil {
		t.Errorf("expected no live program, got %+v", got.Live)
	}
	if len(got.Next) != 1 || got.Next[0].ID != "program1" {
		t.Errorf("expected next [program1], got %+v", got.Next)
	}
}

func TestHandler_GetNow_errors(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(baseSnapshot(), at("10:15")), at("10:15")))

	tests := []struct {
		target string
		want   int
	}{
		{"/channels/channel9/now", http.StatusNotFound},
		{"/channels/channel1/now?n=abc", http.StatusBadRequest},
		{"/channels/channel1/now?n=-1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := serve(r, http.MethodGet, tt.target, nil)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.target, tt.want, rec.Code)
		}
	}
}

func TestHandler_GetActive(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(baseSnapshot(), at("10:15")), at("10:15")))

	rec := serve(r, http.MethodGet, "/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got activeResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != ModeAuto || got.ChannelID != "channel1" || got.PinnedProgramID != "" {
		t.Errorf("unexpected selection %+v", got)
	}
	if got.Program == nil || got.Program.ID != "program1" {
		t.Errorf("expected program1, got %+v", got.Program)
	}
}

func TestHandler_GetActive_no_selection(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(Snapshot{}, at("10:15")), at("10:15")))

	rec := serve(r, http.MethodGet, "/active", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got activeResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != "" || got.Channel != nil || got.Program != nil {
		t.Errorf("expected empty selection, got %+v", got)
	}
}

func TestHandler_SetActive_manual(t *testing.T) {
	svc := newFakeService(baseSnapshot(), at("10:15"))
	r := newTestRouter(newTestHandler(t, svc, at("10:15")))

	b, _ := json.Marshal(map[string]string{"channelId": "channel2", "programId": "program4"})
	rec := serve(r, http.MethodPut, "/active", b)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got activeResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != ModeManual || got.ChannelID != "channel2" || got.PinnedProgramID != "program4" {
		t.Errorf("unexpected selection %+v", got)
	}
	if got.Program == nil || got.Program.ID != "program4" {
		t.Errorf("expected pinned program4, got %+v", got.Program)
	}

	// Resuming live follows the on-air program again.
	rec = serve(r, http.MethodPost, "/active/live", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume: expected 200, got %d", rec.Code)
	}
	got = activeResponse{}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != ModeAuto || got.Program == nil || got.Program.ID != "program3" {
		t.Errorf("expected auto program3, got %+v", got)
	}
}

func TestHandler_SetActive_errors(t *testing.T) {
	svc := newFakeService(baseSnapshot(), at("10:15"))
	r := newTestRouter(newTestHandler(t, svc, at("10:15")))

	tests := []struct {
		name string
		body []byte
		want int
	}{
		{"not json", []byte("not json"), http.StatusBadRequest},
		{"missing channel", []byte(`{"programId":"program1"}`), http.StatusBadRequest},
		{"unknown channel", []byte(`{"channelId":"channel3","programId":"program5"}`), http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := serve(r, http.MethodPut, "/active", tt.body)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
	}

	if sel := svc.selector.Selection(); sel != (AutoSelection{ChannelID: "channel1"}) {
		t.Errorf("rejected requests changed the selection: %+v", sel)
	}
}

func TestHandler_ResumeLive_no_selection(t *testing.T) {
	r := newTestRouter(newTestHandler(t, newFakeService(Snapshot{}, at("10:15")), at("10:15")))

	rec := serve(r, http.MethodPost, "/active/live", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}
}

func TestHandler_Refresh(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"accepted", nil, http.StatusAccepted},
		{"not running", ErrNotRunning, http.StatusServiceUnavailable},
		{"other failure", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newFakeService(baseSnapshot(), at("10:15"))
			svc.refreshErr = tt.err
			r := newTestRouter(newTestHandler(t, svc, at("10:15")))

			rec := serve(r, http.MethodPost, "/refresh", nil)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
			if svc.refreshes != 1 {
				t.Errorf("expected one refresh, got %d", svc.refreshes)
			}
		})
	}
}

func TestHandler_GetNow_uses_injected_clock(t *testing.T) {
	svc := newFakeService(baseSnapshot(), at("10:45"))
	r := newTestRouter(newTestHandler(t, svc, at("10:45")))

	rec := serve(r, http.MethodGet, "/channels/channel1/now", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var now nowResponse
	if err := json.NewDecoder(rec.Body).Decode(&now); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = serve(r, http.MethodGet, "/active", nil)
	var active activeResponse
	if err := json.NewDecoder(rec.Body).Decode(&active); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if now.Live == nil || active.Program == nil || now.Live.ID != active.Program.ID {
		t.Errorf("live program %+v disagrees with active program %+v", now.Live, active.Program)
	}
	if now.Live == nil || now.Live.ID != "program2" {
		t.Errorf("expected program2 at 10:45, got %+v", now.Live)
	}
}

func TestNewHandler_nil_clock(t *testing.T) {
	h := NewHandler(newFakeService(Snapshot{}, at("10:00")), slog.Default(), nil)
	if got := h.now(); time.Since(got) > time.Minute {
		t.Errorf("nil clock should fall back to time.Now, got %v", got)
	}
}
