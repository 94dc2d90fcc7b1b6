package schedule

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const defaultUpcomingCount = 3

// Service is the part of the Scheduler the HTTP handler needs.
type Service interface {
	Channels() []Channel
	Channel(id string) (Channel, bool)
	State() State
	SetActiveChannel(channelID, programID string) bool
	ResumeLive() bool
	Refresh() error
}

// Handler exposes the scheduler's consumer API over HTTP using go-chi.
type Handler struct {
	svc Service
	log *slog.Logger
	now func() time.Time
}

// NewHandler returns a Handler backed by svc. now should be the clock the
// scheduler resolves programs with; nil means time.Now.
func NewHandler(svc Service, log *slog.Logger, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{svc: svc, log: log, now: now}
}

type channelSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
}

func summarize(ch Channel) *channelSummary {
	return &channelSummary{ID: ch.ID, Title: ch.Title, Description: ch.Description, Image: ch.Image}
}

type activeResponse struct {
	Mode            Mode            `json:"mode,omitempty"`
	ChannelID       string          `json:"channelId,omitempty"`
	PinnedProgramID string          `json:"pinnedProgramId,omitempty"`
	Channel         *channelSummary `json:"channel"`
	Program         *Program        `json:"program"`
}

type nowResponse struct {
	Channel *channelSummary `json:"channel"`
	Live    *Program        `json:"live"`
	Next    []Program       `json:"next"`
}

type setActiveRequest struct {
	ChannelID string `json:"channelId"`
	ProgramID string `json:"programId,omitempty"`
}

// ListChannels handles GET /channels.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	channels := h.svc.Channels()
	if channels == nil {
		channels = []Channel{}
	}
	h.writeJSON(w, http.StatusOK, channels)
}

// GetNow handles GET /channels/{channel_id}/now. The optional n query
// parameter limits how many upcoming programs are listed.
func (h *Handler) GetNow(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channel_id")
	if channelID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	n := defaultUpcomingCount
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			http.Error(w, "n must be a non-negative integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	ch, ok := h.svc.Channel(channelID)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	now := h.now()
	res := nowResponse{Channel: summarize(ch), Next: []Program{}}
	upcoming := UpcomingPrograms(ch, now, n)
	if len(upcoming) > 0 && upcoming[0].Covers(now) {
		live := upcoming[0]
		res.Live = &live
		upcoming = upcoming[1:]
	}
	res.Next = append(res.Next, upcoming...)
	h.writeJSON(w, http.StatusOK, res)
}

// GetActive handles GET /active.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.activeResponse())
}

// SetActive handles PUT /active.
// Body: { "channelId": "channel1", "programId": "program2" }; programId is
// optional and pins the selection when present.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log.Debug("invalid selection body", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.ChannelID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if !h.svc.SetActiveChannel(req.ChannelID, req.ProgramID) {
		h.log.Info("selection rejected, unknown channel",
			slog.String("channel_id", req.ChannelID),
			slog.String("program_id", req.ProgramID))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	h.log.Debug("selection updated",
		slog.String("channel_id", req.ChannelID),
		slog.String("program_id", req.ProgramID))
	h.writeJSON(w, http.StatusOK, h.activeResponse())
}

// ResumeLive handles POST /active/live.
func (h *Handler) ResumeLive(w http.ResponseWriter, r *http.Request) {
	if !h.svc.ResumeLive() {
		w.WriteHeader(http.StatusConflict)
		return
	}
	h.writeJSON(w, http.StatusOK, h.activeResponse())
}

// Refresh handles POST /refresh.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Refresh(); err != nil {
		if errors.Is(err, ErrNotRunning) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		h.log.Error("refresh failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) activeResponse() activeResponse {
	st := h.svc.State()
	var res activeResponse
	switch sel := st.Selection.(type) {
	case AutoSelection:
		res.Mode = ModeAuto
		res.ChannelID = sel.ChannelID
	case ManualSelection:
		res.Mode = ModeManual
		res.ChannelID = sel.ChannelID
		res.PinnedProgramID = sel.ProgramID
	}
	if st.Channel != nil {
		res.Channel = summarize(*st.Channel)
	}
	res.Program = st.Program
	return res
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("encode response failed", slog.String("error", err.Error()))
	}
}
