package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/tether/internal/failure"
	"github.com/lazypower/tether/internal/queue"
	"github.com/lazypower/tether/internal/reconcile"
	"github.com/lazypower/tether/internal/reminder"
	"github.com/lazypower/tether/internal/voice"
)

// statusFor maps a component error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, queue.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, voice.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, reconcile.ErrEmptyTitle):
		return http.StatusBadRequest
	}
	switch failure.KindOf(err) {
	case failure.Network:
		return http.StatusServiceUnavailable
	case failure.Auth:
		return http.StatusUnauthorized
	case failure.Server, failure.Parse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Warn("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeError(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (s *Server) handleListReminders(w http.ResponseWriter, r *http.Request) {
	list := s.svc.Reminders.List()
	if list == nil {
		list = []reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": list})
}

func (s *Server) handleCreateReminder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		Date  string `json:"date"`
		Time  string `json:"time"`
	}
	if !decode(w, r, &req) {
		return
	}

	rem, err := s.svc.Reminders.Create(req.Title, req.Date, req.Time)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Completed *bool `json:"completed"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed required")
		return
	}

	if err := s.svc.Reminders.SyncReminderStatus(r.Context(), id, *req.Completed); err != nil {
		s.fail(w, r, err)
		return
	}

	rem, ok := s.svc.Reminders.Get(id)
	if !ok {
		// Updated remotely but not held locally.
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "completed": *req.Completed})
		return
	}
	writeJSON(w, http.StatusOK, rem)
}

func (s *Server) handleDeleteReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.svc.Reminders.SyncDeleteReminder(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Reminders.Sync(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []reminder.Reminder{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"reminders": list})
}

type handleRequest struct {
	Handle string `json:"handle"`
}

func (s *Server) readHandle(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req handleRequest
	if !decode(w, r, &req) {
		return "", false
	}
	h := strings.TrimSpace(req.Handle)
	if h == "" {
		writeError(w, http.StatusBadRequest, "handle required")
		return "", false
	}
	return h, true
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.readHandle(w, r)
	if !ok {
		return
	}

	res, err := s.svc.Voice.Capture(r.Context(), handle)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, res)
}

func (s *Server) handleListQueue(w http.ResponseWriter, r *http.Request) {
	items := s.svc.Queue.Items()
	if items == nil {
		items = []queue.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":   items,
		"running": s.svc.Queue.Running(),
	})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.readHandle(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, s.svc.Queue.Add(handle))
}

func (s *Server) handleProcessQueue(w http.ResponseWriter, r *http.Request) {
	rep, err := s.svc.Queue.Process(r.Context(), s.svc.Voice.Complete)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	c := s.svc.Usage.Current()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     c.Count,
		"month":     c.Month,
		"year":      c.Year,
		"limit":     s.svc.Usage.Limit,
		"remaining": s.svc.Usage.Remaining(),
		"canRecord": s.svc.Usage.CanRecord(),
	})
}

func (s *Server) handlePruneCache(w http.ResponseWriter, r *http.Request) {
	removed := s.svc.Cache.ClearOldEntries()
	writeJSON(w, http.StatusOK, map[string]int{
		"removed":   removed,
		"remaining": len(s.svc.Cache.Entries()),
	})
}
