package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/colonyops/linglenz/internal/core/classroom"
	"github.com/colonyops/linglenz/internal/core/mistake"
	"github.com/colonyops/linglenz/internal/correction"
)

func (s *Server) handleCheckSentence(w http.ResponseWriter, r *http.Request) {
	var req correction.Request
	if err := decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: correction.KindInvalidInput})
		return
	}

	res, err := s.app.Checker.Check(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type activeResponse struct {
	Active  bool               `json:"active"`
	Session *classroom.Session `json:"session,omitempty"`
}

func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Guard.CheckActive(r.Context(), r.PathValue("teacher"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activeResponse{Active: sess != nil, Session: sess})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.app.Guard.ListPendingReview(r.Context(), r.PathValue("teacher"))
	if err != nil {
		writeError(w, err)
		return
	}
	if sessions == nil {
		sessions = []classroom.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// startRequest starts a class. OnConflict chooses what happens when the
// teacher already has one in progress: "" reports the conflict, "resume"
// returns the existing class, "abandon" supersedes it.
type startRequest struct {
	TeacherID  string `json:"teacher_id"`
	StudentID  string `json:"student_id"`
	OnConflict string `json:"on_conflict"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	switch req.OnConflict {
	case "":
		sess, err := s.app.Guard.StartSession(ctx, req.TeacherID, req.StudentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	case "resume":
		sess, err := s.app.Guard.StartSession(ctx, req.TeacherID, req.StudentID)
		if err == nil {
			writeJSON(w, http.StatusCreated, sess)
			return
		}
		var conflict *classroom.ConflictError
		if !errors.As(err, &conflict) {
			writeError(w, err)
			return
		}
		resumed, err := s.app.Guard.Resume(ctx, req.TeacherID, conflict.Existing.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resumed)
	case "abandon":
		sess, err := s.app.Guard.AbandonAndStart(ctx, req.TeacherID, req.StudentID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "on_conflict must be empty, resume or abandon"})
	}
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Guard.Get(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := s.app.Guard.Get(ctx, r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	resumed, err := s.app.Guard.Resume(ctx, sess.TeacherID, sess.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumed)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Classes.Finish(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Guard.Complete(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type captureResponse struct {
	Active bool `json:"active"`
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	room, err := s.app.Classes.Open(r.Context(), r.PathValue("session"), r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, err)
		return
	}
	if err := room.StartCapture(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{Active: room.CaptureActive()})
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	room, ok := s.app.Classes.Room(r.PathValue("session"))
	if !ok {
		writeJSON(w, http.StatusOK, captureResponse{})
		return
	}
	if err := room.StopCapture(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, captureResponse{Active: room.CaptureActive()})
}

func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := s.app.Classes.Entries(r.Context(), r.PathValue("session"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type submitRequest struct {
	Text     string         `json:"text"`
	Source   mistake.Source `json:"source"`
	Language string         `json:"language"`
}

func (s *Server) handleSubmitEntry(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Source == "" {
		req.Source = mistake.SourceManual
	}

	ctx := r.Context()
	sessionID := r.PathValue("session")
	if lang := strings.TrimSpace(req.Language); lang != "" {
		// Opening with a language only matters for the first open.
		if _, err := s.app.Classes.Open(ctx, sessionID, lang); err != nil {
			writeError(w, err)
			return
		}
	}

	entry, err := s.app.Classes.Submit(ctx, sessionID, req.Text, req.Source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}

func (s *Server) handleRetryEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.app.Classes.Retry(r.Context(), r.PathValue("session"), r.PathValue("entry"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Classes.DeleteEntry(r.Context(), r.PathValue("session"), r.PathValue("entry")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
