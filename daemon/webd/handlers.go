package webd

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/runstr/trackd/publish"
	"github.com/runstr/trackd/tracker"
	"github.com/runstr/trackd/types/activity"
	"github.com/runstr/trackd/types/fix"
)

func pingPong(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("pong"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// handleStart begins a session. The activity comes from the ?activity query
// param; unknown values are rejected rather than guessed at.
func (s *WebDaemon) handleStart(w http.ResponseWriter, r *http.Request) {
	act := activity.FromString(r.FormValue("activity"))
	if !act.IsKnown() {
		http.Error(w, "unknown activity", http.StatusBadRequest)
		return
	}
	if err := s.tracker.Start(s.ctx, s.Config.UserID, act); err != nil {
		s.logger.Error("Failed to start session", "error", err)
		switch {
		case errors.Is(err, tracker.ErrAlreadyActive):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, tracker.ErrNotAuthorized),
			errors.Is(err, tracker.ErrLocationNotAuthorized):
			http.Error(w, err.Error(), http.StatusForbidden)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	snap, err := s.tracker.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *WebDaemon) handlePause(w http.ResponseWriter, r *http.Request) {
	s.handleSessionControl(w, s.tracker.Pause())
}

func (s *WebDaemon) handleResume(w http.ResponseWriter, r *http.Request) {
	s.handleSessionControl(w, s.tracker.Resume())
}

func (s *WebDaemon) handleSessionControl(w http.ResponseWriter, err error) {
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, tracker.ErrNotActive) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	snap, err := s.tracker.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleStop finalizes the session, persists the record and its route file,
// and returns the finalized workout.
func (s *WebDaemon) handleStop(w http.ResponseWriter, r *http.Request) {
	wk, err := s.tracker.Stop()
	if err != nil {
		if errors.Is(err, tracker.ErrNotActive) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if s.store != nil {
		if err := s.store.StoreWorkout(wk); err != nil {
			s.logger.Error("Failed to store workout", "workout", wk.ID, "error", err)
			http.Error(w, "failed to store workout", http.StatusInternalServerError)
			return
		}
		if path, err := s.store.WriteRouteGZ(wk); err != nil {
			s.logger.Error("Failed to write route file", "workout", wk.ID, "error", err)
		} else {
			s.logger.Info("Wrote route file", "workout", wk.ID, "path", path)
		}
	}
	if len(s.publishers) > 0 {
		// Uploads ride the daemon context, not the request's.
		go publish.All(s.ctx, wk, s.publishers...)
	}
	writeJSON(w, http.StatusOK, wk)
}

// handlePopulate ingests raw fixes. The body may be a JSON array of fixes,
// a single fix object, or a geojson FeatureCollection; key aliases cover the
// formats different clients post. Duplicates from retried uploads are
// filtered before reaching the session.
func (s *WebDaemon) handlePopulate(w http.ResponseWriter, r *http.Request) {
	if r.Body == nil {
		http.Error(w, "Please send a request body", http.StatusBadRequest)
		return
	}
	// Fixes only mean something relative to a running session; without one
	// there is nothing to feed and nowhere to buffer.
	if _, err := s.tracker.Snapshot(); err != nil {
		http.Error(w, "no active session", http.StatusConflict)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusInternalServerError)
		return
	}

	fixes, err := fix.DecodeFixes(body)
	if err != nil {
		s.logger.Error("Failed to decode fixes", "error", err)
		http.Error(w, "Failed to decode fixes", http.StatusBadRequest)
		return
	}

	ingested := 0
	for _, f := range fixes {
		if !s.dedupe(f) {
			continue
		}
		s.push.Send(f)
		ingested++
	}
	s.logger.Info("Populated fixes", "received", len(fixes), "ingested", ingested)
	writeJSON(w, http.StatusOK, map[string]int{
		"received": len(fixes),
		"ingested": ingested,
	})
}

// handleLastSnapshot serves the live session snapshot if one is active, else
// the cached last-known snapshot.
func (s *WebDaemon) handleLastSnapshot(w http.ResponseWriter, r *http.Request) {
	if snap, err := s.tracker.Snapshot(); err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if s.store != nil {
		if snap, ok := s.store.LastSnapshot(s.Config.UserID); ok {
			writeJSON(w, http.StatusOK, snap)
			return
		}
	}
	http.Error(w, "no session", http.StatusNotFound)
}

func (s *WebDaemon) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	workouts, err := s.store.ListWorkouts()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, workouts)
}

func (s *WebDaemon) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	wk, err := s.store.ReadWorkout(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, wk)
}
