package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/castlab/enginerelay/internal/engine"
	"github.com/castlab/enginerelay/internal/registry"
)

// maxResultLineBytes caps a single result line from a provider.
const maxResultLineBytes = 1 << 20

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	engines, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("failed to count engines", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to count engines")
		return
	}

	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		JobsQueued:    s.hub.Len(),
		JobsInFlight:  s.ongoing.Len(),
		Engines:       engines,
	})
}

// handleRegister handles POST /api/external-engine.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registry.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eng, err := s.store.Create(r.Context(), req)
	if err != nil {
		if errors.Is(err, registry.ErrInvalidRegistration) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to register engine", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to register engine")
		return
	}

	s.logger.Info("engine registered", "engine_id", eng.ID, "name", eng.Name)

	respondJSON(w, http.StatusCreated, RegisterResponse{
		ID:           eng.ID,
		Name:         eng.Name,
		ClientSecret: eng.ClientSecret,
		MaxThreads:   eng.MaxThreads,
		MaxHash:      eng.MaxHash,
		Variants:     eng.Variants,
	})
}

// handleGetEngine handles GET /api/external-engine/{id}.
func (s *Server) handleGetEngine(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.authedEngine(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, eng)
}

// handleDeleteEngine handles DELETE /api/external-engine/{id}.
func (s *Server) handleDeleteEngine(w http.ResponseWriter, r *http.Request) {
	eng, ok := s.authedEngine(w, r)
	if !ok {
		return
	}
	if err := s.store.Delete(r.Context(), eng.ID); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("failed to delete engine", "engine_id", eng.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to delete engine")
		return
	}
	s.logger.Info("engine deleted", "engine_id", eng.ID)
	w.WriteHeader(http.StatusNoContent)
}

// authedEngine loads the engine in the URL and checks the bearer client
// secret. Unknown id and wrong secret are indistinguishable to the caller.
func (s *Server) authedEngine(w http.ResponseWriter, r *http.Request) (engine.Engine, bool) {
	id := chi.URLParam(r, "id")
	token, err := ExtractBearerToken(r)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, err.Error())
		return engine.Engine{}, false
	}
	eng, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return engine.Engine{}, false
		}
		s.logger.Error("failed to load engine", "engine_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load engine")
		return engine.Engine{}, false
	}
	if !eng.ClientSecret.Equal(engine.ClientSecret(token)) {
		s.writeError(w, http.StatusNotFound, "not found")
		return engine.Engine{}, false
	}
	return eng, true
}

// handleAnalyse handles POST /api/external-engine/{id}/analyse.
// The connection stays open to stream result lines back; it is also the
// requester's liveness signal, so closing it abandons the job.
func (s *Server) handleAnalyse(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req AnalyseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	eng, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "not found")
			return
		}
		s.logger.Error("failed to load engine", "engine_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to load engine")
		return
	}
	if !eng.ClientSecret.Equal(req.ClientSecret) {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}

	work, _, err := req.Work.Sanitize(eng)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	job := newJob(r.Context(), work, eng)
	s.hub.Submit(eng.ProviderSelector, job)
	s.metrics.RecordSubmitted()
	s.logger.Info("job submitted", "engine_id", eng.ID, "session_id", work.SessionID)

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case line, ok := <-job.Lines():
			if !ok {
				return
			}
			if _, err := w.Write(append(line, '\n')); err != nil {
				return
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}

// handleAcquire handles POST /api/external-engine/work. Long-poll: the
// provider parks until a job addressed to its selector arrives or it hangs
// up. There is no server-side deadline; the client's is authoritative.
func (s *Server) handleAcquire(w http.ResponseWriter, r *http.Request) {
	var req AcquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	selector := req.ProviderSecret.Selector()
	job, err := s.hub.Acquire(r.Context(), selector)
	if err != nil {
		// Provider went away while parked; nobody reads this response.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	jobID := engine.NewJobID()
	if err := s.ongoing.Add(jobID, job); err != nil {
		s.logger.Error("failed to track dispatched job", "job_id", string(jobID), "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to track job")
		return
	}
	s.metrics.RecordAcquired()
	s.logger.Info("job acquired", "job_id", string(jobID), "engine_id", job.Engine().ID)

	respondJSON(w, http.StatusOK, AcquireResponse{
		ID:     jobID,
		Work:   job.Work(),
		Engine: job.Engine(),
	})
}

// handleSubmit handles POST /api/external-engine/work/{id}. The provider
// streams newline-delimited result lines in the body; each is forwarded to
// the requester's open analyse connection.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	jobID := engine.JobID(chi.URLParam(r, "id"))

	job, ok := s.ongoing.Remove(jobID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	defer job.Close()

	scanner := bufio.NewScanner(r.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResultLineBytes)
	for scanner.Scan() {
		line := append([]byte(nil), scanner.Bytes()...)
		if !job.Send(line) {
			// Requester gone mid-stream; discard the rest.
			break
		}
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("result stream truncated", "job_id", string(jobID), "error", err)
	}

	s.metrics.RecordCompleted()
	s.logger.Info("job completed", "job_id", string(jobID), "engine_id", job.Engine().ID)
	w.WriteHeader(http.StatusOK)
}

// respondJSON is a helper to write JSON responses.
func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
