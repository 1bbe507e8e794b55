package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/model"
	ports "telegram-video-gen/internal/domain/ports/usecase"
	"telegram-video-gen/internal/infra/adapters/video"
	"telegram-video-gen/internal/infra/metrics"
)

// callbackBody is the provider notice shape. Some providers post the fields
// at the top level, some nest them under "data".
type callbackBody struct {
	Code       int             `json:"code"`
	TaskID     string          `json:"taskId"`
	State      string          `json:"state"`
	ResultJSON json.RawMessage `json:"resultJson"`
	ResultURLs []string        `json:"resultUrls"`
	FailMsg    string          `json:"failMsg"`
	Data       *callbackBody   `json:"data"`
}

func (b *callbackBody) flatten() *callbackBody {
	if b.Data != nil && b.Data.TaskID != "" {
		return b.Data
	}
	return b
}

func (s *Server) handleGenerationCallback(w http.ResponseWriter, r *http.Request) {
	var body callbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		metrics.IncCallbackNotice("malformed")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	cb := body.flatten()
	if cb.TaskID == "" {
		metrics.IncCallbackNotice("malformed")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing taskId"})
		return
	}

	notice := ports.CallbackNotice{TaskID: cb.TaskID}
	switch cb.State {
	case "success":
		notice.Success = true
		notice.ResultURLs = s.extractResultURLs(cb)
	case "fail":
		notice.FailMsg = cb.FailMsg
		if notice.FailMsg == "" {
			notice.FailMsg = "provider reported failure"
		}
	default:
		s.log.Warn().Str("task_id", cb.TaskID).Str("state", cb.State).
			Msg("callback with unrecognized state ignored")
		metrics.IncCallbackNotice("ignored")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	err := s.jobs.FinalizeByTask(r.Context(), notice)
	switch {
	case err == nil:
		metrics.IncCallbackNotice("applied")
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn().Str("task_id", cb.TaskID).Msg("callback for unknown task")
		metrics.IncCallbackNotice("unknown_task")
	case errors.Is(err, domain.ErrJobFinished):
		s.log.Debug().Str("task_id", cb.TaskID).Msg("callback for finished job ignored")
		metrics.IncCallbackNotice("duplicate")
	default:
		s.log.Error().Err(err).Str("task_id", cb.TaskID).Msg("failed to apply callback")
		metrics.IncCallbackNotice("error")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// extractResultURLs pulls the video URLs from whichever field the provider
// used. A success notice with an unparseable payload yields no URLs, which
// the lifecycle treats as a failed generation.
func (s *Server) extractResultURLs(cb *callbackBody) []string {
	if len(cb.ResultURLs) > 0 {
		return cb.ResultURLs
	}
	if len(cb.ResultJSON) == 0 {
		return nil
	}
	urls, err := video.ParseResultURLs(cb.ResultJSON)
	if err != nil {
		s.log.Warn().Err(err).Str("task_id", cb.TaskID).Msg("unparseable resultJson in callback")
		return nil
	}
	return urls
}

type jobView struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Provider    string     `json:"provider"`
	Model       string     `json:"model"`
	Status      string     `json:"status"`
	TaskID      string     `json:"task_id,omitempty"`
	ResultURL   string     `json:"result_url,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Attempts    int        `json:"attempts"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
}

func toJobView(j *model.VideoJob) jobView {
	return jobView{
		ID:          j.ID,
		UserID:      j.UserID,
		Provider:    j.Provider,
		Model:       j.Model,
		Status:      string(j.Status),
		TaskID:      j.TaskID,
		ResultURL:   j.ResultURL,
		LastError:   j.LastError,
		Attempts:    j.Attempts,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		ExpiresAt:   j.ExpiresAt,
	}
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Get(r.Context(), chi.URLParam(r, "id"))
	s.writeJob(w, job, err)
}

func (s *Server) handleGetJobByTask(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetByTaskID(r.Context(), chi.URLParam(r, "taskId"))
	s.writeJob(w, job, err)
}

func (s *Server) writeJob(w http.ResponseWriter, job *model.VideoJob, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
	case err != nil:
		s.log.Error().Err(err).Msg("failed to load job")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	default:
		writeJSON(w, http.StatusOK, toJobView(job))
	}
}

func (s *Server) handleListUserJobs(w http.ResponseWriter, r *http.Request) {
	var status *model.VideoJobStatus
	if q := r.URL.Query().Get("status"); q != "" {
		st := model.VideoJobStatus(q)
		if !st.Valid() {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		status = &st
	}
	jobs, err := s.jobs.ListUserJobs(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list user jobs")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, toJobView(j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": views})
}
