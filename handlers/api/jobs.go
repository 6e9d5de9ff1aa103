package api

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
	"github.com/nijaru/yt-kb/services/queue"
)

type JobHandler struct {
	service queue.Service
	logger  *logrus.Logger
}

func NewJobHandler(service queue.Service, logger *logrus.Logger) *JobHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &JobHandler{
		service: service,
		logger:  logger,
	}
}

// HandleCreate handles POST /api/jobs
func (h *JobHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateJobRequest
	if err := readJSON(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	job, err := h.service.Create(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusCreated, job)
}

// HandleList handles GET /api/jobs?status=
func (h *JobHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// HandleStats handles GET /api/jobs/stats
func (h *JobHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, stats)
}

// HandleGet handles GET /api/jobs/{id}
func (h *JobHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, job)
}

// HandleUpdate handles PATCH /api/jobs/{id}. The JSON body wins; status and
// progress query parameters are accepted when the body omits them.
func (h *JobHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	const op = "JobHandler.HandleUpdate"

	var req models.UpdateJobRequest
	if err := readJSON(w, r, &req, true); err != nil {
		respondError(w, r, err)
		return
	}

	query := r.URL.Query()
	if req.Status == "" {
		req.Status = query.Get("status")
	}
	if req.Progress == nil && query.Get("progress") != "" {
		p, err := strconv.ParseFloat(query.Get("progress"), 64)
		if err != nil {
			respondError(w, r, errors.InvalidInput(op, err, "progress must be a number"))
			return
		}
		req.Progress = &p
	}

	job, err := h.service.UpdateStatus(r.Context(), r.PathValue("id"), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, job)
}

// HandleAddSelected handles POST /api/jobs/add-selected
func (h *JobHandler) HandleAddSelected(w http.ResponseWriter, r *http.Request) {
	var req models.AddSelectedRequest
	if err := readJSON(w, r, &req, false); err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := h.service.AddSelected(r.Context(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, resp)
}

// HandleDelete handles DELETE /api/jobs/{id}
func (h *JobHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, r, http.StatusOK, models.DeleteResponse{Success: deleted})
}
