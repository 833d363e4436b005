package apihandlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"scribe/internal/app"
	"scribe/internal/models"
	"scribe/internal/services"
	"scribe/internal/store"
)

// Dispatcher enqueues a persisted job.
type Dispatcher interface {
	DispatchJob(ctx context.Context, jobID string) (*asynq.TaskInfo, error)
}

// Entitlements answers entitlement and usage queries for an org.
type Entitlements interface {
	CanStartJob(ctx context.Context, orgID string) (models.Entitlement, error)
	ListUsage(ctx context.Context, orgID string, limit, offset int) ([]*models.UsageRecord, error)
}

// Collaborator is anything the health endpoint reports on.
type Collaborator interface {
	Name() string
	Status() services.ProviderStatus
}

type APIHandler struct {
	Jobs          store.JobStore
	Dispatcher    Dispatcher
	Ledger        Entitlements
	Collaborators map[string]Collaborator
}

func NewAPIHandler(a *app.App) *APIHandler {
	return &APIHandler{
		Jobs:       a.JobStore,
		Dispatcher: a.JobClient,
		Ledger:     a.Ledger,
		Collaborators: map[string]Collaborator{
			"transcription": a.Transcriber,
			"completion":    a.Completer,
		},
	}
}

// RegisterRoutes mounts the API under /api/v1 plus /health.
func (h *APIHandler) RegisterRoutes(r gin.IRouter) {
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", h.CreateJobHandler)
			jobs.GET("/:id", h.GetJobHandler)
			jobs.POST("/:id/dispatch", h.DispatchJobHandler)
		}
		orgs := v1.Group("/orgs")
		{
			orgs.GET("/:id/entitlement", h.EntitlementHandler)
			orgs.GET("/:id/usage", h.ListUsageHandler)
		}
	}
	r.GET("/health", h.HealthHandler)
}

// --- Jobs ---

type fileRequest struct {
	OriginalName string `json:"originalName"`
	MIMEType     string `json:"mimeType"`
	Bucket       string `json:"bucket"`
	Key          string `json:"key"`
}

type createJobRequest struct {
	OrgID  string           `json:"orgId"`
	UserID string           `json:"userId"`
	Params models.JobParams `json:"params"`
	Tasks  models.JobTasks  `json:"tasks"`
	Files  []fileRequest    `json:"files"`
}

type createJobResponse struct {
	Job        *models.Job `json:"job"`
	Dispatched bool        `json:"dispatched"`
}

// parseCreateJobRequest binds and validates the body into a new queued job.
func parseCreateJobRequest(c *gin.Context) (*models.Job, error) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body: %v", models.ErrValidation, err)
	}
	if len(req.Files) == 0 {
		return nil, fmt.Errorf("%w: at least one file is required", models.ErrValidation)
	}
	req.Params.OutputFormat = strings.ToLower(strings.TrimSpace(req.Params.OutputFormat))
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}

	job := &models.Job{
		ID:     uuid.NewString(),
		Status: models.JobStatusQueued,
		Params: req.Params.WithDefaults(),
		Tasks:  req.Tasks,
	}
	if org := strings.TrimSpace(req.OrgID); org != "" {
		job.OrgID = &org
	}
	if user := strings.TrimSpace(req.UserID); user != "" {
		job.UserID = &user
	}
	for i, f := range req.Files {
		if f.Bucket == "" || f.Key == "" {
			return nil, fmt.Errorf("%w: file %d needs bucket and key", models.ErrValidation, i)
		}
		name := f.OriginalName
		if name == "" {
			name = f.Key[strings.LastIndex(f.Key, "/")+1:]
		}
		job.Files = append(job.Files, models.File{
			Position:     i,
			OriginalName: name,
			MIMEType:     f.MIMEType,
			Bucket:       f.Bucket,
			Key:          f.Key,
		})
	}
	return job, nil
}

func (h *APIHandler) CreateJobHandler(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := parseCreateJobRequest(c)
	if err != nil {
		respondError(c, "create job", err)
		return
	}

	if org := job.Org(); org != "" {
		ent, err := h.Ledger.CanStartJob(ctx, org)
		if err != nil {
			respondError(c, "check entitlement", err)
			return
		}
		if !ent.Allowed {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"error":       APIError{Code: "entitlement_denied", Message: "org has no included minutes or credits left"},
				"entitlement": ent,
			})
			return
		}
	}

	if err := h.Jobs.CreateJob(ctx, job); err != nil {
		respondError(c, "create job", err)
		return
	}

	// A failed enqueue leaves the job queued; POST .../dispatch retries it.
	dispatched := true
	if _, err := h.Dispatcher.DispatchJob(ctx, job.ID); err != nil && !errors.Is(err, store.ErrAlreadyQueued) {
		log.WithField("job_id", job.ID).Errorf("dispatch after create failed: %v", err)
		dispatched = false
	}
	c.JSON(http.StatusAccepted, gin.H{"data": createJobResponse{Job: job, Dispatched: dispatched}})
}

func (h *APIHandler) GetJobHandler(c *gin.Context) {
	job, err := h.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get job", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": job})
}

func (h *APIHandler) DispatchJobHandler(c *gin.Context) {
	ctx := c.Request.Context()
	job, err := h.Jobs.GetJob(ctx, c.Param("id"))
	if err != nil {
		respondError(c, "get job", err)
		return
	}
	if models.IsTerminalStatus(job.Status) {
		Conflict(c, fmt.Sprintf("job %s is already %s", job.ID, job.Status))
		return
	}
	info, err := h.Dispatcher.DispatchJob(ctx, job.ID)
	if err != nil {
		respondError(c, "dispatch job", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{"jobId": job.ID, "taskId": info.ID, "queue": info.Queue}})
}

// --- Orgs ---

func (h *APIHandler) EntitlementHandler(c *gin.Context) {
	ent, err := h.Ledger.CanStartJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "check entitlement", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ent})
}

type usageRecordResponse struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	CreatedAt time.Time `json:"createdAt"`
	models.UsageAllocation
}

func (h *APIHandler) ListUsageHandler(c *gin.Context) {
	limit, offset, err := parsePagination(c)
	if err != nil {
		BadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}
	records, err := h.Ledger.ListUsage(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, "list usage", err)
		return
	}
	out := make([]usageRecordResponse, 0, len(records))
	for _, r := range records {
		out = append(out, usageRecordResponse{
			ID:              r.ID.String(),
			JobID:           r.JobID,
			CreatedAt:       r.CreatedAt,
			UsageAllocation: r.Allocation(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func parsePagination(c *gin.Context) (limit, offset int, err error) {
	limit, offset = 20, 0
	if l := c.Query("limit"); l != "" {
		parsed, perr := strconv.Atoi(l)
		if perr != nil || parsed <= 0 {
			return 0, 0, fmt.Errorf("invalid limit: %s", l)
		}
		limit = min(parsed, 200)
	}
	if o := c.Query("offset"); o != "" {
		parsed, perr := strconv.Atoi(o)
		if perr != nil || parsed < 0 {
			return 0, 0, fmt.Errorf("invalid offset: %s", o)
		}
		offset = parsed
	}
	return limit, offset, nil
}

// --- Health ---

func (h *APIHandler) HealthHandler(c *gin.Context) {
	components := gin.H{}
	status, code := "ok", http.StatusOK

	if err := h.Jobs.Ping(c.Request.Context()); err != nil {
		components["database"] = "error: " + err.Error()
		status, code = "degraded", http.StatusServiceUnavailable
	} else {
		components["database"] = "ok"
	}
	for role, collab := range h.Collaborators {
		if collab == nil {
			continue
		}
		components[role] = gin.H{"provider": collab.Name(), "status": collab.Status()}
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}
