package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/scribe/errors"
	"github.com/skillsenselab/scribe/pipeline"
	"github.com/skillsenselab/scribe/transcription"
)

// ownerHeader carries the caller identity. Jobs submitted without it are
// ownerless and open to any caller holding the job id.
const ownerHeader = "X-Owner-Id"

// providerKeyHeader carries an optional bring-your-own-key credential that
// is forwarded to the transcription backend for this job only.
const providerKeyHeader = "X-Provider-Key"

// JobHandler exposes the transcription pipeline over HTTP.
type JobHandler struct {
	svc      *pipeline.Service
	provider transcription.Provider
}

// NewJobHandler creates the handler for the job API.
func NewJobHandler(svc *pipeline.Service, provider transcription.Provider) *JobHandler {
	return &JobHandler{svc: svc, provider: provider}
}

// Register mounts the job API routes on the engine.
func (h *JobHandler) Register(engine *gin.Engine) {
	engine.GET("/health", h.health)
	v1 := engine.Group("/v1")
	v1.POST("/jobs", h.submit)
	v1.GET("/jobs/:id", h.status)
	v1.DELETE("/jobs/:id", h.cancel)
}

// submit accepts a multipart upload ("audio" file field, optional "mode",
// "language", and "diarize" form fields) and responds 202 with the job id.
func (h *JobHandler) submit(c *gin.Context) {
	file, err := c.FormFile("audio")
	if err != nil {
		RespondWithError(c, errors.MissingField("audio"))
		return
	}
	f, err := file.Open()
	if err != nil {
		RespondWithError(c, errors.InvalidInput("audio", "could not open uploaded file"))
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		RespondWithError(c, errors.InvalidInput("audio", "could not read uploaded file"))
		return
	}

	jobID, err := h.svc.Submit(c.Request.Context(), pipeline.SubmitRequest{
		Audio:       data,
		Filename:    file.Filename,
		Mode:        c.PostForm("mode"),
		Language:    c.PostForm("language"),
		Diarize:     c.PostForm("diarize") == "true",
		OwnerID:     c.GetHeader(ownerHeader),
		ProviderKey: c.GetHeader(providerKeyHeader),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondAccepted(c, gin.H{"job_id": jobID})
}

func (h *JobHandler) status(c *gin.Context) {
	resp, err := h.svc.GetStatus(c.Param("id"), c.GetHeader(ownerHeader))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, resp)
}

func (h *JobHandler) cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Param("id"), c.GetHeader(ownerHeader)); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (h *JobHandler) health(c *gin.Context) {
	status := "ok"
	code := http.StatusOK
	if !h.provider.IsAvailable(c.Request.Context()) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "provider": h.provider.Name()})
}
