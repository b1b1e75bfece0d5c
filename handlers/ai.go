package handlers

import (
	"net/http"

	"civic-reports-service/database"
	"civic-reports-service/metrics"
	"civic-reports-service/models"
	"civic-reports-service/openai"

	"github.com/gin-gonic/gin"
)

// AssistHandler exposes the advisory AI helpers for reviewers. All endpoints
// degrade to a helpful error rather than blocking review work.
type AssistHandler struct {
	reports *database.ReportsService
	client  *openai.Client
}

func NewAssistHandler(reports *database.ReportsService, client *openai.Client) *AssistHandler {
	return &AssistHandler{reports: reports, client: client}
}

// SuggestRejectionReason drafts a rejection reason from the report content.
func (h *AssistHandler) SuggestRejectionReason(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report seq"})
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	reason, err := h.client.SuggestRejectionReason(report.Title, report.Description, report.Category)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("openai_assist", "error").Inc()
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "suggestion unavailable"})
		return
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("openai_assist", "ok").Inc()

	c.JSON(http.StatusOK, gin.H{"seq": seq, "suggestion": reason})
}

// Summarize condenses a report description for reviewer triage.
func (h *AssistHandler) Summarize(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report seq"})
		return
	}

	report, err := h.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	summary, err := h.client.SummarizeDescription(report.Description)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues("openai_assist", "error").Inc()
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "summary unavailable"})
		return
	}
	metrics.UpstreamRequestsTotal.WithLabelValues("openai_assist", "ok").Inc()

	c.JSON(http.StatusOK, gin.H{"seq": seq, "summary": summary})
}
