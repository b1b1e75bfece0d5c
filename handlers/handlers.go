package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"civic-reports-service/auth"
	"civic-reports-service/database"
	"civic-reports-service/email"
	"civic-reports-service/metrics"
	"civic-reports-service/models"
	"civic-reports-service/osm"
	"civic-reports-service/rabbitmq"
	"civic-reports-service/verify"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
)

// ReportsHandler handles HTTP requests for the report lifecycle.
type ReportsHandler struct {
	reports     *database.ReportsService
	authorities *database.AuthorityService
	citizens    *database.CitizenService
	tokens      *auth.TokenService
	locations   *osm.CachedLocationService
	verifier    *verify.Service
	publisher   *rabbitmq.Publisher
	emails      *email.Sender
}

func NewReportsHandler(
	reports *database.ReportsService,
	authorities *database.AuthorityService,
	citizens *database.CitizenService,
	tokens *auth.TokenService,
	locations *osm.CachedLocationService,
	verifier *verify.Service,
	publisher *rabbitmq.Publisher,
	emails *email.Sender,
) *ReportsHandler {
	return &ReportsHandler{
		reports:     reports,
		authorities: authorities,
		citizens:    citizens,
		tokens:      tokens,
		locations:   locations,
		verifier:    verifier,
		publisher:   publisher,
		emails:      emails,
	}
}

// HealthCheck returns a simple health status
func (h *ReportsHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "civic-reports-service",
	})
}

// CreateReport handles citizen report submission.
func (h *ReportsHandler) CreateReport(c *gin.Context) {
	req := &models.CreateReportRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	// Best-effort address pre-fill; never authoritative for ward resolution.
	if len(req.Coordinates) == 2 && req.Street == "" && req.Locality == "" {
		if addr, err := h.locations.GetAddress(req.Coordinates[1], req.Coordinates[0]); err != nil {
			log.Warnf("Reverse geocode failed: %v", err)
			metrics.UpstreamRequestsTotal.WithLabelValues("nominatim", "error").Inc()
		} else {
			metrics.UpstreamRequestsTotal.WithLabelValues("nominatim", "ok").Inc()
			if req.Building == "" {
				req.Building = addr.Building
			}
			req.Street = addr.Street
			req.Locality = addr.Locality
			if req.PropertyType == "" {
				req.PropertyType = addr.PropertyType
			}
		}
	}

	report, check, err := h.reports.CreateReport(c.Request.Context(), actor, req)
	if err != nil {
		h.countResolutionFailure(err)
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.ReportsCreatedTotal.Inc()

	// Advisory photo check: a mismatch clears the verification flag, it
	// never rejects the submission.
	if result := h.verifier.VerifyImageCategory(report.MediaURL, report.Category); !result.Matches {
		if err := h.reports.SetAIVerified(c.Request.Context(), report.Seq, false); err != nil {
			log.Errorf("Failed to clear verification flag on report %d: %v", report.Seq, err)
		} else {
			report.AIVerified = false
		}
	}

	h.publishEvent(rabbitmq.RoutingKeyCreated, report)

	c.JSON(http.StatusCreated, gin.H{
		"report":         report,
		"severity_check": check,
	})
}

// ListReports returns the reports visible to the acting party.
func (h *ReportsHandler) ListReports(c *gin.Context) {
	actorID := c.GetString("actor_id")
	role := c.GetString("actor_role")

	var reports []*models.Report
	var err error
	if role == models.RoleUser {
		reports, err = h.reports.ListForReporter(c.Request.Context(), actorID)
	} else {
		var authority *models.Authority
		authority, err = h.authorities.GetAuthority(c.Request.Context(), actorID)
		if err == nil {
			reports, err = h.reports.ListForAuthority(c.Request.Context(), authority)
		}
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list reports"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports, "count": len(reports)})
}

// GetReport returns one report with its history. Citizens can only fetch
// their own reports.
func (h *ReportsHandler) GetReport(c *gin.Context) {
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

	if c.GetString("actor_role") == models.RoleUser && report.ReporterID != c.GetString("actor_id") {
		c.JSON(http.StatusForbidden, models.ErrorResponse{Error: "report belongs to another reporter"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// UpdateStatus applies an approve/reject/make-pending transition.
func (h *ReportsHandler) UpdateStatus(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report seq"})
		return
	}
	req := &models.UpdateStatusRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.reports.UpdateStatus(c.Request.Context(), actor, seq, req); err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.TransitionsTotal.WithLabelValues(req.Status).Inc()

	report, err := h.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}

	h.publishEvent(rabbitmq.RoutingKeyStatus, report)
	h.notifyReporter(report)

	c.JSON(http.StatusOK, report)
}

// Forward reassigns a report to another authority or records an external
// transfer.
func (h *ReportsHandler) Forward(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report seq"})
		return
	}
	req := &models.ForwardRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	if err := h.reports.Forward(c.Request.Context(), actor, seq, req); err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.TransitionsTotal.WithLabelValues(models.ActionForwarded).Inc()

	report, err := h.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	h.publishEvent(rabbitmq.RoutingKeyStatus, report)

	c.JSON(http.StatusOK, report)
}

// Resubmit lets the reporter edit and requeue a rejected report.
func (h *ReportsHandler) Resubmit(c *gin.Context) {
	seq, err := parseSeq(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid report seq"})
		return
	}
	req := &models.ResubmitRequest{}
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	actor, err := h.actor(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	check, err := h.reports.Resubmit(c.Request.Context(), actor, seq, req)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	metrics.TransitionsTotal.WithLabelValues(models.ActionCreated).Inc()

	report, err := h.reports.GetReport(c.Request.Context(), seq)
	if err != nil {
		c.JSON(statusForError(err), models.ErrorResponse{Error: err.Error()})
		return
	}
	h.publishEvent(rabbitmq.RoutingKeyCreated, report)

	c.JSON(http.StatusOK, gin.H{
		"report":         report,
		"severity_check": check,
	})
}

// actor resolves the full acting-party profile from the validated token
// claims in the gin context.
func (h *ReportsHandler) actor(c *gin.Context) (*models.Actor, error) {
	actorID := c.GetString("actor_id")
	role := c.GetString("actor_role")
	if actorID == "" || role == "" {
		return nil, errors.New("unauthorized")
	}
	return h.tokens.ResolveActor(c.Request.Context(), actorID, role)
}

// notifyReporter emails the reporter about a status change, fire-and-forget.
func (h *ReportsHandler) notifyReporter(report *models.Report) {
	if h.emails == nil {
		return
	}
	seq, status, reporterID := report.Seq, report.Status, report.ReporterID
	go func() {
		ctx, cancel := contextWithTimeout()
		defer cancel()
		citizen, err := h.citizens.GetCitizen(ctx, reporterID)
		if err != nil {
			log.Warnf("Cannot notify reporter of report %d: %v", seq, err)
			return
		}
		h.emails.SendStatusEmail(citizen.Email, seq, status)
	}()
}

func (h *ReportsHandler) publishEvent(routingKey string, report *models.Report) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(routingKey, report); err != nil {
		log.Warnf("Failed to publish %s event for report %d: %v", routingKey, report.Seq, err)
	}
}

func (h *ReportsHandler) countResolutionFailure(err error) {
	switch {
	case errors.Is(err, database.ErrUnresolvableLocation):
		metrics.ResolutionFailuresTotal.WithLabelValues("location").Inc()
	case errors.Is(err, database.ErrNoAuthority):
		metrics.ResolutionFailuresTotal.WithLabelValues("authority").Inc()
	case errors.Is(err, database.ErrDataIntegrity):
		metrics.ResolutionFailuresTotal.WithLabelValues("integrity").Inc()
	}
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

func parseSeq(c *gin.Context) (int64, error) {
	return strconv.ParseInt(c.Param("seq"), 10, 64)
}

// statusForError maps lifecycle sentinel errors onto HTTP statuses:
// user-input problems are client errors, configuration and integrity
// problems are server errors.
func statusForError(err error) int {
	switch {
	case errors.Is(err, database.ErrValidation), errors.Is(err, database.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, database.ErrNotRejected):
		return http.StatusConflict
	case errors.Is(err, database.ErrUnresolvableLocation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
