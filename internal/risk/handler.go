package risk

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/towerclub/ambassador-server/internal/referrals"
	"github.com/towerclub/ambassador-server/pkg/common"
	"github.com/towerclub/ambassador-server/pkg/logger"
	"github.com/towerclub/ambassador-server/pkg/middleware"
	"github.com/towerclub/ambassador-server/pkg/pagination"
	"github.com/towerclub/ambassador-server/pkg/validation"
)

// Handler handles HTTP requests for the risk engine
type Handler struct {
	service ServiceInterface
}

// NewHandler creates a new risk handler
func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

// Scan runs a scoring scan over a referrer's referrals
// POST /api/v1/risk/referrers/:id/scan?building=N
func (h *Handler) Scan(c *gin.Context) {
	referrerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid referrer id")
		return
	}
	building, err := parseBuilding(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid building")
		return
	}

	if adminID, err := middleware.GetUserID(c); err == nil {
		logger.WithContext(c.Request.Context()).Info("scan requested",
			zap.String("admin_id", adminID.String()),
			zap.String("referrer_id", referrerID.String()))
	}

	run, err := h.service.Scan(c.Request.Context(), referrerID, building)
	if err != nil {
		respondServiceError(c, err, "scan failed")
		return
	}

	common.SuccessResponse(c, run)
}

// AnalyzeReferrer runs the deterministic fallback analysis, nothing persisted
// POST /api/v1/risk/referrers/:id/analyze?building=N
func (h *Handler) AnalyzeReferrer(c *gin.Context) {
	referrerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid referrer id")
		return
	}
	building, err := parseBuilding(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid building")
		return
	}

	result, err := h.service.QuickAnalyze(c.Request.Context(), referrerID, building)
	if err != nil {
		respondServiceError(c, err, "analysis failed")
		return
	}

	common.SuccessResponse(c, result)
}

// AnalyzeReferralEntry is one ad-hoc referral submitted for analysis
type AnalyzeReferralEntry struct {
	Name      *string   `json:"name"`
	Email     *string   `json:"email" validate:"omitempty,email"`
	Phone     *string   `json:"phone"`
	SignupIP  *string   `json:"signup_ip" validate:"omitempty,ip"`
	Status    string    `json:"status" validate:"omitempty,referral_status"`
	CreatedAt time.Time `json:"created_at"`
}

// AnalyzeRequest is an ad-hoc batch of referrals to score without persistence
type AnalyzeRequest struct {
	Referrals []AnalyzeReferralEntry `json:"referrals" validate:"required,min=1,max=100,dive"`
}

// Analyze scores an ad-hoc set of referrals with the fallback scorer
// POST /api/v1/risk/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validation.ValidateStruct(req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	records := make([]*referrals.ReferralRecord, len(req.Referrals))
	for i, entry := range req.Referrals {
		createdAt := entry.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		records[i] = &referrals.ReferralRecord{
			ID:            uuid.New(),
			ReferredName:  entry.Name,
			ReferredEmail: entry.Email,
			ReferredPhone: entry.Phone,
			SignupIP:      entry.SignupIP,
			Status:        referrals.ReferralStatus(entry.Status),
			CreatedAt:     createdAt,
		}
	}

	result, err := h.service.AnalyzeRecords(c.Request.Context(), records)
	if err != nil {
		respondServiceError(c, err, "analysis failed")
		return
	}

	common.SuccessResponse(c, result)
}

// ListAssessments returns a referrer's current assessments
// GET /api/v1/risk/referrers/:id/assessments
func (h *Handler) ListAssessments(c *gin.Context) {
	referrerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid referrer id")
		return
	}
	params := pagination.ParseParams(c)

	assessments, total, err := h.service.ListAssessments(c.Request.Context(), referrerID, params.Limit, params.Offset)
	if err != nil {
		respondServiceError(c, err, "failed to list assessments")
		return
	}

	common.SuccessResponseWithMeta(c, assessments, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// ListScanRuns returns a referrer's scan history
// GET /api/v1/risk/referrers/:id/scans
func (h *Handler) ListScanRuns(c *gin.Context) {
	referrerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid referrer id")
		return
	}
	params := pagination.ParseParams(c)

	runs, total, err := h.service.ListScanRuns(c.Request.Context(), referrerID, params.Limit, params.Offset)
	if err != nil {
		respondServiceError(c, err, "failed to list scan runs")
		return
	}

	common.SuccessResponseWithMeta(c, runs, pagination.BuildMeta(params.Limit, params.Offset, total))
}

// GetScanRun returns one scan run
// GET /api/v1/risk/scans/:id
func (h *Handler) GetScanRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid scan id")
		return
	}

	run, err := h.service.GetScanRun(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "failed to get scan run")
		return
	}

	common.SuccessResponse(c, run)
}

// GetAssessment retrieves the current assessment for one referral
// GET /api/v1/risk/referrals/:id/assessment
func (h *Handler) GetAssessment(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid referral id")
		return
	}

	assessment, err := h.service.GetAssessment(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err, "failed to get assessment")
		return
	}

	common.SuccessResponse(c, assessment)
}

// RegisterRoutes mounts the risk endpoints on the given group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	risk := rg.Group("/risk")
	{
		risk.POST("/analyze", h.Analyze)
		risk.POST("/referrers/:id/scan", h.Scan)
		risk.POST("/referrers/:id/analyze", h.AnalyzeReferrer)
		risk.GET("/referrers/:id/assessments", h.ListAssessments)
		risk.GET("/referrers/:id/scans", h.ListScanRuns)
		risk.GET("/referrals/:id/assessment", h.GetAssessment)
		risk.GET("/scans/:id", h.GetScanRun)
	}
}

func parseBuilding(c *gin.Context) (*int, error) {
	raw := c.Query("building")
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, errors.New("building must be a positive integer")
	}
	return &n, nil
}

func respondServiceError(c *gin.Context, err error, fallback string) {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		common.AppErrorResponse(c, appErr)
		return
	}
	common.ErrorResponse(c, http.StatusInternalServerError, fallback)
}
