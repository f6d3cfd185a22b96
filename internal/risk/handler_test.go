package risk

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/towerclub/ambassador-server/internal/referrals"
	"github.com/towerclub/ambassador-server/pkg/common"
	"github.com/towerclub/ambassador-server/pkg/middleware"
)

type mockRiskService struct {
	mock.Mock
}

func (m *mockRiskService) Scan(ctx context.Context, referrerID uuid.UUID, building *int) (*ScanRun, error) {
	args := m.Called(ctx, referrerID, building)
	run, _ := args.Get(0).(*ScanRun)
	return run, args.Error(1)
}

func (m *mockRiskService) QuickAnalyze(ctx context.Context, referrerID uuid.UUID, building *int) (*QuickAnalysis, error) {
	args := m.Called(ctx, referrerID, building)
	result, _ := args.Get(0).(*QuickAnalysis)
	return result, args.Error(1)
}

func (m *mockRiskService) AnalyzeRecords(ctx context.Context, records []*referrals.ReferralRecord) (*QuickAnalysis, error) {
	args := m.Called(ctx, records)
	result, _ := args.Get(0).(*QuickAnalysis)
	return result, args.Error(1)
}

func (m *mockRiskService) GetScanRun(ctx context.Context, id uuid.UUID) (*ScanRun, error) {
	args := m.Called(ctx, id)
	run, _ := args.Get(0).(*ScanRun)
	return run, args.Error(1)
}

func (m *mockRiskService) GetAssessment(ctx context.Context, referralID uuid.UUID) (*Assessment, error) {
	args := m.Called(ctx, referralID)
	a, _ := args.Get(0).(*Assessment)
	return a, args.Error(1)
}

func (m *mockRiskService) ListScanRuns(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*ScanRun, int64, error) {
	args := m.Called(ctx, referrerID, limit, offset)
	runs, _ := args.Get(0).([]*ScanRun)
	return runs, int64(args.Int(1)), args.Error(2)
}

func (m *mockRiskService) ListAssessments(ctx context.Context, referrerID uuid.UUID, limit, offset int) ([]*Assessment, int64, error) {
	args := m.Called(ctx, referrerID, limit, offset)
	list, _ := args.Get(0).([]*Assessment)
	return list, int64(args.Int(1)), args.Error(2)
}

func setupTestContext(method, path string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != nil {
		bodyBytes, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	c.Request = req

	return c, w
}

func TestHandler_Scan_Success(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	referrerID := uuid.New()

	completed := time.Now().UTC()
	run := &ScanRun{
		ID:          uuid.New(),
		ReferrerID:  referrerID,
		Status:      ScanStatusCompleted,
		Counts:      LevelCounts{Low: 18, High: 2},
		CompletedAt: &completed,
	}
	service.On("Scan", mock.Anything, referrerID, mock.MatchedBy(func(b *int) bool {
		return b != nil && *b == 2
	})).Return(run, nil).Once()

	c, w := setupTestContext(http.MethodPost, "/api/v1/risk/referrers/"+referrerID.String()+"/scan?building=2", nil)
	c.Params = gin.Params{{Key: "id", Value: referrerID.String()}}
	c.Set(middleware.UserIDKey, uuid.New().String())
	handler.Scan(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	service.AssertExpectations(t)
}

func TestHandler_Scan_InvalidReferrerID(t *testing.T) {
	handler := NewHandler(new(mockRiskService))

	c, w := setupTestContext(http.MethodPost, "/api/v1/risk/referrers/not-a-uuid/scan", nil)
	c.Params = gin.Params{{Key: "id", Value: "not-a-uuid"}}
	handler.Scan(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Scan_InvalidBuilding(t *testing.T) {
	handler := NewHandler(new(mockRiskService))
	referrerID := uuid.New()

	for _, building := range []string{"0", "-3", "abc"} {
		c, w := setupTestContext(http.MethodPost, "/scan?building="+building, nil)
		c.Params = gin.Params{{Key: "id", Value: referrerID.String()}}
		handler.Scan(c)
		assert.Equal(t, http.StatusBadRequest, w.Code, "building %q", building)
	}
}

func TestHandler_Scan_ConflictFromService(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	referrerID := uuid.New()

	service.On("Scan", mock.Anything, referrerID, (*int)(nil)).
		Return(nil, common.NewConflictError("a scan for this referrer is already running")).Once()

	c, w := setupTestContext(http.MethodPost, "/scan", nil)
	c.Params = gin.Params{{Key: "id", Value: referrerID.String()}}
	handler.Scan(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandler_Analyze_Success(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)

	service.On("AnalyzeRecords", mock.Anything, mock.MatchedBy(func(records []*referrals.ReferralRecord) bool {
		return len(records) == 2 && *records[0].ReferredEmail == "user1@gmail.com"
	})).Return(&QuickAnalysis{Scanned: 2, Score: 15, Level: LevelLow, Action: ActionNone, Signals: []string{RuleRapidSignup}}, nil).Once()

	body := AnalyzeRequest{
		Referrals: []AnalyzeReferralEntry{
			{Email: strPtr("user1@gmail.com"), Phone: strPtr("0554871239")},
			{Email: strPtr("user2@gmail.com"), Phone: strPtr("0554871240")},
		},
	}
	c, w := setupTestContext(http.MethodPost, "/api/v1/risk/analyze", body)
	handler.Analyze(c)

	assert.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestHandler_Analyze_EmptyBatchRejected(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)

	c, w := setupTestContext(http.MethodPost, "/api/v1/risk/analyze", AnalyzeRequest{})
	handler.Analyze(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "AnalyzeRecords", mock.Anything, mock.Anything)
}

func TestHandler_Analyze_InvalidEmailRejected(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)

	body := AnalyzeRequest{
		Referrals: []AnalyzeReferralEntry{{Email: strPtr("not an email")}},
	}
	c, w := setupTestContext(http.MethodPost, "/api/v1/risk/analyze", body)
	handler.Analyze(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	service.AssertNotCalled(t, "AnalyzeRecords", mock.Anything, mock.Anything)
}

func TestHandler_ListAssessments_Paginates(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	referrerID := uuid.New()

	list := []*Assessment{
		{ReferralID: uuid.New(), ReferrerID: referrerID, Score: 85, Level: LevelCritical, Action: ActionFlagImmediately},
		{ReferralID: uuid.New(), ReferrerID: referrerID, Score: 10, Level: LevelLow, Action: ActionNone},
	}
	service.On("ListAssessments", mock.Anything, referrerID, 10, 0).Return(list, 42, nil).Once()

	c, w := setupTestContext(http.MethodGet, "/assessments?limit=10&offset=0", nil)
	c.Params = gin.Params{{Key: "id", Value: referrerID.String()}}
	handler.ListAssessments(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Meta)
	service.AssertExpectations(t)
}

func TestHandler_GetAssessment_Success(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	referralID := uuid.New()

	assessment := &Assessment{
		ReferralID: referralID,
		ReferrerID: uuid.New(),
		Score:      72,
		Level:      LevelHigh,
		Action:     ActionReviewRequired,
		AssessedAt: time.Now().UTC(),
		Assessor:   "risk-engine",
	}
	service.On("GetAssessment", mock.Anything, referralID).Return(assessment, nil).Once()

	c, w := setupTestContext(http.MethodGet, "/referrals/"+referralID.String()+"/assessment", nil)
	c.Params = gin.Params{{Key: "id", Value: referralID.String()}}
	handler.GetAssessment(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp common.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	service.AssertExpectations(t)
}

func TestHandler_GetAssessment_NotFound(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	referralID := uuid.New()

	service.On("GetAssessment", mock.Anything, referralID).
		Return(nil, common.NewNotFoundError("assessment not found", nil)).Once()

	c, w := setupTestContext(http.MethodGet, "/referrals/"+referralID.String()+"/assessment", nil)
	c.Params = gin.Params{{Key: "id", Value: referralID.String()}}
	handler.GetAssessment(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_GetScanRun_NotFound(t *testing.T) {
	service := new(mockRiskService)
	handler := NewHandler(service)
	id := uuid.New()

	service.On("GetScanRun", mock.Anything, id).
		Return(nil, common.NewNotFoundError("scan run not found", ErrScanRunNotFound)).Once()

	c, w := setupTestContext(http.MethodGet, "/scans/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	handler.GetScanRun(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
