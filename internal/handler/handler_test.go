package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taxnexus/internal/middleware"
	"taxnexus/internal/nexus"
	"taxnexus/internal/service"
	"taxnexus/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret = "handler-test-secret"
	testUserID = "3f1c2a4e-9a0b-4c1d-8e2f-1a2b3c4d5e6f"
)

// fakeAnalysisService implements only what the tests call; the embedded
// interface panics on anything else.
type fakeAnalysisService struct {
	service.AnalysisService
	gotUserID string
	gotReq    interface{}
	err       error
}

func (f *fakeAnalysisService) CreateAnalysis(_ context.Context, req service.CreateAnalysisRequest, userID string) (service.AnalysisResponse, error) {
	f.gotUserID, f.gotReq = userID, req
	return service.AnalysisResponse{ID: "a1", ClientName: req.ClientName, AsOfDate: req.AsOfDate, Status: "draft"}, f.err
}

func (f *fakeAnalysisService) ListAnalyses(_ context.Context, page, limit int) ([]service.AnalysisResponse, int64, error) {
	f.gotReq = [2]int{page, limit}
	return []service.AnalysisResponse{{ID: "a1"}}, 41, f.err
}

func (f *fakeAnalysisService) GetAnalysis(_ context.Context, id string) (service.AnalysisResponse, error) {
	return service.AnalysisResponse{ID: id}, f.err
}

func (f *fakeAnalysisService) ImportTransactions(_ context.Context, id string, req service.ImportTransactionsRequest, userID string) (service.ImportTransactionsResponse, error) {
	f.gotUserID, f.gotReq = userID, req
	return service.ImportTransactionsResponse{Imported: len(req.Transactions), Total: int64(len(req.Transactions))}, f.err
}

func (f *fakeAnalysisService) ModelVDA(_ context.Context, id string, req service.VDARequest) (service.VDAResponse, error) {
	f.gotReq = req
	return service.VDAResponse{AnalysisID: id}, f.err
}

type fakeRuleService struct {
	service.RuleService
	deleted nexus.RuleKind
	err     error
}

func (f *fakeRuleService) CreateTaxRateRule(_ context.Context, req service.TaxRateRuleRequest, _ string) (service.TaxRateRuleResponse, error) {
	return service.TaxRateRuleResponse{StateRate: req.StateRate}, f.err
}

func (f *fakeRuleService) DeleteRule(_ context.Context, kind nexus.RuleKind, _ string, _ string) error {
	f.deleted = kind
	return f.err
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  testUserID,
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return "Bearer " + tok
}

func newRouter(t *testing.T, register ...func(*gin.RouterGroup)) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", testSecret)
	r := gin.New()
	for _, reg := range register {
		reg(r.Group(""))
	}
	return r
}

func do(t *testing.T, r http.Handler, method, path, auth string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w, resp
}

func TestAnalysisHandlerCreate(t *testing.T) {
	svc := &fakeAnalysisService{}
	r := newRouter(t, NewAnalysisHandler(svc).RegisterRoutes)

	w, resp := do(t, r, http.MethodPost, "/api/analyses", bearer(t, middleware.RoleAnalyst),
		map[string]string{"client_name": "Acme", "as_of_date": "2023-12-31"})
	if w.Code != http.StatusCreated || resp.Status != "success" {
		t.Fatalf("status = %d %s, want 201 success", w.Code, resp.Status)
	}
	if svc.gotUserID != testUserID {
		t.Errorf("user id = %q, want %q", svc.gotUserID, testUserID)
	}

	w, _ = do(t, r, http.MethodPost, "/api/analyses", bearer(t, middleware.RoleAnalyst), map[string]string{"as_of_date": "2023-12-31"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing client_name: status = %d, want 400", w.Code)
	}

	w, _ = do(t, r, http.MethodPost, "/api/analyses", bearer(t, middleware.RoleViewer),
		map[string]string{"client_name": "Acme", "as_of_date": "2023-12-31"})
	if w.Code != http.StatusForbidden {
		t.Errorf("viewer create: status = %d, want 403", w.Code)
	}

	w, _ = do(t, r, http.MethodGet, "/api/analyses", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous list: status = %d, want 401", w.Code)
	}
}

func TestAnalysisHandlerList(t *testing.T) {
	svc := &fakeAnalysisService{}
	r := newRouter(t, NewAnalysisHandler(svc).RegisterRoutes)

	w, resp := do(t, r, http.MethodGet, "/api/analyses?page=2&limit=500", bearer(t, middleware.RoleViewer), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := svc.gotReq.([2]int); got != [2]int{2, 100} {
		t.Errorf("page/limit = %v, want [2 100]", got)
	}
	page, _ := resp.Data.(map[string]interface{})
	if page["total"] != float64(41) || page["limit"] != float64(100) {
		t.Errorf("page = %v, want total 41 limit 100", page)
	}
}

func TestAnalysisHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("analysis %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad id", service.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: overlap", service.ErrConflict), http.StatusConflict},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &fakeAnalysisService{err: tt.err}
		r := newRouter(t, NewAnalysisHandler(svc).RegisterRoutes)

		w, resp := do(t, r, http.MethodGet, "/api/analyses/a1", bearer(t, middleware.RoleViewer), nil)
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
		if tt.want == http.StatusInternalServerError && resp.Error != "internal server error" {
			t.Errorf("500 body leaked %q", resp.Error)
		}
	}
}

func TestAnalysisHandlerImportValidation(t *testing.T) {
	svc := &fakeAnalysisService{}
	r := newRouter(t, NewAnalysisHandler(svc).RegisterRoutes)
	auth := bearer(t, middleware.RoleAnalyst)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"empty batch", map[string]interface{}{"transactions": []interface{}{}}, http.StatusBadRequest},
		{"bad channel", map[string]interface{}{"transactions": []map[string]string{
			{"jurisdiction": "TX", "date": "2022-01-01", "gross_amount": "10", "channel": "wholesale"},
		}}, http.StatusBadRequest},
		{"long code", map[string]interface{}{"transactions": []map[string]string{
			{"jurisdiction": "TEX", "date": "2022-01-01", "gross_amount": "10", "channel": "direct"},
		}}, http.StatusBadRequest},
		{"valid", map[string]interface{}{"transactions": []map[string]string{
			{"jurisdiction": "TX", "date": "2022-01-01", "gross_amount": "10", "channel": "direct"},
		}}, http.StatusCreated},
	}
	for _, tt := range tests {
		w, _ := do(t, r, http.MethodPost, "/api/analyses/a1/transactions", auth, tt.body)
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.want)
		}
	}
}

func TestAnalysisHandlerVDA(t *testing.T) {
	svc := &fakeAnalysisService{}
	r := newRouter(t, NewAnalysisHandler(svc).RegisterRoutes)

	w, _ := do(t, r, http.MethodPost, "/api/analyses/a1/vda", bearer(t, middleware.RoleViewer),
		map[string][]string{"selected_jurisdictions": {"CA", "TX"}})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if req := svc.gotReq.(service.VDARequest); len(req.SelectedJurisdictions) != 2 {
		t.Errorf("selected = %v, want CA and TX", req.SelectedJurisdictions)
	}

	w, _ = do(t, r, http.MethodPost, "/api/analyses/a1/vda", bearer(t, middleware.RoleViewer), map[string][]string{})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty selection: status = %d, want 400", w.Code)
	}
}

func TestRuleHandler(t *testing.T) {
	svc := &fakeRuleService{}
	r := newRouter(t, NewRuleHandler(svc).RegisterRoutes)
	admin := bearer(t, middleware.RoleAdmin)

	w, _ := do(t, r, http.MethodDelete, "/api/rules/interest-penalty/r1", admin, nil)
	if w.Code != http.StatusOK || svc.deleted != nexus.KindInterestPenalty {
		t.Errorf("delete: status = %d kind = %q, want 200 interest_penalty", w.Code, svc.deleted)
	}

	w, _ = do(t, r, http.MethodDelete, "/api/rules/sales/r1", admin, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown table: status = %d, want 404", w.Code)
	}

	body := map[string]string{"jurisdiction": "WA", "effective_from": "2022-01-01", "state_rate": "0.065"}
	w, _ = do(t, r, http.MethodPost, "/api/rules/tax-rates", bearer(t, middleware.RoleAnalyst), body)
	if w.Code != http.StatusForbidden {
		t.Errorf("analyst create: status = %d, want 403", w.Code)
	}

	svc.err = fmt.Errorf("%w: overlap", service.ErrConflict)
	w, _ = do(t, r, http.MethodPost, "/api/rules/tax-rates", admin, body)
	if w.Code != http.StatusConflict {
		t.Errorf("overlap: status = %d, want 409", w.Code)
	}
}

type fakeStatisticsService struct {
	gotRange [2]string
}

func (f *fakeStatisticsService) GetStatistics(_ context.Context, startDate, endDate string) (service.StatisticsResponse, error) {
	f.gotRange = [2]string{startDate, endDate}
	if startDate == "yesterday" {
		return service.StatisticsResponse{}, fmt.Errorf("%w: bad start", service.ErrInvalidInput)
	}
	return service.StatisticsResponse{TotalAnalyses: 3, TotalLiability: "10.00"}, nil
}

func TestStatisticsHandler(t *testing.T) {
	svc := &fakeStatisticsService{}
	r := newRouter(t, NewStatisticsHandler(svc).RegisterRoutes)
	viewer := bearer(t, middleware.RoleViewer)

	w, _ := do(t, r, http.MethodGet, "/api/statistics?start_date=2023-01-01&end_date=2023-12-31", viewer, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.gotRange != [2]string{"2023-01-01", "2023-12-31"} {
		t.Errorf("range = %v, want 2023", svc.gotRange)
	}

	w, _ = do(t, r, http.MethodGet, "/api/statistics?start_date=yesterday", viewer, nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad date: status = %d, want 400", w.Code)
	}
}
