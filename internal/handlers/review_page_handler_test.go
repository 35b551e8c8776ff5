package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bestcars/dealer-review/internal/guard"
	"github.com/bestcars/dealer-review/internal/middleware"
	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/internal/reviewform"
	"github.com/bestcars/dealer-review/internal/services"
	"github.com/bestcars/dealer-review/internal/web"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	apperrors "github.com/bestcars/dealer-review/pkg/errors"
	"github.com/bestcars/dealer-review/pkg/httpclient"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReviewPageService is a mock implementation of services.ReviewPageServiceInterface
type MockReviewPageService struct {
	mock.Mock
}

func (m *MockReviewPageService) LoadPage(ctx context.Context, req *services.PageRequest) (*services.ReviewPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.ReviewPage), args.Error(1)
}

func (m *MockReviewPageService) Submit(ctx context.Context, req *services.SubmitRequest) (*services.SubmitOutcome, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitOutcome), args.Error(1)
}

const formToken = "6f1c2a8e-4b7d-4c11-9f0e-2a3b4c5d6e7f"

func setupReviewRouter(t *testing.T, svc services.ReviewPageServiceInterface) *gin.Engine {
	t.Helper()
	return newReviewRouter(t, svc, "http://example.com", "https://example.com")
}

func newReviewRouter(t *testing.T, svc services.ReviewPageServiceInterface, origins ...string) *gin.Engine {
	t.Helper()
	tmpl, err := web.Templates()
	require.NoError(t, err)

	handler := NewReviewPageHandler(svc, "", origins)
	router := gin.New()
	router.SetHTMLTemplate(tmpl)
	router.Use(middleware.IdentityMiddleware(nil, ""))
	router.GET("/postreview/:id", handler.ShowPage)
	router.POST("/postreview/:id", handler.SubmitPage)
	router.GET("/api/v1/postreview/:id", handler.GetState)
	router.POST("/api/v1/postreview/:id", handler.PostReview)
	return router
}

func loadedPage() *services.ReviewPage {
	return &services.ReviewPage{
		View: reviewform.View{
			DealerID:  15,
			Heading:   "Acme Motors",
			Dealer:    models.Dealer{ID: 15, FullName: "Acme Motors"},
			CarModels: []models.CarModel{{CarMake: "Audi", CarModel: "A4"}},
		},
		FormToken: formToken,
	}
}

func formBody() url.Values {
	return url.Values{
		"review":        {"Great service"},
		"purchase_date": {"2023-05-01"},
		"cars":          {"Audi A4"},
		"car_year":      {"2022"},
		"form_token":    {formToken},
	}
}

func postForm(router *gin.Engine, path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestReviewPageHandler_ShowPage(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("LoadPage", mock.Anything, &services.PageRequest{DealerID: 15, PageURL: "http://example.com/postreview/15"}).
		Return(loadedPage(), nil)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/postreview/15", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<h1>Acme Motors</h1>")
	assert.Contains(t, w.Body.String(), formToken)
	svc.AssertExpectations(t)
}

func TestReviewPageHandler_ShowPage_InvalidID(t *testing.T) {
	svc := new(MockReviewPageService)
	router := setupReviewRouter(t, svc)

	for _, id := range []string{"abc", "0", "-3"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/postreview/"+id, http.NoBody))
		assert.Equal(t, http.StatusNotFound, w.Code, id)
	}
	svc.AssertNotCalled(t, "LoadPage", mock.Anything, mock.Anything)
}

func TestReviewPageHandler_SubmitPage_RedirectsToDealer(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(req *services.SubmitRequest) bool {
		return req.DealerID == 15 &&
			req.PageURL == "https://example.com/postreview/15" &&
			req.Draft.MakeModel == "Audi A4" &&
			req.Draft.Year == "2022" &&
			req.FormToken == formToken &&
			req.Identity.Username == "jdoe"
	})).Return(&services.SubmitOutcome{Redirect: &reviewform.Redirect{Path: "/dealer/15"}}, nil)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/postreview/15", strings.NewReader(formBody().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-Proto", "https")
	req.AddCookie(&http.Cookie{Name: "username", Value: "jdoe"})
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "https://example.com/dealer/15", w.Header().Get("Location"))
	svc.AssertExpectations(t)
}

func TestReviewPageHandler_SubmitPage_RerendersOnFailure(t *testing.T) {
	page := loadedPage()
	page.View.Draft = models.ReviewDraft{ReviewText: "Great service", PurchaseDate: "2023-05-01", MakeModel: "Audi A4", Year: "2022"}
	page.View.Error = "duplicate"

	svc := new(MockReviewPageService)
	svc.On("Submit", mock.Anything, mock.Anything).
		Return(&services.SubmitOutcome{Page: page}, &reviewform.FormError{Kind: reviewform.KindSubmission, Message: "duplicate"})
	router := setupReviewRouter(t, svc)

	w := postForm(router, "/postreview/15", formBody())

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `role="alert">duplicate</div>`)
	assert.Contains(t, body, "Great service</textarea>")
	assert.Contains(t, body, `<option value="Audi A4" selected>`)
	assert.Contains(t, body, `value="2022"`)
}

func TestReviewPageHandler_SubmitPage_BindingFailureKeepsDraft(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("LoadPage", mock.Anything, mock.Anything).Return(loadedPage(), nil)
	router := setupReviewRouter(t, svc)

	values := formBody()
	values.Set("form_token", "not-a-uuid")

	w := postForm(router, "/postreview/15", values)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Form token is invalid, please reload the page")
	assert.Contains(t, w.Body.String(), "Great service</textarea>")
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestReviewPageHandler_GetState(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("LoadPage", mock.Anything, &services.PageRequest{DealerID: 15, PageURL: "http://example.com/postreview/15"}).
		Return(loadedPage(), nil)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/postreview/15", http.NoBody))

	require.Equal(t, http.StatusOK, w.Code)
	var state models.ReviewPageState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, 15, state.DealerID)
	assert.Equal(t, "Acme Motors", state.Heading)
	assert.Equal(t, "idle", state.Status)
	assert.Equal(t, formToken, state.FormToken)
	assert.Len(t, state.CarModels, 1)
}

func TestReviewPageHandler_PostReview(t *testing.T) {
	failedPage := func(message string) *services.SubmitOutcome {
		page := loadedPage()
		page.View.Error = message
		return &services.SubmitOutcome{Page: page}
	}

	tests := []struct {
		name         string
		outcome      *services.SubmitOutcome
		err          error
		expectedCode int
		expectedBody string
	}{
		{
			name:         "posted",
			outcome:      &services.SubmitOutcome{Redirect: &reviewform.Redirect{Path: "/dealer/15"}},
			expectedCode: http.StatusOK,
			expectedBody: `{"redirect":"/dealer/15","status":"ok"}`,
		},
		{
			name:         "validation",
			outcome:      failedPage(reviewform.MsgInvalidYear),
			err:          &reviewform.FormError{Kind: reviewform.KindValidation, Field: reviewform.FieldYear, Message: reviewform.MsgInvalidYear},
			expectedCode: http.StatusBadRequest,
			expectedBody: fmt.Sprintf(`{"error":%q}`, reviewform.MsgInvalidYear),
		},
		{
			name:         "rejected",
			outcome:      failedPage("duplicate"),
			err:          &reviewform.FormError{Kind: reviewform.KindSubmission, Message: "duplicate"},
			expectedCode: http.StatusBadGateway,
			expectedBody: `{"error":"duplicate"}`,
		},
		{
			name:         "network",
			outcome:      failedPage(reviewform.MsgNetworkFailed),
			err:          &reviewform.FormError{Kind: reviewform.KindNetwork, Message: reviewform.MsgNetworkFailed, Err: dealerapi.ErrTransport},
			expectedCode: http.StatusBadGateway,
			expectedBody: fmt.Sprintf(`{"error":%q}`, reviewform.MsgNetworkFailed),
		},
		{
			name:         "upstream unreachable",
			outcome:      failedPage(reviewform.MsgNetworkFailed),
			err:          &reviewform.FormError{Kind: reviewform.KindNetwork, Message: reviewform.MsgNetworkFailed, Err: apperrors.UnavailableError("djangoapp", dealerapi.ErrTransport)},
			expectedCode: http.StatusServiceUnavailable,
			expectedBody: fmt.Sprintf(`{"error":%q}`, reviewform.MsgNetworkFailed),
		},
		{
			name:         "in flight",
			outcome:      failedPage(""),
			err:          reviewform.ErrSubmitInProgress,
			expectedCode: http.StatusConflict,
			expectedBody: fmt.Sprintf(`{"error":%q}`, services.MsgAlreadyPosting),
		},
		{
			name:         "unresolvable page",
			err:          apperrors.InvalidInputError("page_url", "no postreview segment"),
			expectedCode: http.StatusBadRequest,
			expectedBody: fmt.Sprintf(`{"error":%q}`, msgPageUnavailable),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockReviewPageService)
			svc.On("Submit", mock.Anything, mock.MatchedBy(func(req *services.SubmitRequest) bool {
				return req.DealerID == 15 && req.PageURL == "http://example.com/postreview/15" && req.Draft.Year == "2022"
			})).Return(tt.outcome, tt.err)
			router := setupReviewRouter(t, svc)

			body := `{"review":"Great service","purchase_date":"2023-05-01","car":"Audi A4","car_year":"2022"}`
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/v1/postreview/15", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.JSONEq(t, tt.expectedBody, w.Body.String())
		})
	}
}

func TestReviewPageHandler_PostReview_InvalidFormToken(t *testing.T) {
	svc := new(MockReviewPageService)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/postreview/15", strings.NewReader(`{"review":"ok","form_token":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Form token is invalid, please reload the page")
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestReviewPageHandler_ShowPage_UnknownHostUsesPublicOrigin(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("LoadPage", mock.Anything, &services.PageRequest{DealerID: 15, PageURL: "http://example.com/postreview/15"}).
		Return(loadedPage(), nil)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/postreview/15", http.NoBody)
	req.Host = "attacker.test"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestReviewPageHandler_SubmitPage_UnknownHostRedirectsToPublicOrigin(t *testing.T) {
	svc := new(MockReviewPageService)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(req *services.SubmitRequest) bool {
		return req.PageURL == "http://example.com/postreview/15"
	})).Return(&services.SubmitOutcome{Redirect: &reviewform.Redirect{Path: "/dealer/15"}}, nil)
	router := setupReviewRouter(t, svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/postreview/15", strings.NewReader(formBody().Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = "attacker.test"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "http://example.com/dealer/15", w.Header().Get("Location"))
	svc.AssertExpectations(t)
}

// fakeUpstream serves the collaborator endpoints and counts requests
type fakeUpstream struct {
	*httptest.Server
	hits    atomic.Int32
	reviews atomic.Int32
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/djangoapp/dealer/15":
			_, _ = io.WriteString(w, `{"status":200,"dealer":[{"id":15,"full_name":"Acme Motors"}]}`)
		case "/djangoapp/get_cars":
			_, _ = io.WriteString(w, `{"CarModels":[{"CarMake":"Audi","CarModel":"A4"}]}`)
		case "/djangoapp/add_review":
			u.reviews.Add(1)
			_, _ = io.WriteString(w, `{"status":200}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *fakeUpstream) host() string {
	return strings.TrimPrefix(u.URL, "http://")
}

// rejectingCaptcha fails every token and counts calls
type rejectingCaptcha struct {
	calls atomic.Int32
}

func (c *rejectingCaptcha) Verify(context.Context, string) error {
	c.calls.Add(1)
	return errors.New("rejected")
}

func newServiceRouter(t *testing.T, captcha services.CaptchaVerifier, origins ...string) *gin.Engine {
	t.Helper()
	client := dealerapi.NewClient("", httpclient.NewStandardClient())
	svc := services.NewReviewPageService(
		services.NewUpstreamResolver(client, "", nil),
		guard.NewMemoryGuard(time.Minute),
		services.ReviewPageServiceOptions{Captcha: captcha},
	)
	return newReviewRouter(t, svc, origins...)
}

func TestReviewPage_UnknownHostMakesNoUpstreamCall(t *testing.T) {
	public := newFakeUpstream(t)
	attacker := newFakeUpstream(t)
	router := newServiceRouter(t, nil, public.URL)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/postreview/15", http.NoBody)
	req.Host = attacker.host()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1>Acme Motors</h1>")
	assert.Zero(t, attacker.hits.Load())
	assert.Equal(t, int32(2), public.hits.Load())
}

func TestReviewPage_PostReview_OutOfRangeYearGetsYearMessage(t *testing.T) {
	upstream := newFakeUpstream(t)
	router := newServiceRouter(t, nil, upstream.URL)

	for _, year := range []string{"20155", "-2015", "2014", "2024abc"} {
		t.Run(year, func(t *testing.T) {
			body := fmt.Sprintf(`{"review":"Great service","purchase_date":"2023-05-01","car":"Audi A4","car_year":%q}`, year)
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/api/v1/postreview/15", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Host = upstream.host()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, reviewform.MsgInvalidYear), w.Body.String())
		})
	}
	assert.Zero(t, upstream.reviews.Load())
}

func TestReviewPage_SubmitPage_FirstFailureWins(t *testing.T) {
	upstream := newFakeUpstream(t)
	router := newServiceRouter(t, nil, upstream.URL)

	values := formBody()
	values.Set("review", "   ")
	values.Set("car_year", "20155")

	w := postFormTo(router, upstream.host(), values)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, reviewform.MsgReviewRequired)
	assert.NotContains(t, body, "must not exceed")
	assert.Contains(t, body, `value="20155"`)
	assert.Zero(t, upstream.reviews.Load())
}

func TestReviewPage_SubmitPage_ValidationBeforeCaptcha(t *testing.T) {
	upstream := newFakeUpstream(t)
	captcha := &rejectingCaptcha{}
	router := newServiceRouter(t, captcha, upstream.URL)

	values := formBody()
	values.Set("review", "")

	w := postFormTo(router, upstream.host(), values)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), reviewform.MsgReviewRequired)
	assert.NotContains(t, w.Body.String(), services.MsgCaptchaFailed)
	assert.Zero(t, captcha.calls.Load())

	// a valid draft reaches the captcha
	w = postFormTo(router, upstream.host(), formBody())
	assert.Contains(t, w.Body.String(), services.MsgCaptchaFailed)
	assert.Equal(t, int32(1), captcha.calls.Load())
	assert.Zero(t, upstream.reviews.Load())
}

func postFormTo(router *gin.Engine, host string, values url.Values) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/postreview/15", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Host = host
	router.ServeHTTP(w, req)
	return w
}
