package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rcarraroia/comademig/internal/config"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/ratelimit"
	"github.com/rcarraroia/comademig/internal/reconciler"
	registrationdomain "github.com/rcarraroia/comademig/internal/registration/domain"
	"go.uber.org/zap"
)

type fakeOrchestrator struct {
	result   registrationdomain.Result
	requests []registrationdomain.Request
}

func (f *fakeOrchestrator) Register(ctx context.Context, req registrationdomain.Request) registrationdomain.Result {
	_ = ctx
	f.requests = append(f.requests, req)
	return f.result
}

type fakeReconciler struct {
	report reconciler.Report
	err    error
	calls  int
}

func (f *fakeReconciler) RunOnce(ctx context.Context) (reconciler.Report, error) {
	_ = ctx
	f.calls++
	return f.report, f.err
}

type fakeFallback struct {
	resp fallbackdomain.ListResponse
	err  error
	last fallbackdomain.ListRequest
}

func (f *fakeFallback) Store(ctx context.Context, req fallbackdomain.StoreRequest) (bool, error) {
	_ = ctx
	_ = req
	return true, nil
}

func (f *fakeFallback) List(ctx context.Context, req fallbackdomain.ListRequest) (fallbackdomain.ListResponse, error) {
	_ = ctx
	f.last = req
	return f.resp, f.err
}

type fakeParser struct {
	verifyErr error
	parseErr  error
	event     gatewaydomain.PaymentEvent
}

func (f *fakeParser) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	_ = ctx
	_ = payload
	_ = headers
	return f.verifyErr
}

func (f *fakeParser) Parse(ctx context.Context, payload []byte) (*gatewaydomain.PaymentEvent, error) {
	_ = ctx
	_ = payload
	if f.parseErr != nil {
		return nil, f.parseErr
	}
	event := f.event
	return &event, nil
}

type fakeIngester struct {
	events []gatewaydomain.PaymentEvent
	err    error
}

func (f *fakeIngester) Ingest(ctx context.Context, event gatewaydomain.PaymentEvent) (bool, error) {
	_ = ctx
	f.events = append(f.events, event)
	return f.err == nil, f.err
}

type fakeLimiter struct {
	result *ratelimit.RateLimitResult
	err    error
	keys   []string
}

func (f *fakeLimiter) Enabled() bool { return true }

func (f *fakeLimiter) Allow(ctx context.Context, clientKey string) (*ratelimit.RateLimitResult, error) {
	_ = ctx
	f.keys = append(f.keys, clientKey)
	return f.result, f.err
}

type testDeps struct {
	orchestrator *fakeOrchestrator
	reconciler   *fakeReconciler
	fallback     *fakeFallback
	parser       *fakeParser
	ingester     *fakeIngester
}

func newTestServer(t *testing.T, limiter registrationLimiter) (*Server, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	deps := &testDeps{
		orchestrator: &fakeOrchestrator{},
		reconciler:   &fakeReconciler{},
		fallback:     &fakeFallback{},
		parser:       &fakeParser{},
		ingester:     &fakeIngester{},
	}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := &Server{
		engine: engine,
		cfg: config.Config{
			AdminAPIKey: "admin-secret",
			CronSecret:  "cron-secret",
			Gateway:     config.GatewayConfig{Provider: "asaas"},
		},
		log:           zap.NewNop(),
		orchestrator:  deps.orchestrator,
		reconciler:    deps.reconciler,
		fallbackSvc:   deps.fallback,
		webhookParser: deps.parser,
		ingester:      deps.ingester,
		limiter:       limiter,
	}
	srv.registerRoutes()
	return srv, deps
}

func doRequest(srv *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	srv.Engine().ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var body errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, resp.Body.String())
	}
	return body.Error
}

func TestCreateRegistrationUnwrapsEnvelope(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.orchestrator.result = registrationdomain.Result{
		Success:   true,
		Outcome:   registrationdomain.OutcomeCompleted,
		UserID:    "user-1",
		PaymentID: "pay_1",
	}

	body := `{"registration_data":{"nome":"Maria Souza","email":"maria@example.com","plan_id":"plan-membro","payment_method":"PIX"}}`
	resp := doRequest(srv, http.MethodPost, "/api/registrations", body, map[string]string{
		"Idempotency-Key": "01J9ZQ7X0000000000000000AB",
		"User-Agent":      "test-agent/1.0",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(deps.orchestrator.requests) != 1 {
		t.Fatalf("expected one register call, got %d", len(deps.orchestrator.requests))
	}
	got := deps.orchestrator.requests[0]
	if got.Data.Name != "Maria Souza" || got.Data.PlanID != "plan-membro" || got.Data.PaymentMethod != "PIX" {
		t.Fatalf("unexpected registration data: %+v", got.Data)
	}
	if got.AttemptID != "01J9ZQ7X0000000000000000AB" {
		t.Fatalf("expected attempt id from header, got %q", got.AttemptID)
	}
	if got.Client.IP != "192.0.2.1" || got.Client.UserAgent != "test-agent/1.0" {
		t.Fatalf("unexpected client info: %+v", got.Client)
	}

	var result map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if result["success"] != true || result["user_id"] != "user-1" {
		t.Fatalf("unexpected body: %v", result)
	}
	if _, ok := result["Outcome"]; ok {
		t.Fatal("outcome must not be serialized")
	}
}

func TestCreateRegistrationAcceptsBareObject(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.orchestrator.result = registrationdomain.Result{Success: true, Outcome: registrationdomain.OutcomeCompleted}

	resp := doRequest(srv, http.MethodPost, "/api/registrations", `{"nome":"João","cpf":"529.982.247-25"}`, nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	got := deps.orchestrator.requests[0].Data
	if got.Name != "João" || got.CPF != "529.982.247-25" {
		t.Fatalf("unexpected registration data: %+v", got)
	}
	if deps.orchestrator.requests[0].AttemptID != "" {
		t.Fatalf("expected empty attempt id, got %q", deps.orchestrator.requests[0].AttemptID)
	}
}

func TestCreateRegistrationStatusPerOutcome(t *testing.T) {
	cases := []struct {
		outcome registrationdomain.Outcome
		status  int
	}{
		{registrationdomain.OutcomeCompleted, http.StatusOK},
		{registrationdomain.OutcomeValidationFailed, http.StatusBadRequest},
		{registrationdomain.OutcomePaymentRefused, http.StatusPaymentRequired},
		{registrationdomain.OutcomeConfirmationTimeout, http.StatusAccepted},
		{registrationdomain.OutcomeMaterializationFailed, http.StatusInternalServerError},
		{registrationdomain.OutcomeAttemptInProgress, http.StatusConflict},
		{registrationdomain.OutcomeGatewayFailed, http.StatusBadGateway},
		{registrationdomain.OutcomeFailed, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(string(tc.outcome), func(t *testing.T) {
			srv, deps := newTestServer(t, nil)
			deps.orchestrator.result = registrationdomain.Result{Outcome: tc.outcome}

			resp := doRequest(srv, http.MethodPost, "/api/registrations", `{"nome":"x"}`, nil)
			if resp.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.Code)
			}
		})
	}
}

func TestCreateRegistrationRejectsMalformedBody(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	for _, body := range []string{"", "{not json", `[1,2]`, `{"registration_data":"x"}`} {
		resp := doRequest(srv, http.MethodPost, "/api/registrations", body, nil)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected status 400, got %d", body, resp.Code)
		}
		if payload := decodeError(t, resp); payload.Type != "validation_error" {
			t.Fatalf("body %q: unexpected error type %q", body, payload.Type)
		}
	}
	if len(deps.orchestrator.requests) != 0 {
		t.Fatalf("expected no register calls, got %d", len(deps.orchestrator.requests))
	}
}

func TestCreateRegistrationRejectsOversizedBody(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	body := `{"nome":"` + strings.Repeat("a", maxRegistrationBody) + `"}`
	resp := doRequest(srv, http.MethodPost, "/api/registrations", body, nil)

	if resp.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d", resp.Code)
	}
	if len(deps.orchestrator.requests) != 0 {
		t.Fatal("expected orchestrator not to be called")
	}
}

func TestCreateRegistrationRejectsLongIdempotencyKey(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := doRequest(srv, http.MethodPost, "/api/registrations", `{"nome":"x"}`, map[string]string{
		"Idempotency-Key": strings.Repeat("k", maxAttemptIDLength+1),
	})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	if len(deps.orchestrator.requests) != 0 {
		t.Fatal("expected orchestrator not to be called")
	}
}

func TestRegistrationRateLimitDenies(t *testing.T) {
	limiter := &fakeLimiter{result: &ratelimit.RateLimitResult{Allowed: false, RetryAfter: 11200 * time.Millisecond}}
	srv, deps := newTestServer(t, limiter)

	resp := doRequest(srv, http.MethodPost, "/api/registrations", `{"nome":"x"}`, nil)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", resp.Code)
	}
	if got := resp.Header().Get("Retry-After"); got != "12" {
		t.Fatalf("expected Retry-After 12, got %q", got)
	}
	if len(limiter.keys) != 1 || limiter.keys[0] != "192.0.2.1" {
		t.Fatalf("expected limiter keyed by client ip, got %v", limiter.keys)
	}
	if len(deps.orchestrator.requests) != 0 {
		t.Fatal("expected orchestrator not to be called")
	}
}

func TestRegistrationRateLimitFailsOpen(t *testing.T) {
	limiter := &fakeLimiter{err: errors.New("redis down")}
	srv, deps := newTestServer(t, limiter)
	deps.orchestrator.result = registrationdomain.Result{Success: true, Outcome: registrationdomain.OutcomeCompleted}

	resp := doRequest(srv, http.MethodPost, "/api/registrations", `{"nome":"x"}`, nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(deps.orchestrator.requests) != 1 {
		t.Fatal("expected orchestrator to be called")
	}
}

var cronAuth = map[string]string{"Authorization": "Bearer cron-secret"}

func TestTriggerReconcileRequiresSchedulerSecret(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	for _, header := range []string{"", "Bearer wrong", "Basic cron-secret", "cron-secret"} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		resp := doRequest(srv, http.MethodPost, "/internal/reconcile", "", headers)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected status 401, got %d", header, resp.Code)
		}
	}
	if deps.reconciler.calls != 0 {
		t.Fatalf("expected reconciler not to run, got %d calls", deps.reconciler.calls)
	}

	resp := doRequest(srv, http.MethodPost, "/internal/reconcile", "", map[string]string{"Authorization": "Bearer admin-secret"})
	if resp.Code != http.StatusOK {
		t.Fatalf("admin key: expected status 200, got %d", resp.Code)
	}
}

func TestTriggerReconcileLockedWithoutSecrets(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	srv.cfg.CronSecret = ""
	srv.cfg.AdminAPIKey = ""

	resp := doRequest(srv, http.MethodPost, "/internal/reconcile", "", map[string]string{"Authorization": "Bearer "})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
	if deps.reconciler.calls != 0 {
		t.Fatal("expected reconciler not to run")
	}
}

func TestTriggerReconcileRejectsOtherMethods(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := doRequest(srv, http.MethodGet, "/internal/reconcile", "", nil)

	if resp.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", resp.Code)
	}
	if payload := decodeError(t, resp); payload.Type != "method_not_allowed" {
		t.Fatalf("unexpected error type %q", payload.Type)
	}
	if resp.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("expected Allow header, got %q", resp.Header().Get("Allow"))
	}
	if deps.reconciler.calls != 0 {
		t.Fatal("expected reconciler not to run")
	}
}

func TestTriggerReconcileReturnsReport(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.reconciler.report = reconciler.Report{
		Success:   true,
		Processed: 2,
		Completed: 1,
		Errors:    []string{"pay_2: payment not confirmed (PENDING)"},
		Duration:  5000,
		Message:   "processed 2 pending registrations",
	}

	resp := doRequest(srv, http.MethodPost, "/internal/reconcile", "", cronAuth)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var report reconciler.Report
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if !report.Success || report.Processed != 2 || report.Completed != 1 || len(report.Errors) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestTriggerReconcileFailure(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.reconciler.report = reconciler.Report{Errors: []string{}, Message: "claim failed"}
	deps.reconciler.err = errors.New("pending_registrations: claim failed")

	resp := doRequest(srv, http.MethodPost, "/internal/reconcile", "", cronAuth)

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", resp.Code)
	}
	var report reconciler.Report
	if err := json.Unmarshal(resp.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Success || report.Message != "claim failed" {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestPaymentWebhookUnknownProvider(t *testing.T) {
	srv, deps := newTestServer(t, nil)

	resp := doRequest(srv, http.MethodPost, "/api/payments/webhooks/stripe", `{}`, nil)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
	if len(deps.ingester.events) != 0 {
		t.Fatal("expected no ingest")
	}
}

func TestPaymentWebhookInvalidSignature(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.parser.verifyErr = gatewaydomain.ErrInvalidSignature

	resp := doRequest(srv, http.MethodPost, "/api/payments/webhooks/asaas", `{}`, nil)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestPaymentWebhookIgnoredEvent(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.parser.parseErr = gatewaydomain.ErrEventIgnored

	resp := doRequest(srv, http.MethodPost, "/api/payments/webhooks/asaas", `{"event":"PAYMENT_CREATED"}`, nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(deps.ingester.events) != 0 {
		t.Fatal("expected ignored event not to be ingested")
	}
}

func TestPaymentWebhookIngestsEvent(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.parser.event = gatewaydomain.PaymentEvent{
		Provider:  "asaas",
		EventType: "PAYMENT_CONFIRMED",
		PaymentID: "pay_123",
		Status:    gatewaydomain.StatusConfirmed,
	}

	resp := doRequest(srv, http.MethodPost, "/api/payments/webhooks/ASAAS", `{"event":"PAYMENT_CONFIRMED"}`, nil)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if len(deps.ingester.events) != 1 || deps.ingester.events[0].PaymentID != "pay_123" {
		t.Fatalf("unexpected ingested events: %+v", deps.ingester.events)
	}
}

func TestPaymentWebhookMalformedPayload(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.webhookParser = &fakeParser{parseErr: gatewaydomain.ErrInvalidPayload}

	resp := doRequest(srv, http.MethodPost, "/api/payments/webhooks/asaas", `{`, nil)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestPendingRegistrationsRequiresAdminKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, header := range []string{"", "Bearer wrong", "Basic admin-secret", "admin-secret"} {
		headers := map[string]string{}
		if header != "" {
			headers["Authorization"] = header
		}
		resp := doRequest(srv, http.MethodGet, "/admin/pending-registrations", "", headers)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected status 401, got %d", header, resp.Code)
		}
	}
}

func TestPendingRegistrationsLockedWithoutConfiguredKey(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	srv.cfg.AdminAPIKey = ""

	resp := doRequest(srv, http.MethodGet, "/admin/pending-registrations", "", map[string]string{
		"Authorization": "Bearer ",
	})

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestPendingRegistrationsLists(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.fallback.resp = fallbackdomain.ListResponse{
		Items: []*fallbackdomain.PendingRegistration{
			{ID: 42, PaymentID: "pay_1", Status: fallbackdomain.StatusFailed, RetryCount: 3},
		},
	}

	resp := doRequest(srv, http.MethodGet, "/admin/pending-registrations?status=FAILED&page_size=10&page_token=abc", "", map[string]string{
		"Authorization": "Bearer admin-secret",
	})

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d (%s)", resp.Code, resp.Body.String())
	}
	if deps.fallback.last.Status != fallbackdomain.StatusFailed {
		t.Fatalf("expected status filter failed, got %q", deps.fallback.last.Status)
	}
	if deps.fallback.last.PageSize != 10 || deps.fallback.last.PageToken != "abc" {
		t.Fatalf("unexpected pagination: %+v", deps.fallback.last.Pagination)
	}

	var body struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Items) != 1 || body.Items[0]["payment_id"] != "pay_1" {
		t.Fatalf("unexpected items: %v", body.Items)
	}
	if _, ok := body.Items[0]["registration_data"]; ok {
		t.Fatal("registration data must not be exposed")
	}
}

func TestPendingRegistrationsInvalidStatus(t *testing.T) {
	srv, deps := newTestServer(t, nil)
	deps.fallback.err = fallbackdomain.ErrInvalidStatus

	resp := doRequest(srv, http.MethodGet, "/admin/pending-registrations?status=bogus", "", map[string]string{
		"Authorization": "Bearer admin-secret",
	})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
	payload := decodeError(t, resp)
	if len(payload.Errors) != 1 || payload.Errors[0].Code != "invalid_status" || payload.Errors[0].Field != "status" {
		t.Fatalf("unexpected error payload: %+v", payload)
	}
}
