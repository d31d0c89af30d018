package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/account/password"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/config"
	customerdomain "github.com/rcarraroia/comademig/internal/customer/domain"
	fallbackdomain "github.com/rcarraroia/comademig/internal/fallback/domain"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	obscontext "github.com/rcarraroia/comademig/internal/observability/context"
	"github.com/rcarraroia/comademig/internal/observability/logger"
	"github.com/rcarraroia/comademig/internal/observability/metrics"
	"github.com/rcarraroia/comademig/internal/observability/tracing"
	paymentdomain "github.com/rcarraroia/comademig/internal/payment/domain"
	plandomain "github.com/rcarraroia/comademig/internal/plan/domain"
	"github.com/rcarraroia/comademig/internal/registration/domain"
	"github.com/rcarraroia/comademig/internal/registration/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	SourceLive = "live"

	currencyBRL = "BRL"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Validator *validation.Validator
	Customers customerdomain.Resolver
	Plans     plandomain.Service
	Payments  paymentdomain.Initiator
	Poller    paymentdomain.Poller
	Accounts  accountdomain.Materializer
	Fallback  fallbackdomain.Service
	Clock     clock.Clock
	Settings  *config.RegistrationConfigHolder `optional:"true"`
	Metrics   *metrics.Metrics                 `optional:"true"`
}

type Orchestrator struct {
	log       *zap.Logger
	validator *validation.Validator
	customers customerdomain.Resolver
	plans     plandomain.Service
	payments  paymentdomain.Initiator
	poller    paymentdomain.Poller
	accounts  accountdomain.Materializer
	fallback  fallbackdomain.Service
	clock     clock.Clock
	settings  *config.RegistrationConfigHolder
	metrics   *metrics.Metrics
	tracer    trace.Tracer
}

func New(p Params) domain.Orchestrator {
	return &Orchestrator{
		log:       p.Log.Named("registration.flow"),
		validator: p.Validator,
		customers: p.Customers,
		plans:     p.Plans,
		payments:  p.Payments,
		poller:    p.Poller,
		accounts:  p.Accounts,
		fallback:  p.Fallback,
		clock:     p.Clock,
		settings:  p.Settings,
		metrics:   p.Metrics,
		tracer:    otel.Tracer("comademig/registration"),
	}
}

// flow is the per-request state of one registration attempt.
type flow struct {
	req     domain.Request
	exec    domain.FlowExecution
	result  domain.Result
	started time.Time
	log     *zap.Logger

	plan         *plandomain.Plan
	memberType   accountdomain.MemberType
	method       gatewaydomain.BillingType
	passwordHash string
}

func (o *Orchestrator) config() config.RegistrationConfig {
	if o.settings == nil {
		return config.DefaultRegistrationConfig()
	}
	return o.settings.Get()
}

func (o *Orchestrator) Register(ctx context.Context, req domain.Request) domain.Result {
	cfg := o.config()
	if strings.TrimSpace(req.AttemptID) == "" {
		req.AttemptID = ulid.Make().String()
	}

	ctx = obscontext.WithFlowID(ctx, req.AttemptID)
	ctx, span := o.tracer.Start(ctx, "registration.flow", trace.WithAttributes(
		attribute.String("registration.attempt_id", req.AttemptID),
		attribute.String("registration.payment_method", strings.ToUpper(req.Data.PaymentMethod)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, cfg.Flow.Timeout)
	defer cancel()

	f := &flow{
		req:     req,
		started: o.clock.Now(),
		log: logger.WithContext(ctx, o.log).With(
			zap.String("attempt_id", req.AttemptID),
			zap.String("cpf", logger.MaskTaxID(req.Data.CPF)),
		),
	}

	o.run(ctx, cfg, f)

	f.result.Steps = f.exec.Steps()
	duration := o.clock.Now().Sub(f.started)
	f.result.Duration = duration.Milliseconds()
	o.metrics.RecordRegistration(ctx, string(f.result.Outcome), string(f.exec.Current()), duration)

	span.SetAttributes(attribute.String("registration.outcome", string(f.result.Outcome)))
	if !f.result.Success && f.result.Outcome != domain.OutcomeConfirmationTimeout {
		span.SetStatus(codes.Error, string(f.result.Outcome))
	}
	f.log.Info("registration flow finished",
		zap.String("outcome", string(f.result.Outcome)),
		zap.String("step", string(f.exec.Current())),
		zap.String("payment_id", f.result.PaymentID),
		zap.Int64("duration_ms", f.result.Duration),
	)
	return f.result
}

func (o *Orchestrator) run(ctx context.Context, cfg config.RegistrationConfig, f *flow) {
	if !o.validate(ctx, f) {
		return
	}
	if !o.resolveCustomer(ctx, f) {
		return
	}
	record, ok := o.createPayment(ctx, f)
	if !ok {
		return
	}
	if !o.confirmPayment(ctx, cfg, f, record) {
		return
	}
	o.materialize(ctx, f)
}

func (o *Orchestrator) validate(ctx context.Context, f *flow) bool {
	f.exec.Start(domain.StepValidation, o.clock.Now())

	res := o.validator.Validate(f.req.Data)
	if !res.IsValid {
		f.exec.Fail(fmt.Sprintf("%d invalid fields", len(res.Errors)), o.clock.Now())
		f.result.Outcome = domain.OutcomeValidationFailed
		f.result.Error = "Dados de cadastro inválidos"
		f.result.ValidationErrors = res.Errors
		return false
	}
	f.memberType, _ = accountdomain.ParseMemberType(f.req.Data.MemberType)
	f.method = validation.ParsePaymentMethod(f.req.Data.PaymentMethod)

	plan, err := o.plans.Get(ctx, strings.TrimSpace(f.req.Data.PlanID))
	if err != nil {
		if errors.Is(err, plandomain.ErrNotFound) || errors.Is(err, plandomain.ErrInvalidID) {
			f.exec.Fail("plan not found", o.clock.Now())
			f.result.Outcome = domain.OutcomeValidationFailed
			f.result.Error = "Plano não encontrado ou inativo"
			f.result.ValidationErrors = []domain.ValidationError{{
				Field:   "plan_id",
				Code:    "PLAN_NOT_FOUND",
				Message: "Plano não encontrado ou inativo",
			}}
			return false
		}
		o.failStep(f, domain.OutcomeFailed, "Erro ao carregar o plano", err)
		return false
	}
	f.plan = plan

	// The clear text password never leaves this step.
	hash, err := password.Hash(f.req.Data.Password)
	if err != nil {
		o.failStep(f, domain.OutcomeFailed, "Erro ao processar a senha", err)
		return false
	}
	f.passwordHash = hash
	f.req.Data.Password = ""

	f.exec.Succeed(fmt.Sprintf("plan %s", plan.ID), o.clock.Now())
	return true
}

func (o *Orchestrator) resolveCustomer(ctx context.Context, f *flow) bool {
	f.exec.Start(domain.StepCustomerResolution, o.clock.Now())

	data := f.req.Data
	res, err := o.customers.Resolve(ctx, customerdomain.ResolveRequest{
		Name:    strings.TrimSpace(data.Name),
		Email:   strings.ToLower(strings.TrimSpace(data.Email)),
		TaxID:   data.CPF,
		Phone:   data.Phone,
		Address: gatewayAddress(data.Address),
	})
	if err != nil {
		o.failStep(f, domain.OutcomeGatewayFailed, "Não foi possível registrar o cliente no gateway de pagamento", err)
		return false
	}

	f.result.CustomerID = res.CustomerID
	detail := "customer created"
	if !res.Created {
		detail = "existing customer reused"
	}
	f.exec.Succeed(detail, o.clock.Now())
	return true
}

func (o *Orchestrator) createPayment(ctx context.Context, f *flow) (*paymentdomain.Record, bool) {
	f.exec.Start(domain.StepPaymentCreation, o.clock.Now())

	req := paymentdomain.InitiateRequest{
		AttemptID:   f.req.AttemptID,
		CustomerID:  f.result.CustomerID,
		Method:      f.method,
		AmountCents: f.plan.ValueCents,
		Currency:    currencyBRL,
		Description: fmt.Sprintf("Filiação COMADEMIG - %s", f.memberType),
	}
	if f.method == gatewaydomain.BillingCreditCard {
		req.Card = cardCharge(f.req)
	}
	// Card data is not needed past this call.
	f.req.Data.CardData = nil

	initiation, err := o.payments.Initiate(ctx, req)
	if initiation != nil {
		f.result.PaymentID = initiation.Record.PaymentID()
		if initiation.Record.InvoiceURL != nil {
			f.result.InvoiceURL = *initiation.Record.InvoiceURL
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, paymentdomain.ErrPaymentRefused):
		o.failStep(f, domain.OutcomePaymentRefused, "Pagamento recusado", err)
		return nil, false
	case errors.Is(err, paymentdomain.ErrAttemptInProgress):
		o.failStep(f, domain.OutcomeAttemptInProgress, "Pagamento já está sendo processado", err)
		return nil, false
	case gatewaydomain.IsClientError(err) || gatewaydomain.IsTransient(err):
		o.failStep(f, domain.OutcomeGatewayFailed, "Não foi possível criar o pagamento", err)
		return nil, false
	default:
		o.failStep(f, domain.OutcomeFailed, "Não foi possível criar o pagamento", err)
		return nil, false
	}

	detail := fmt.Sprintf("payment %s (%s)", f.result.PaymentID, initiation.Record.Status)
	if initiation.Reused {
		detail += " reused"
	}
	f.exec.Succeed(detail, o.clock.Now())
	return &initiation.Record, true
}

func (o *Orchestrator) confirmPayment(ctx context.Context, cfg config.RegistrationConfig, f *flow, record *paymentdomain.Record) bool {
	f.exec.Start(domain.StepPaymentConfirmation, o.clock.Now())

	if record.Status == gatewaydomain.StatusConfirmed {
		f.exec.Succeed("confirmed at creation", o.clock.Now())
		return true
	}

	res := o.poller.Poll(ctx, record.PaymentID(), paymentdomain.PollOptions{
		Interval:    cfg.Poll.Interval,
		MaxAttempts: cfg.Poll.MaxAttempts,
		Timeout:     cfg.Poll.Timeout,
		OnStatus: func(status gatewaydomain.PaymentStatus, attempt int) {
			f.log.Debug("payment status observed", zap.String("status", string(status)), zap.Int("attempt", attempt))
		},
	})

	switch {
	case res.Success:
		f.exec.Succeed(fmt.Sprintf("confirmed after %d attempts", res.Attempts), o.clock.Now())
		return true
	case res.Status.IsTerminalFailure():
		f.exec.Fail(res.Error, o.clock.Now())
		f.result.Outcome = domain.OutcomePaymentRefused
		f.result.Error = "Pagamento recusado ou cancelado"
		return false
	}

	// Still pending: the payment outlives this request, finish it later.
	reason := res.Error
	if reason == "" {
		reason = "payment confirmation timed out"
	}
	f.exec.Fail(fmt.Sprintf("%s after %d attempts", reason, res.Attempts), o.clock.Now())
	f.result.Outcome = domain.OutcomeConfirmationTimeout
	if o.storeFallback(ctx, f, fallbackdomain.SourceConfirmationTimeout, reason) {
		f.result.Error = "Pagamento em processamento. Sua filiação será concluída assim que o pagamento for confirmado."
	} else {
		f.result.Outcome = domain.OutcomeFailed
		f.result.Error = "Pagamento em processamento, mas não foi possível agendar a conclusão da filiação"
	}
	return false
}

func (o *Orchestrator) materialize(ctx context.Context, f *flow) {
	f.exec.Start(domain.StepAccountCreation, o.clock.Now())

	res, err := o.accounts.Materialize(ctx, accountdomain.MaterializeRequest{
		PaymentID:   f.result.PaymentID,
		CustomerID:  f.result.CustomerID,
		PlanID:      f.plan.ID,
		AffiliateID: strings.TrimSpace(f.req.Data.AffiliateID),
		Registrant:  f.registrant(),
		ConfirmedAt: o.clock.Now().UTC(),
		Source:      SourceLive,
		Client:      f.req.Client,
	})
	if err != nil {
		f.exec.Fail(err.Error(), o.clock.Now())
		f.result.Outcome = domain.OutcomeMaterializationFailed
		f.log.Error("account materialization failed", zap.String("payment_id", f.result.PaymentID), zap.Error(err))
		if o.storeFallback(ctx, f, fallbackdomain.SourceMaterializationError, err.Error()) {
			f.result.Error = "Pagamento confirmado. Houve uma falha ao criar sua conta, que será concluída automaticamente."
		} else {
			f.result.Error = "Pagamento confirmado, mas não foi possível criar sua conta"
		}
		return
	}

	f.result.UserID = res.UserID
	detail := "user " + res.UserID
	if res.AlreadyExisted {
		detail += " already existed"
	}
	f.exec.Succeed(detail, o.clock.Now())

	subscriptionID := fmt.Sprintf("%d", res.SubscriptionID)
	f.exec.Start(domain.StepSubscription, o.clock.Now())
	f.exec.Succeed("subscription "+subscriptionID, o.clock.Now())
	f.result.SubscriptionID = subscriptionID

	f.exec.Start(domain.StepCompleted, o.clock.Now())
	f.exec.Succeed("", o.clock.Now())
	f.result.Success = true
	f.result.Outcome = domain.OutcomeCompleted
}

// storeFallback queues a paid registration. It runs detached from the request
// so a flow deadline cannot drop it. A failed store leaves the payment
// without a follow-up and is flagged for manual handling.
func (o *Orchestrator) storeFallback(ctx context.Context, f *flow, source fallbackdomain.Source, reason string) bool {
	stored, err := o.fallback.Store(context.WithoutCancel(ctx), fallbackdomain.StoreRequest{
		PaymentID:     f.result.PaymentID,
		CustomerID:    f.result.CustomerID,
		PlanID:        f.plan.ID,
		AffiliateID:   f.req.Data.AffiliateID,
		PaymentMethod: string(f.method),
		AmountCents:   f.plan.ValueCents,
		Data: fallbackdomain.RegistrationData{
			Registrant: f.registrant(),
			Client:     f.req.Client,
		},
		Source:    source,
		LastError: reason,
	})
	if err != nil {
		f.log.Error("fallback store failed",
			zap.String("payment_id", f.result.PaymentID),
			zap.String("source", string(source)),
			zap.Error(err),
		)
		f.result.RequiresManualIntervention = true
		return false
	}
	if !stored {
		f.log.Info("fallback already queued", zap.String("payment_id", f.result.PaymentID))
	}
	f.result.FallbackStored = true
	return true
}

func (o *Orchestrator) failStep(f *flow, outcome domain.Outcome, message string, err error) {
	f.exec.Fail(tracing.SafeError(err).Error(), o.clock.Now())
	f.result.Outcome = outcome
	f.result.Error = message
	f.log.Warn("registration step failed",
		zap.String("step", string(f.exec.Current())),
		zap.String("outcome", string(outcome)),
		zap.Error(err),
	)
}

func (f *flow) registrant() accountdomain.Registrant {
	data := f.req.Data
	return accountdomain.Registrant{
		Name:         strings.TrimSpace(data.Name),
		Email:        strings.ToLower(strings.TrimSpace(data.Email)),
		CPF:          validation.Digits(data.CPF),
		Phone:        validation.Digits(data.Phone),
		Address:      data.Address,
		MemberType:   f.memberType,
		PasswordHash: f.passwordHash,
	}
}

func gatewayAddress(a accountdomain.Address) gatewaydomain.Address {
	return gatewaydomain.Address{
		PostalCode: validation.Digits(a.CEP),
		Street:     strings.TrimSpace(a.Logradouro),
		Number:     strings.TrimSpace(a.Numero),
		Complement: strings.TrimSpace(a.Complemento),
		District:   strings.TrimSpace(a.Bairro),
		City:       strings.TrimSpace(a.Cidade),
		State:      strings.TrimSpace(a.Estado),
	}
}

func cardCharge(req domain.Request) *gatewaydomain.CardCharge {
	card := req.Data.CardData
	if card == nil {
		return nil
	}
	data := req.Data
	return &gatewaydomain.CardCharge{
		Card: gatewaydomain.Card{
			HolderName:  strings.TrimSpace(card.HolderName),
			Number:      validation.Digits(card.Number),
			ExpiryMonth: strings.TrimSpace(card.ExpiryMonth),
			ExpiryYear:  expiryYear(card.ExpiryYear),
			CCV:         strings.TrimSpace(card.CCV),
		},
		Holder: gatewaydomain.CardHolder{
			Name:          strings.TrimSpace(data.Name),
			Email:         strings.ToLower(strings.TrimSpace(data.Email)),
			TaxID:         validation.Digits(data.CPF),
			PostalCode:    validation.Digits(data.Address.CEP),
			AddressNumber: strings.TrimSpace(data.Address.Numero),
			Phone:         validation.Digits(data.Phone),
		},
		RemoteIP: req.Client.IP,
	}
}

func expiryYear(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) == 2 {
		return "20" + raw
	}
	return raw
}
