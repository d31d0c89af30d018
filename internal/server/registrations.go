package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	obslogger "github.com/rcarraroia/comademig/internal/observability/logger"
	registrationdomain "github.com/rcarraroia/comademig/internal/registration/domain"
)

const (
	maxRegistrationBody = 64 << 10
	maxAttemptIDLength  = 64

	headerIdempotencyKey = "Idempotency-Key"
)

type registrationEnvelope struct {
	RegistrationData json.RawMessage `json:"registration_data"`
}

func (s *Server) CreateRegistration(c *gin.Context) {
	data, err := readRegistrationData(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	attemptID := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
	if len(attemptID) > maxAttemptIDLength {
		AbortWithError(c, newValidationError("idempotency_key", "invalid_idempotency_key", "idempotency key too long"))
		return
	}

	result := s.orchestrator.Register(c.Request.Context(), registrationdomain.Request{
		Data:      data,
		AttemptID: attemptID,
		Client: accountdomain.ClientInfo{
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		},
	})

	c.Set(obslogger.ContextKeyFlowOutcome, string(result.Outcome))
	c.JSON(statusForOutcome(result.Outcome), result)
}

// readRegistrationData accepts both {registration_data: {...}} and the bare
// registration object. The body is bound once and cached, so the bare form
// reuses the same bytes.
func readRegistrationData(c *gin.Context) (registrationdomain.RegistrationData, error) {
	var data registrationdomain.RegistrationData

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRegistrationBody)

	var envelope registrationEnvelope
	if err := c.ShouldBindBodyWith(&envelope, binding.JSON); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return data, ErrPayloadTooLarge
		}
		return data, invalidRequestError()
	}

	if len(envelope.RegistrationData) > 0 && !bytes.Equal(envelope.RegistrationData, []byte("null")) {
		if err := binding.JSON.BindBody(envelope.RegistrationData, &data); err != nil {
			return data, invalidRequestError()
		}
		return data, nil
	}
	if err := c.ShouldBindBodyWith(&data, binding.JSON); err != nil {
		return data, invalidRequestError()
	}
	return data, nil
}

func statusForOutcome(outcome registrationdomain.Outcome) int {
	switch outcome {
	case registrationdomain.OutcomeCompleted:
		return http.StatusOK
	case registrationdomain.OutcomeValidationFailed:
		return http.StatusBadRequest
	case registrationdomain.OutcomePaymentRefused:
		return http.StatusPaymentRequired
	case registrationdomain.OutcomeConfirmationTimeout:
		return http.StatusAccepted
	case registrationdomain.OutcomeAttemptInProgress:
		return http.StatusConflict
	case registrationdomain.OutcomeGatewayFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
