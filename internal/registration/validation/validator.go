package validation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/clock"
	gatewaydomain "github.com/rcarraroia/comademig/internal/gateway/domain"
	"github.com/rcarraroia/comademig/internal/registration/domain"
)

const (
	CodeInvalidName          = "INVALID_NAME"
	CodeInvalidEmail         = "INVALID_EMAIL"
	CodeInvalidPassword      = "INVALID_PASSWORD"
	CodeInvalidCPF           = "INVALID_CPF"
	CodeInvalidPhone         = "INVALID_PHONE"
	CodeInvalidCEP           = "INVALID_CEP"
	CodeInvalidAddress       = "INVALID_ADDRESS"
	CodeInvalidMemberType    = "INVALID_MEMBER_TYPE"
	CodeRequiredPlan         = "REQUIRED_PLAN"
	CodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	CodeRequiredCardData     = "REQUIRED_CARD_DATA"
	CodeInvalidCardHolder    = "INVALID_CARD_HOLDER"
	CodeInvalidCardNumber    = "INVALID_CARD_NUMBER"
	CodeInvalidCardExpiry    = "INVALID_CARD_EXPIRY"
	CodeInvalidCardCVV       = "INVALID_CARD_CVV"

	minPasswordLength = 6
	maxCardYearsAhead = 20
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks registration payloads. It has no side effects; the clock
// only decides which card expiry dates are in the past.
type Validator struct {
	clock clock.Clock
}

func New(c clock.Clock) *Validator {
	if c == nil {
		c = clock.New()
	}
	return &Validator{clock: c}
}

// Validate reports every problem found, in field order.
func (v *Validator) Validate(data domain.RegistrationData) domain.ValidationResult {
	var errs []domain.ValidationError
	add := func(field, code, message string) {
		errs = append(errs, domain.ValidationError{Field: field, Code: code, Message: message})
	}

	if utf8.RuneCountInString(strings.TrimSpace(data.Name)) < 2 {
		add("nome", CodeInvalidName, "Nome deve ter pelo menos 2 caracteres")
	}
	if !emailPattern.MatchString(strings.TrimSpace(data.Email)) {
		add("email", CodeInvalidEmail, "Email inválido")
	}
	if utf8.RuneCountInString(data.Password) < minPasswordLength {
		add("password", CodeInvalidPassword, "Senha deve ter pelo menos 6 caracteres")
	}
	if !ValidCPF(digitsOnly(data.CPF)) {
		add("cpf", CodeInvalidCPF, "CPF inválido")
	}
	if phone := digitsOnly(data.Phone); len(phone) != 10 && len(phone) != 11 {
		add("telefone", CodeInvalidPhone, "Telefone deve ter 10 ou 11 dígitos")
	}
	if len(digitsOnly(data.Address.CEP)) != 8 || len(strings.TrimSpace(data.Address.CEP)) > 9 {
		add("endereco.cep", CodeInvalidCEP, "CEP deve ter 8 dígitos")
	}
	if utf8.RuneCountInString(strings.TrimSpace(data.Address.Logradouro)) < 5 {
		add("endereco.logradouro", CodeInvalidAddress, "Endereço deve ter pelo menos 5 caracteres")
	}
	if _, ok := accountdomain.ParseMemberType(data.MemberType); !ok {
		add("tipo_membro", CodeInvalidMemberType, "Tipo de membro inválido")
	}
	if strings.TrimSpace(data.PlanID) == "" {
		add("plan_id", CodeRequiredPlan, "Plano é obrigatório")
	}

	method := ParsePaymentMethod(data.PaymentMethod)
	if !method.Valid() {
		add("payment_method", CodeInvalidPaymentMethod, "Forma de pagamento inválida")
	}
	if method == gatewaydomain.BillingCreditCard {
		errs = append(errs, v.validateCard(data.CardData)...)
	}

	if errs == nil {
		errs = []domain.ValidationError{}
	}
	return domain.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func (v *Validator) validateCard(card *domain.CardData) []domain.ValidationError {
	if card == nil {
		return []domain.ValidationError{{
			Field:   "card_data",
			Code:    CodeRequiredCardData,
			Message: "Dados do cartão são obrigatórios",
		}}
	}

	var errs []domain.ValidationError
	add := func(field, code, message string) {
		errs = append(errs, domain.ValidationError{Field: "card_data." + field, Code: code, Message: message})
	}

	if utf8.RuneCountInString(strings.TrimSpace(card.HolderName)) < 2 {
		add("holder_name", CodeInvalidCardHolder, "Nome do titular inválido")
	}
	if number := digitsOnly(card.Number); len(number) < 13 || len(number) > 19 {
		add("number", CodeInvalidCardNumber, "Número do cartão inválido")
	}

	now := v.clock.Now()
	month, monthErr := strconv.Atoi(strings.TrimSpace(card.ExpiryMonth))
	monthOK := monthErr == nil && month >= 1 && month <= 12
	if !monthOK {
		add("expiry_month", CodeInvalidCardExpiry, "Mês de validade inválido")
	}
	year, yearOK := parseExpiryYear(card.ExpiryYear)
	if yearOK && (year < now.Year() || year > now.Year()+maxCardYearsAhead) {
		yearOK = false
	}
	if !yearOK {
		add("expiry_year", CodeInvalidCardExpiry, "Ano de validade inválido")
	}
	if monthOK && yearOK && year == now.Year() && month < int(now.Month()) {
		add("expiry_month", CodeInvalidCardExpiry, "Cartão vencido")
	}

	if ccv := strings.TrimSpace(card.CCV); len(digitsOnly(ccv)) != len(ccv) || len(ccv) < 3 || len(ccv) > 4 {
		add("ccv", CodeInvalidCardCVV, "CVV inválido")
	}
	return errs
}

// parseExpiryYear accepts four digits or the two-digit form printed on cards.
func parseExpiryYear(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 2 && len(raw) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(raw)
	if err != nil || year < 0 {
		return 0, false
	}
	if len(raw) == 2 {
		year += 2000
	}
	return year, true
}

func ParsePaymentMethod(raw string) gatewaydomain.BillingType {
	return gatewaydomain.BillingType(strings.ToUpper(strings.TrimSpace(raw)))
}

// Digits strips formatting from documents and phone numbers.
func Digits(value string) string {
	return digitsOnly(value)
}
