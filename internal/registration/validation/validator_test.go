package validation

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	accountdomain "github.com/rcarraroia/comademig/internal/account/domain"
	"github.com/rcarraroia/comademig/internal/clock"
	"github.com/rcarraroia/comademig/internal/registration/domain"
)

func validData() domain.RegistrationData {
	return domain.RegistrationData{
		Name:     "Maria Silva",
		Email:    "maria@example.com",
		Password: "segredo123",
		CPF:      "529.982.247-25",
		Phone:    "(31) 99999-8888",
		Address: accountdomain.Address{
			CEP:        "30140-071",
			Logradouro: "Av. Afonso Pena",
			Numero:     "100",
			Cidade:     "Belo Horizonte",
			Estado:     "MG",
		},
		MemberType:    "pastor",
		PlanID:        "plan-pastor",
		PaymentMethod: "PIX",
	}
}

func newValidator() *Validator {
	return New(clock.NewFakeClock(time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)))
}

func codes(res domain.ValidationResult) []string {
	out := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		out = append(out, e.Field+":"+e.Code)
	}
	return out
}

func TestValidateAcceptsValidPayload(t *testing.T) {
	res := newValidator().Validate(validData())
	if !res.IsValid || len(res.Errors) != 0 {
		t.Fatalf("expected valid payload, got %v", codes(res))
	}
}

func TestValidateReportsEveryInvalidField(t *testing.T) {
	data := validData()
	data.CPF = "123"
	data.Email = "not-an-email"
	data.Password = "123"
	data.Name = " A "
	data.Phone = "9999"
	data.Address.CEP = "301"
	data.Address.Logradouro = "Rua"
	data.MemberType = "visitante"
	data.PlanID = " "
	data.PaymentMethod = "cheque"

	res := newValidator().Validate(data)
	want := []string{
		"nome:INVALID_NAME",
		"email:INVALID_EMAIL",
		"password:INVALID_PASSWORD",
		"cpf:INVALID_CPF",
		"telefone:INVALID_PHONE",
		"endereco.cep:INVALID_CEP",
		"endereco.logradouro:INVALID_ADDRESS",
		"tipo_membro:INVALID_MEMBER_TYPE",
		"plan_id:REQUIRED_PLAN",
		"payment_method:INVALID_PAYMENT_METHOD",
	}
	if res.IsValid {
		t.Fatalf("expected invalid payload")
	}
	if diff := cmp.Diff(want, codes(res)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCardRequiresCardData(t *testing.T) {
	data := validData()
	data.PaymentMethod = "credit_card"

	res := newValidator().Validate(data)
	if diff := cmp.Diff([]string{"card_data:REQUIRED_CARD_DATA"}, codes(res)); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateCardFields(t *testing.T) {
	cases := []struct {
		name string
		card domain.CardData
		want []string
	}{
		{
			name: "valid four digit year",
			card: domain.CardData{HolderName: "MARIA SILVA", Number: "4111 1111 1111 1111", ExpiryMonth: "03", ExpiryYear: "2026", CCV: "123"},
			want: []string{},
		},
		{
			name: "valid two digit year",
			card: domain.CardData{HolderName: "MARIA SILVA", Number: "4111111111111111", ExpiryMonth: "1", ExpiryYear: "27", CCV: "1234"},
			want: []string{},
		},
		{
			name: "expired this year",
			card: domain.CardData{HolderName: "MARIA SILVA", Number: "4111111111111111", ExpiryMonth: "02", ExpiryYear: "2026", CCV: "123"},
			want: []string{"card_data.expiry_month:INVALID_CARD_EXPIRY"},
		},
		{
			name: "year too far ahead",
			card: domain.CardData{HolderName: "MARIA SILVA", Number: "4111111111111111", ExpiryMonth: "05", ExpiryYear: "2047", CCV: "123"},
			want: []string{"card_data.expiry_year:INVALID_CARD_EXPIRY"},
		},
		{
			name: "everything wrong",
			card: domain.CardData{HolderName: "M", Number: "4111", ExpiryMonth: "13", ExpiryYear: "2020", CCV: "12a"},
			want: []string{
				"card_data.holder_name:INVALID_CARD_HOLDER",
				"card_data.number:INVALID_CARD_NUMBER",
				"card_data.expiry_month:INVALID_CARD_EXPIRY",
				"card_data.expiry_year:INVALID_CARD_EXPIRY",
				"card_data.ccv:INVALID_CARD_CVV",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := validData()
			data.PaymentMethod = "CREDIT_CARD"
			card := tc.card
			data.CardData = &card

			res := newValidator().Validate(data)
			if diff := cmp.Diff(tc.want, codes(res)); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
			if res.IsValid != (len(tc.want) == 0) {
				t.Fatalf("unexpected validity %v", res.IsValid)
			}
		})
	}
}

func TestValidateIgnoresCardForOtherMethods(t *testing.T) {
	data := validData()
	data.PaymentMethod = "BOLETO"
	data.CardData = &domain.CardData{Number: "1"}

	if res := newValidator().Validate(data); !res.IsValid {
		t.Fatalf("expected card data to be ignored, got %v", codes(res))
	}
}

func TestValidCPF(t *testing.T) {
	cases := map[string]bool{
		"52998224725": true,
		"11144477735": true,
		"52998224724": false,
		"11111111111": false,
		"123":         false,
		"5299822472a": false,
	}
	for cpf, want := range cases {
		if got := ValidCPF(cpf); got != want {
			t.Fatalf("ValidCPF(%q) = %v, want %v", cpf, got, want)
		}
	}
}
