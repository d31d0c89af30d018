package asaas

type customerPayload struct {
	Name                 string `json:"name"`
	Email                string `json:"email,omitempty"`
	CPFCNPJ              string `json:"cpfCnpj"`
	MobilePhone          string `json:"mobilePhone,omitempty"`
	PostalCode           string `json:"postalCode,omitempty"`
	Address              string `json:"address,omitempty"`
	AddressNumber        string `json:"addressNumber,omitempty"`
	Complement           string `json:"complement,omitempty"`
	Province             string `json:"province,omitempty"`
	ExternalReference    string `json:"externalReference,omitempty"`
	NotificationDisabled bool   `json:"notificationDisabled"`
}

type customerResponse struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	CPFCNPJ string `json:"cpfCnpj"`
	Deleted bool   `json:"deleted"`
}

type customerList struct {
	Data       []customerResponse `json:"data"`
	TotalCount int                `json:"totalCount"`
}

type paymentPayload struct {
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	DueDate           string  `json:"dueDate"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
}

type paymentResponse struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	Status            string  `json:"status"`
	DueDate           string  `json:"dueDate"`
	InvoiceURL        string  `json:"invoiceUrl"`
	ExternalReference string  `json:"externalReference"`
	Deleted           bool    `json:"deleted"`
}

type paymentList struct {
	Data       []paymentResponse `json:"data"`
	TotalCount int               `json:"totalCount"`
}

type creditCardPayload struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

type creditCardHolderPayload struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	CPFCNPJ       string `json:"cpfCnpj"`
	PostalCode    string `json:"postalCode"`
	AddressNumber string `json:"addressNumber"`
	Phone         string `json:"phone,omitempty"`
}

type payWithCardPayload struct {
	CreditCard           creditCardPayload       `json:"creditCard"`
	CreditCardHolderInfo creditCardHolderPayload `json:"creditCardHolderInfo"`
	RemoteIP             string                  `json:"remoteIp,omitempty"`
}

type errorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

type webhookEvent struct {
	ID          string          `json:"id"`
	Event       string          `json:"event"`
	DateCreated string          `json:"dateCreated"`
	Payment     paymentResponse `json:"payment"`
}
