package types

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type HealthResponse struct {
	Status             string `json:"status"`
	ProviderConfigured bool   `json:"providerConfigured"`
	Environment        string `json:"environment"`
}

type ConfigResponse struct {
	PublishableKey string `json:"publishableKey"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret string `json:"clientSecret"`
	PaymentId    string `json:"paymentId"`
	CustomerId   string `json:"customerId"`
}

type ChargeView struct {
	Amount     int64  `json:"amount"`
	ReceiptUrl string `json:"receiptUrl"`
	Status     string `json:"status"`
}

type PaymentView struct {
	Id       string       `json:"id"`
	Status   string       `json:"status"`
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Customer string       `json:"customer"`
	Created  int64        `json:"created"`
	Charges  []ChargeView `json:"charges"`
}

type ClientSecretResponse struct {
	ClientSecret string `json:"clientSecret"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type WebhookAckResponse struct {
	Received bool `json:"received"`
}
