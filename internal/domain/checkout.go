package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Customer is the "cliente" block of the checkout handoff.
type Customer struct {
	Nome        string `json:"nome" validate:"required,min=3,max=120"`
	Email       string `json:"email" validate:"required,email"`
	CPF         string `json:"cpf" validate:"required,cpf"`
	Telefone    string `json:"telefone" validate:"required,min=10,max=20"`
	CEP         string `json:"cep" validate:"required,cep"`
	Endereco    string `json:"endereco" validate:"required,max=200"`
	Numero      string `json:"numero" validate:"required,max=20"`
	Complemento string `json:"complemento,omitempty" validate:"max=100"`
	Bairro      string `json:"bairro" validate:"required,max=100"`
	Cidade      string `json:"cidade" validate:"required,max=100"`
	Estado      string `json:"estado" validate:"required,len=2,alpha"`
}

// CheckoutLine is one entry of "produtos" in the checkout handoff.
type CheckoutLine struct {
	Name      string      `json:"name"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
	VariantID int64       `json:"variant_id"`
}

// CheckoutRequest is the body of POST /api/orders/create-checkout.
type CheckoutRequest struct {
	Produtos []CheckoutLine `json:"produtos"`
	Cliente  Customer       `json:"cliente"`
	Total    json.Number    `json:"total"`
}

// NewCheckoutRequest builds the handoff body from the cart lines.
func NewCheckoutRequest(cart Cart, customer Customer) CheckoutRequest {
	lines := make([]CheckoutLine, 0, len(cart.Items))
	for _, it := range cart.Items {
		lines = append(lines, CheckoutLine{
			Name:      it.Name,
			Quantity:  it.Quantity,
			Price:     Amount(it.Price),
			VariantID: it.VariantID,
		})
	}
	return CheckoutRequest{
		Produtos: lines,
		Cliente:  customer,
		Total:    Amount(cart.Total),
	}
}

// CheckoutResponse is the subset of the Order API answer the storefront
// reads. Which field is populated depends on the payment gateway mode.
type CheckoutResponse struct {
	RedirectURL      string `json:"redirect_url"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// URL returns the first non-empty of redirect_url, init_point and
// sandbox_init_point.
func (r CheckoutResponse) URL() string {
	for _, u := range []string{r.RedirectURL, r.InitPoint, r.SandboxInitPoint} {
		if u != "" {
			return u
		}
	}
	return ""
}

// Amount renders a currency amount as a JSON number with two decimals.
func Amount(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}
