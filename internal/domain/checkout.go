package domain

import "strings"

// DeliveryAddress is where an order ships to.
// Every field except Landmark must be non-empty; there is no format validation.
type DeliveryAddress struct {
	FullName   string `json:"fullName" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Street     string `json:"address" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"pincode" validate:"required"`
	Landmark   string `json:"landmark,omitempty"`
}

// Normalize trims surrounding whitespace so that blank input counts as empty.
func (a DeliveryAddress) Normalize() DeliveryAddress {
	return DeliveryAddress{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Street:     strings.TrimSpace(a.Street),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Landmark:   strings.TrimSpace(a.Landmark),
	}
}

// PaymentMethod is the closed set of ways a shopper can pay.
type PaymentMethod string

const (
	PaymentCOD  PaymentMethod = "cod"
	PaymentCard PaymentMethod = "card"
	PaymentUPI  PaymentMethod = "upi"
)

// Valid reports whether m is one of the supported methods.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentCard, PaymentUPI:
		return true
	}
	return false
}

// Online reports whether the method goes through the payment gateway.
func (m PaymentMethod) Online() bool {
	return m == PaymentCard || m == PaymentUPI
}

type CardDetails struct {
	Number string `json:"cardNumber" validate:"required"`
	Expiry string `json:"expiryDate" validate:"required"`
	CVV    string `json:"cvv" validate:"required"`
}

type UPIDetails struct {
	ID string `json:"upiId" validate:"required"`
}

// PaymentSelection is the chosen method and its details.
// Card is only read for PaymentCard and UPI only for PaymentUPI.
type PaymentSelection struct {
	Type PaymentMethod `json:"type"`
	Card *CardDetails  `json:"card,omitempty"`
	UPI  *UPIDetails   `json:"upi,omitempty"`
}

// Redacted drops card and UPI details, keeping only what is safe to echo back.
func (p PaymentSelection) Redacted() PaymentSelection {
	out := PaymentSelection{Type: p.Type}
	if p.Card != nil {
		n := p.Card.Number
		if len(n) > 4 {
			n = strings.Repeat("•", len(n)-4) + n[len(n)-4:]
		}
		out.Card = &CardDetails{Number: n, Expiry: p.Card.Expiry}
	}
	if p.UPI != nil {
		out.UPI = &UPIDetails{ID: p.UPI.ID}
	}
	return out
}
