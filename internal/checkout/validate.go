package checkout

import (
	"errors"
	"reflect"
	"strings"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/go-playground/validator/v10"
)

const (
	msgRequiredFields = "Please fill all required fields"
	msgCardDetails    = "Please enter complete card details"
	msgUPIID          = "Please enter your UPI ID"
	msgPaymentMethod  = "Please select a payment method"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so the storefront can highlight inputs.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateAddress checks that every required address field is non-empty once
// trimmed; a field of only spaces counts as missing.
func ValidateAddress(addr domain.DeliveryAddress) error {
	return structError("checkout.address", msgRequiredFields, addr.Normalize())
}

// ValidatePayment checks the details the selected method needs.
// Cash on delivery is always valid; its details are ignored.
func ValidatePayment(sel domain.PaymentSelection) error {
	const op = "checkout.payment"

	switch sel.Type {
	case domain.PaymentCOD:
		return nil
	case domain.PaymentCard:
		if sel.Card == nil {
			return &domain.ValidationError{Op: op, Message: msgCardDetails, Fields: map[string]string{"card": "is required"}}
		}
		card := *sel.Card
		card.Number = strings.TrimSpace(card.Number)
		card.Expiry = strings.TrimSpace(card.Expiry)
		card.CVV = strings.TrimSpace(card.CVV)
		return structError(op, msgCardDetails, card)
	case domain.PaymentUPI:
		if sel.UPI == nil {
			return &domain.ValidationError{Op: op, Message: msgUPIID, Fields: map[string]string{"upiId": "is required"}}
		}
		return structError(op, msgUPIID, domain.UPIDetails{ID: strings.TrimSpace(sel.UPI.ID)})
	default:
		return &domain.ValidationError{Op: op, Message: msgPaymentMethod, Fields: map[string]string{"type": "is required"}}
	}
}

func structError(op, message string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.Internal(err, op, "validation failed")
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = "is required"
	}
	return &domain.ValidationError{Op: op, Message: message, Fields: fields}
}
