// Package handler holds the HTTP response helpers shared by the storefront
// handlers: error rendering and JSON encoding.
package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dukerupert/bazaar/internal/domain"
	"github.com/dukerupert/bazaar/internal/middleware"
	"github.com/dukerupert/bazaar/internal/service"
)

// Redirect hints the storefront follows after certain errors.
const (
	LoginRedirect = "/login"
	CartRedirect  = "/cart"
)

// Message categories. The storefront picks its toast style from these; each
// failure belongs to exactly one.
const (
	CategoryValidation = "validation"
	CategorySession    = "session"
	CategoryCancelled  = "cancelled"
	CategoryPayment    = "payment"
	CategoryService    = "service"
)

// ErrorBody is the "error" member of every error response.
type ErrorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Category string            `json:"category,omitempty"`
	Stage    string            `json:"stage,omitempty"`
	OrderID  string            `json:"orderId,omitempty"`
	Redirect string            `json:"redirect,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// ErrorCodeToHTTPStatus maps domain error codes to HTTP status codes.
func ErrorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT, domain.ECANCELED:
		return http.StatusConflict
	case domain.EGONE:
		return http.StatusGone
	case domain.ETOOLARGE:
		return http.StatusRequestEntityTooLarge
	case domain.ERATELIMIT:
		return http.StatusTooManyRequests
	case domain.EINTERNAL:
		return http.StatusInternalServerError
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// NewErrorBody classifies err for the client. Internal details are masked by
// domain.ErrorMessage.
func NewErrorBody(err error) ErrorBody {
	if domain.IsValidationError(err) {
		var ve *domain.ValidationError
		errors.As(err, &ve)
		msg := ve.Message
		if msg == "" {
			msg = "Please fill all required fields"
		}
		return ErrorBody{
			Code:     domain.EINVALID,
			Message:  msg,
			Category: CategoryValidation,
			Fields:   ve.Fields,
		}
	}

	code := domain.ErrorCode(err)
	body := ErrorBody{
		Code:    code,
		Message: domain.ErrorMessage(err),
		Stage:   string(service.StageOf(err)),
		OrderID: service.OrderIDOf(err),
	}

	switch {
	case code == domain.EUNAUTHORIZED:
		body.Category = CategorySession
		body.Redirect = LoginRedirect
	case code == domain.ECANCELED:
		body.Category = CategoryCancelled
	case code == domain.EPAYMENT:
		body.Category = CategoryPayment
	case code == domain.EINVALID:
		body.Category = CategoryValidation
	case body.Stage != "", code == domain.EUNAVAILABLE, code == domain.EINTERNAL:
		body.Category = CategoryService
	}
	if errors.Is(err, domain.ErrCartEmpty) {
		body.Redirect = CartRedirect
	}
	return body
}

// ErrorResponse logs err and writes it to the client.
// For JSON requests, returns {"error": ErrorBody}.
// For other requests, returns plain text error.
func ErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	body := NewErrorBody(err)
	status := ErrorCodeToHTTPStatus(body.Code)

	logger := middleware.GetLogger(r.Context())
	attrs := []any{
		"error", err.Error(),
		"code", body.Code,
		"op", domain.ErrorOp(err),
		"status", status,
	}
	if body.Stage != "" {
		attrs = append(attrs, "stage", body.Stage)
	}

	switch {
	case status >= 500:
		logger.Error("request failed", attrs...)
	case status == http.StatusUnauthorized, status == http.StatusNotFound:
		logger.Debug("request failed", attrs...)
	default:
		logger.Info("request failed", attrs...)
	}

	if !acceptsJSON(r) {
		http.Error(w, body.Message, status)
		return
	}
	writeJSON(w, status, map[string]ErrorBody{"error": body})
}

// NotFoundResponse is a convenience wrapper for 404 errors.
func NotFoundResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Errorf(domain.ENOTFOUND, "", "The requested resource was not found"))
}

// UnauthorizedResponse is a convenience wrapper for 401 errors.
func UnauthorizedResponse(w http.ResponseWriter, r *http.Request) {
	ErrorResponse(w, r, domain.Unauthorized("", "Please log in to continue"))
}

// InternalErrorResponse logs err and returns a generic 500 response.
func InternalErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	ErrorResponse(w, r, domain.Internal(err, "", "An unexpected error occurred"))
}

// acceptsJSON checks if the client prefers JSON responses.
// Everything under /api/ is JSON regardless of headers.
func acceptsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	if strings.HasSuffix(r.URL.Path, ".json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
