package utils

import (
	"encoding/json"
	"net/http"
	"time"

	"ms-busticketing/internal/models"
)

type APIResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func SuccessResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	}
}

func ErrorResponse(message, error, code string) APIResponse {
	return APIResponse{
		Success:   false,
		Message:   message,
		Error:     error,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// HTTPStatus maps an error code to the status it is served with.
func HTTPStatus(code string) int {
	switch code {
	case models.CodeSeatAlreadySold, models.CodeTripNotScheduled, models.CodeInvalidState:
		return http.StatusConflict
	case models.CodeValidation, models.CodeInvalidBoardingPass:
		return http.StatusBadRequest
	case models.CodeNotFound:
		return http.StatusNotFound
	case models.CodeUnauthorized:
		return http.StatusUnauthorized
	case models.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	WriteJSON(w, status, SuccessResponse(message, data))
}

// WriteError classifies err and writes the error envelope. Storage failures are
// not echoed back to the client.
func WriteError(w http.ResponseWriter, message string, err error) {
	code := models.ErrorCode(err)
	WriteJSON(w, HTTPStatus(code), ErrorResponse(message, models.PublicMessage(err), code))
}

// WriteValidationError reports a malformed or invalid request body.
func WriteValidationError(w http.ResponseWriter, err error) {
	WriteJSON(w, http.StatusBadRequest, ErrorResponse("Invalid request", err.Error(), models.CodeValidation))
}
