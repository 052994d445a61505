package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"Commons/internal/core/errs"
)

// ErrorResponse is the JSON body of every error reply
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a standardized JSON error response
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   errorType,
		Message: message,
	})
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// authMessages are the user-facing messages for each sign-in failure
var authMessages = map[string]string{
	errs.ReasonUserNotFound:      "This account does not exist. Please check the email address.",
	errs.ReasonWrongPassword:     "The password is incorrect. Please try again.",
	errs.ReasonInvalidCredential: "Invalid credentials. Please check your email and password.",
	errs.ReasonEmailInUse:        "This email address is already registered.",
	errs.ReasonSessionRequired:   "Please sign in to continue.",
	errs.ReasonSessionExpired:    "Your session has expired. Please sign in again.",
}

// HandleServiceError maps the error taxonomy to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errs.IsValidationError(err):
		WriteError(w, http.StatusBadRequest, "InvalidRequest", err.Error())

	case errs.IsAuthError(err):
		reason := errs.AuthReason(err)
		message, ok := authMessages[reason]
		if !ok {
			message = "Sign-in failed. Please try again."
		}
		WriteError(w, http.StatusUnauthorized, "AuthFailed:"+reason, message)

	case errs.IsAuthorizationError(err):
		WriteError(w, http.StatusForbidden, "NotAuthorized", "You are not allowed to do this")

	case errs.IsNotFound(err):
		var notFound *errs.NotFoundError
		errors.As(err, &notFound)
		WriteError(w, http.StatusNotFound, resourceErrorType(notFound.Resource), err.Error())

	case errs.IsUnavailable(err):
		log.Printf("[BACKEND] Unavailable: %v", err)
		WriteError(w, http.StatusServiceUnavailable, "ServiceUnavailable",
			"The service is temporarily unavailable. Please try again.")

	default:
		// Don't leak internal error details to clients
		log.Printf("Unexpected error in handler: %v", err)
		WriteError(w, http.StatusInternalServerError, "InternalServerError",
			"An internal error occurred")
	}
}

// resourceErrorType turns "post" into "PostNotFound"
func resourceErrorType(resource string) string {
	if resource == "" {
		return "NotFound"
	}
	return strings.ToUpper(resource[:1]) + resource[1:] + "NotFound"
}
