package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the JSON error envelope every handler writes.
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Details map[string]string `json:"details,omitempty"` // Per-field validation failures
}

// ValidationHelper wraps a shared validator instance. Field names in the
// details map are the JSON names, so clients can map failures straight back
// to their request payload.
type ValidationHelper struct {
	validator *validator.Validate
}

func NewValidationHelper() *ValidationHelper {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &ValidationHelper{validator: v}
}

func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse writes the error envelope with the given status. A
// validator error expands into per-field details; any other error is
// reported by the message alone.
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{Error: message}
	var fieldErrs validator.ValidationErrors
	if errors.As(validationErr, &fieldErrs) {
		resp.Details = make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			resp.Details[fe.Field()] = fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		}
	}

	json.NewEncoder(w).Encode(resp)
}
