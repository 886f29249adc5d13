package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationDetailsUseJSONFieldNames(t *testing.T) {
	vh := NewValidationHelper()

	err := vh.ValidateStruct(&TopUpRequest{Amount: 0, Locale: "fr"})
	require.Error(t, err)

	w := httptest.NewRecorder()
	SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Validation failed", resp.Error)
	assert.Contains(t, resp.Details, "amount")
	assert.Contains(t, resp.Details, "locale")
	assert.NotContains(t, resp.Details, "Amount")
}

func TestSendErrorResponseWithoutValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Unauthorized", resp.Error)
	assert.Empty(t, resp.Details)
}
