package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createBody struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

func TestDecode_Valid(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","email":"a@b.co"}`))
	w := httptest.NewRecorder()

	var body createBody
	require.True(t, Decode(w, r, &body))
	assert.Equal(t, "a@b.co", body.Email)
}

func TestDecode_ValidationError(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","email":"nope"}`))
	w := httptest.NewRecorder()

	var body createBody
	require.False(t, Decode(w, r, &body))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation_failed", resp.Code)
	details := resp.Details.(map[string]any)
	assert.Equal(t, "email", details["createBody.Email"])
}

func TestDecode_BadJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	w := httptest.NewRecorder()

	var body createBody
	assert.False(t, Decode(w, r, &body))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorWithCode(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorWithCode(w, http.StatusPaymentRequired, "quota_exceeded", "Monthly quota exceeded", map[string]int{"remaining": 0})

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"quota_exceeded"`)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
}
