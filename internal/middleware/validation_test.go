package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCartRequest struct {
	UserID    int64  `json:"user_id" validate:"required,gt=0"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
	Status    string `json:"status" validate:"omitempty,oneof=pending shipped"`
}

func TestProperty_RequiredFieldValidationWorks(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("missing required fields are rejected", prop.ForAll(
		func(includeUser, includeProduct, includeQuantity bool) bool {
			reqMap := make(map[string]interface{})
			if includeUser {
				reqMap["user_id"] = 1
			}
			if includeProduct {
				reqMap["product_id"] = 2
			}
			if includeQuantity {
				reqMap["quantity"] = 3
			}

			reqBody, _ := json.Marshal(reqMap)
			req := httptest.NewRequest("POST", "/cart", bytes.NewReader(reqBody))

			var body testCartRequest
			err := DecodeAndValidate(req, &body)

			if includeUser && includeProduct && includeQuantity {
				return err == nil
			}
			return err != nil && len(FormatValidationErrors(err)) > 0
		},
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestFormatValidationErrors_UsesJSONNames(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{"user_id":1,"product_id":2,"quantity":0,"status":"lost"}`))

	var body testCartRequest
	err := DecodeAndValidate(req, &body)
	require.Error(t, err)

	errs := FormatValidationErrors(err)
	require.Len(t, errs, 2)
	assert.Equal(t, "quantity", errs[0].Field)
	assert.Equal(t, "This field is required", errs[0].Message)
	assert.Equal(t, "status", errs[1].Field)
	assert.Equal(t, "Value must be one of: pending shipped", errs[1].Message)
}

func TestDecodeAndValidate_MalformedBody(t *testing.T) {
	for _, body := range []string{"", "{", `{"user_id":"x"}`} {
		req := httptest.NewRequest("POST", "/cart", strings.NewReader(body))
		var v testCartRequest
		err := DecodeAndValidate(req, &v)
		assert.ErrorIs(t, err, ErrMalformedBody, "body %q", body)
		assert.Empty(t, FormatValidationErrors(err))
	}
}

func TestRespondWithRequestError(t *testing.T) {
	req := httptest.NewRequest("POST", "/cart", strings.NewReader(`{}`))
	var v testCartRequest
	err := DecodeAndValidate(req, &v)

	w := httptest.NewRecorder()
	RespondWithRequestError(w, err)
	assert.Equal(t, 400, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Details, "validation_errors")

	w = httptest.NewRecorder()
	RespondWithRequestError(w, ErrMalformedBody)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, w.Body.String())

	// A classified decode failure keeps its message.
	w = httptest.NewRecorder()
	typed := domain.NewError(domain.ErrValidation, "Numeric field is out of range")
	RespondWithRequestError(w, fmt.Errorf("%w: %w", ErrMalformedBody, typed))
	assert.Equal(t, 400, w.Code)
	assert.JSONEq(t, `{"error":"Numeric field is out of range"}`, w.Body.String())
}
