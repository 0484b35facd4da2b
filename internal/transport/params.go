package transport

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"regexp"
	"strconv"

	"storefront/internal/domain"
	"storefront/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// decimalInteger matches a base-10 integer without sign prefixes or leading zeros
var decimalInteger = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)

var (
	errNotInteger = domain.NewError(domain.ErrValidation, "Numeric fields must be base-10 integers")
	errOutOfRange = domain.NewError(domain.ErrValidation, "Numeric field is out of range")
)

// parseInteger parses s as a base-10 integer that fits a Postgres integer column
func parseInteger(s string) (int64, error) {
	if !decimalInteger.MatchString(s) {
		return 0, errNotInteger
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < math.MinInt32 || v > math.MaxInt32 {
		return 0, errOutOfRange
	}
	return v, nil
}

// FlexInt accepts a JSON integer or a base-10 integer string. Browser form
// clients send ids either way. Fractions, exponents, booleans and prefixed
// forms are rejected.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	switch raw.(type) {
	case string, json.Number:
	default:
		return errNotInteger
	}
	text, err := cast.ToStringE(raw)
	if err != nil {
		return errNotInteger
	}

	v, err := parseInteger(text)
	if err != nil {
		return err
	}
	*f = FlexInt(v)
	return nil
}

// Int64 returns f as an int64
func (f FlexInt) Int64() int64 { return int64(f) }

// optionalInt converts an optional FlexInt field into the service's *int
func optionalInt(f *FlexInt) *int {
	if f == nil {
		return nil
	}
	v := int(*f)
	return &v
}

// pathID parses a positive integer URL parameter
func pathID(r *http.Request, name string) (int64, error) {
	id, err := parseInteger(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, domain.NewError(domain.ErrValidation, "Invalid "+name)
	}
	return id, nil
}

// MessageResponse is a bare acknowledgement body
type MessageResponse struct {
	Message string `json:"message"`
}

type handlerBase struct {
	logger *zap.Logger
}

func (h handlerBase) fail(w http.ResponseWriter, r *http.Request, err error) {
	middleware.RespondWithDomainError(w, r, err, h.logger)
}
