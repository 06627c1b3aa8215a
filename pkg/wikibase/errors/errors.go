package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var ErrConfig = fmt.Errorf("configuration error")
var ErrStoreUnavailable = fmt.Errorf("store unavailable")
var ErrEntityNotFound = fmt.Errorf("entity not found")
var ErrRevisionLookup = fmt.Errorf("revision lookup error")
var ErrInvalidEntity = fmt.Errorf("invalid entity content")
var ErrUnsupportedValueType = fmt.Errorf("unsupported value type")
var ErrSinkWrite = fmt.Errorf("sink write error")

type myError struct {
	msg    string
	target error
	cause  error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }
func (m myError) Unwrap() error        { return m.cause }

func NewConfigError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrConfig,
	}
}

func NewStoreUnavailableError(msg string, cause error) error {
	return &myError{
		msg:    withCause(msg, cause),
		target: ErrStoreUnavailable,
		cause:  cause,
	}
}

func NewEntityNotFoundError(entityID string) error {
	return &myError{
		msg:    fmt.Sprintf("entity %s not found", entityID),
		target: ErrEntityNotFound,
	}
}

func NewRevisionLookupError(msg string, cause error) error {
	return &myError{
		msg:    withCause(msg, cause),
		target: ErrRevisionLookup,
		cause:  cause,
	}
}

// NewInvalidEntityError reports stored content that does not decode into an entity.
// Retrying the lookup will not change the outcome.
func NewInvalidEntityError(entityID string, cause error) error {
	return &myError{
		msg:    withCause(fmt.Sprintf("content of %s is not a valid entity", entityID), cause),
		target: ErrInvalidEntity,
		cause:  cause,
	}
}

func NewUnsupportedValueTypeError(valueType string) error {
	return &myError{
		msg:    fmt.Sprintf("unsupported value type \"%s\"", valueType),
		target: ErrUnsupportedValueType,
	}
}

func NewSinkWriteError(cause error) error {
	return &myError{
		msg:    withCause("failed to write to output", cause),
		target: ErrSinkWrite,
		cause:  cause,
	}
}

func withCause(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return fmt.Sprintf("%s: %s", msg, cause.Error())
}

// NewErrorFromAPIResponse maps an error body returned by the Wikibase API onto the
// error taxonomy of this package.
func NewErrorFromAPIResponse(code int, entityID string, body []byte) error {
	report := &struct {
		Error struct {
			Code string `json:"code"`
			Info string `json:"info"`
		} `json:"error"`
	}{}

	if code == http.StatusNotFound {
		return NewEntityNotFoundError(entityID)
	}

	err := json.Unmarshal(body, report)
	if err != nil {
		return NewRevisionLookupError(
			fmt.Sprintf("[code: %d] failed to process error response from api", code), err,
		)
	}

	if report.Error.Code == "no-such-entity" || report.Error.Code == "missingtitle" {
		return NewEntityNotFoundError(entityID)
	}

	return NewRevisionLookupError(
		fmt.Sprintf("[code: %d] unknown api error \"%s\" with info \"%s\" received",
			code, report.Error.Code, report.Error.Info,
		),
		nil,
	)
}
