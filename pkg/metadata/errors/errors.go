package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

var ErrInternal = fmt.Errorf("internal error")
var ErrNotFound = fmt.Errorf("not found")
var ErrRequest = fmt.Errorf("request error")
var ErrBadResponse = fmt.Errorf("bad response")
var ErrTransport = fmt.Errorf("transport error")
var ErrStoreUnavailable = fmt.Errorf("store unavailable")
var ErrUnknownOrigin = fmt.Errorf("unknown origin")

type myError struct {
	msg    string
	target error
}

func (m myError) Error() string        { return m.msg }
func (m myError) Is(target error) bool { return target == m.target }

func NewNotFoundError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewStoreUnavailableError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrStoreUnavailable,
	}
}

func NewUnknownOriginError(msg string) error {
	return &myError{
		msg:    msg,
		target: ErrUnknownOrigin,
	}
}

// TransportError is returned when the remote metadata API answers with a
// non-success status that is not a plain not found. It keeps the status and
// raw body so callers can log or surface the server's own explanation.
type TransportError struct {
	StatusCode int
	Body       []byte
}

func (t *TransportError) Error() string {
	return fmt.Sprintf("remote metadata api returned status code %d (body: %s)", t.StatusCode, string(t.Body))
}

func (t *TransportError) Is(target error) bool { return target == ErrTransport }

func NewTransportError(statusCode int, body []byte) error {
	return &TransportError{StatusCode: statusCode, Body: body}
}

// NewErrorFromResponse maps a non-success response from the remote metadata
// api to an error. A 404 maps to ErrNotFound so that callers can branch into
// the batch fallback; everything else becomes a TransportError.
func NewErrorFromResponse(statusCode int, body []byte) error {
	if statusCode == http.StatusNotFound {
		return NewNotFoundError(fmt.Sprintf("not found (body: %s)", string(body)))
	}

	return NewTransportError(statusCode, body)
}

// ProblemDetails stores details about a certain problem according to RFC7807.
// See https://tools.ietf.org/html/rfc7807
type ProblemDetails interface {
	ContentType() string
	MarshalJSON() ([]byte, error)
	WriteResponse(w http.ResponseWriter)
}

type ProblemDetailsImpl struct {
	typ     string
	title   string
	detail  string
	code    int
	traceID string
}

const ProblemReportContentType string = "application/problem+json"

// BadRequestData reports that the request includes input data which does not
// meet the requirements of the operation.
type BadRequestData struct {
	ProblemDetailsImpl
}

func NewBadRequestData(detail, traceID string) *BadRequestData {
	return &BadRequestData{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:     "https://openmetalab.github.io/metasync/errors/BadRequestData",
			title:   "Bad Request Data",
			detail:  detail,
			code:    http.StatusBadRequest,
			traceID: traceID,
		},
	}
}

func ReportNewBadRequestData(w http.ResponseWriter, detail, traceID string) {
	brd := NewBadRequestData(detail, traceID)
	brd.WriteResponse(w)
}

// InternalError reports that there has been an error during the operation execution.
type InternalError struct {
	ProblemDetailsImpl
}

func (ie InternalError) Error() string {
	return ie.detail
}

func NewInternalError(detail, traceID string) *InternalError {
	return &InternalError{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:     "https://openmetalab.github.io/metasync/errors/InternalError",
			title:   "Internal Error",
			detail:  detail,
			code:    http.StatusInternalServerError,
			traceID: traceID,
		},
	}
}

func ReportNewInternalError(w http.ResponseWriter, detail, traceID string) {
	ie := NewInternalError(detail, traceID)
	ie.WriteResponse(w)
}

// NotFound reports that the request failed with a not found error of some kind.
type NotFound struct {
	ProblemDetailsImpl
}

func NewNotFound(detail, traceID string) *NotFound {
	return &NotFound{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:     "https://openmetalab.github.io/metasync/errors/ResourceNotFound",
			title:   "Not Found",
			detail:  detail,
			code:    http.StatusNotFound,
			traceID: traceID,
		},
	}
}

func ReportNotFoundError(w http.ResponseWriter, detail, traceID string) {
	nf := NewNotFound(detail, traceID)
	nf.WriteResponse(w)
}

type UnauthorizedRequest struct {
	ProblemDetailsImpl
}

func NewUnauthorizedRequest(detail, traceID string) *UnauthorizedRequest {
	return &UnauthorizedRequest{
		ProblemDetailsImpl: ProblemDetailsImpl{
			typ:     "https://openmetalab.github.io/metasync/errors/UnauthorizedRequest",
			title:   "Unauthorized Request",
			detail:  detail,
			code:    http.StatusUnauthorized,
			traceID: traceID,
		},
	}
}

func ReportUnauthorizedRequest(w http.ResponseWriter, detail, traceID string) {
	ur := NewUnauthorizedRequest(detail, traceID)
	ur.WriteResponse(w)
}

func (p *ProblemDetailsImpl) ContentType() string {
	return ProblemReportContentType
}

func (p *ProblemDetailsImpl) MarshalJSON() ([]byte, error) {
	var traceID *string

	if p.traceID != "" {
		traceID = &p.traceID
	}

	j, err := json.Marshal(struct {
		Type    string  `json:"type"`
		Title   string  `json:"title"`
		Detail  string  `json:"detail"`
		TraceID *string `json:"traceID,omitempty"`
	}{
		Type:    p.typ,
		Title:   p.title,
		Detail:  p.detail,
		TraceID: traceID,
	})
	if err != nil {
		return nil, err
	}

	return j, nil
}

func (p *ProblemDetailsImpl) ResponseCode() int {
	if p.code != 0 {
		return p.code
	}

	return http.StatusBadRequest
}

func (p *ProblemDetailsImpl) WriteResponse(w http.ResponseWriter) {
	w.Header().Add("Content-Type", p.ContentType())
	w.Header().Add("Content-Language", "en")
	w.WriteHeader(p.ResponseCode())

	pdbytes, err := json.MarshalIndent(p, "", "  ")
	if err == nil {
		w.Write(pdbytes)
	}
}
