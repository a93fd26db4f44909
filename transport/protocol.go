package transport

import (
	"encoding/json"
	"strconv"

	"github.com/BaSui01/flowedit/types"
)

// Result statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Request is one command sent by a client.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Result carries the outcome of a request.
type Result struct {
	Status  string `json:"status"`
	Payload any    `json:"payload,omitempty"`
}

// Response answers the request with the same id.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result Result          `json:"result"`
}

// Event is an unsolicited server push.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ErrorPayload is the payload of an error result.
type ErrorPayload struct {
	Code    types.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// Frame is the union of every message on the wire. Requests carry a
// method, responses a result and events a type.
type Frame struct {
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  *rawResult      `json:"result,omitempty"`
	Type    string          `json:"type,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type rawResult struct {
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// IsRequest reports whether f is a request.
func (f *Frame) IsRequest() bool { return f.Method != "" }

// IsResponse reports whether f is a response.
func (f *Frame) IsResponse() bool { return f.Result != nil }

// IsEvent reports whether f is an event.
func (f *Frame) IsEvent() bool { return f.Type != "" && f.Result == nil && f.Method == "" }

// Request returns f as a request.
func (f *Frame) Request() Request {
	return Request{ID: f.ID, Method: f.Method, Params: f.Params}
}

// Success wraps payload in a success response for id.
func Success(id json.RawMessage, payload any) Response {
	return Response{ID: id, Result: Result{Status: StatusSuccess, Payload: payload}}
}

// Failure turns err into an error response for id. Errors outside the
// types.Error family are reported as INTERNAL_ERROR.
func Failure(id json.RawMessage, err error) Response {
	return Response{ID: id, Result: Result{Status: StatusError, Payload: errorPayload(err)}}
}

func errorPayload(err error) ErrorPayload {
	if e, ok := types.AsError(err); ok {
		return ErrorPayload{Code: e.Code, Message: e.Message}
	}
	return ErrorPayload{Code: types.ErrInternalError, Message: err.Error()}
}

// idKey normalizes a raw id for map lookup. String ids are unquoted so
// "7" and 7 correlate.
func idKey(id json.RawMessage) string {
	if s, err := strconv.Unquote(string(id)); err == nil {
		return s
	}
	return string(id)
}
