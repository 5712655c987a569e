package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/orrerysim/orrery/pkg/generic"
)

// Request is the envelope every command travels in.
type Request struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
}

// Response is the reply envelope. OK distinguishes a handled refusal, which
// carries its reason in Msg, from a successful reply carrying Data.
type Response struct {
	OK   bool            `json:"ok"`
	Msg  string          `json:"msg,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

var requestPool = generic.NewPoolWithReset(
	func() *Request { return &Request{} },
	func(r *Request) { r.Cmd, r.Data = "", nil },
)

var responsePool = generic.NewPoolWithReset(
	func() *Response { return &Response{} },
	func(r *Response) { r.OK, r.Msg, r.Data = false, "", nil },
)

// AcquireRequest hands out a pooled request. Callers return it with
// ReleaseRequest once the bytes derived from it are written out.
func AcquireRequest() *Request { return requestPool.Get() }

// ReleaseRequest recycles a request obtained from AcquireRequest,
// NewRequest or DecodeRequest.
func ReleaseRequest(r *Request) {
	if r != nil {
		requestPool.Put(r)
	}
}

// AcquireResponse hands out a pooled response.
func AcquireResponse() *Response { return responsePool.Get() }

// ReleaseResponse recycles a response obtained from AcquireResponse,
// Success, Failure or DecodeResponse.
func ReleaseResponse(r *Response) {
	if r != nil {
		responsePool.Put(r)
	}
}

// NewRequest builds a request with the payload marshalled into the envelope.
func NewRequest(cmd string, payload any) (*Request, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "failed to marshal request payload", err)
	}
	r := AcquireRequest()
	r.Cmd = cmd
	r.Data = data
	return r, nil
}

// Marshal renders the envelope as JSON.
func (r *Request) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "failed to marshal request", err)
	}
	return data, nil
}

// DecodeRequest parses a request envelope from the wire.
func DecodeRequest(data []byte) (*Request, error) {
	r := AcquireRequest()
	if err := json.Unmarshal(data, r); err != nil {
		ReleaseRequest(r)
		return nil, NewProtocolError(ErrorCodeDeserializationFailed, "failed to decode request", err)
	}
	return r, nil
}

// Bind decodes the request payload into v. Decoding is strict: unknown keys
// and values of the wrong shape are rejected, so a misspelled field fails
// the command instead of being silently dropped.
func (r *Request) Bind(v any) error {
	if len(r.Data) == 0 {
		return NewProtocolError(ErrorCodeInvalidMessage, "request carries no payload", nil)
	}
	dec := json.NewDecoder(bytes.NewReader(r.Data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewProtocolError(ErrorCodeDeserializationFailed, "failed to bind request payload", err)
	}
	return nil
}

// Success wraps data in an affirmative response. Nil data yields a bare
// acknowledgement.
func Success(data any) *Response {
	resp := AcquireResponse()
	resp.OK = true
	if data == nil {
		return resp
	}
	raw, err := json.Marshal(data)
	if err != nil {
		resp.OK = false
		resp.Msg = "failed to encode response data"
		return resp
	}
	resp.Data = raw
	return resp
}

// Failure builds a refusal with a printf style reason.
func Failure(format string, args ...any) *Response {
	resp := AcquireResponse()
	if len(args) == 0 {
		resp.Msg = format
	} else {
		resp.Msg = fmt.Sprintf(format, args...)
	}
	return resp
}

// Marshal renders the envelope as JSON.
func (r *Response) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, NewProtocolError(ErrorCodeSerializationFailed, "failed to marshal response", err)
	}
	return data, nil
}

// DecodeResponse parses a response envelope from the wire.
func DecodeResponse(data []byte) (*Response, error) {
	r := AcquireResponse()
	if err := json.Unmarshal(data, r); err != nil {
		ReleaseResponse(r)
		return nil, NewProtocolError(ErrorCodeDeserializationFailed, "failed to decode response", err)
	}
	return r, nil
}

// Bind decodes the response data into v. Unlike requests the decode is
// lenient, so an older client keeps working against a newer broker.
func (r *Response) Bind(v any) error {
	if len(r.Data) == 0 {
		return NewProtocolError(ErrorCodeInvalidMessage, "response carries no data", nil)
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return NewProtocolError(ErrorCodeDeserializationFailed, "failed to bind response data", err)
	}
	return nil
}
