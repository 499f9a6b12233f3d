// Package jsonrpc implements the JSON-RPC 2.0 message model used by mcpkit:
// the typed request/response/notification envelopes, request-id and
// progress-token tagged unions, and the parse/serialize/classify contract
// the rest of the SDK builds on.
package jsonrpc

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Version is the only JSON-RPC version mcpkit speaks.
const Version = "2.0"

// ID is a tagged union of an unsigned integer or a string request id.
//
// Clients SHOULD issue monotonically increasing integers, but nothing in
// this package or its callers may rely on ordering between ids.
type ID struct {
	str    string
	num    int64
	isStr  bool
	isSet  bool
}

// NewIntID builds an integer-valued request id.
func NewIntID(n int64) ID { return ID{num: n, isSet: true} }

// NewStringID builds a string-valued request id.
func NewStringID(s string) ID { return ID{str: s, isStr: true, isSet: true} }

// IsSet reports whether the id was present on the wire (false for
// notifications, which carry no id at all).
func (id ID) IsSet() bool { return id.isSet }

// IsString reports whether the id is string-valued.
func (id ID) IsString() bool { return id.isStr }

// String renders the id for logging and map keys regardless of kind.
func (id ID) String() string {
	if !id.isSet {
		return ""
	}
	if id.isStr {
		return id.str
	}
	return fmt.Sprintf("%d", id.num)
}

// Int returns the integer value and whether the id was integer-valued.
func (id ID) Int() (int64, bool) {
	if id.isSet && !id.isStr {
		return id.num, true
	}
	return 0, false
}

func (id ID) MarshalJSON() ([]byte, error) {
	if !id.isSet {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ID{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID{num: n, isSet: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("jsonrpc: id must be a string or integer: %w", err)
	}
	*id = ID{str: s, isStr: true, isSet: true}
	return nil
}

// ProgressToken is a tagged union of an integer or string, chosen by the
// caller and echoed on progress notifications for a request.
type ProgressToken = ID

// Request is a method call that expects a Response bearing the same id.
type Request struct {
	ID     ID              `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Notification is a fire-and-forget message: method with no id.
type Notification struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error for a prior Request.ID.
type Response struct {
	ID     ID              `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorObject    `json:"error,omitempty"`
}

// Kind classifies a decoded Envelope.
type Kind int

const (
	KindUnknown Kind = iota
	KindRequest
	KindNotification
	KindResponse
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Envelope is the discriminated union of Request, Response, and
// Notification — the single value a Transport carries in either direction.
type Envelope struct {
	Kind         Kind
	Request      *Request
	Response     *Response
	Notification *Notification
}

// wireEnvelope is the on-the-wire shape shared by all three variants;
// Parse picks the variant from the presence of the id and method fields.
type wireEnvelope struct {
	Jsonrpc string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// Parse decodes a single JSON-RPC 2.0 envelope from raw bytes.
func Parse(data []byte) (Envelope, error) {
	if !gjson.ValidBytes(data) {
		return Envelope{}, NewError(CodeParse, "invalid JSON", nil)
	}

	hasID := gjson.GetBytes(data, "id").Exists()
	hasMethod := gjson.GetBytes(data, "method").Exists()

	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, NewError(CodeParse, "malformed envelope: "+err.Error(), nil)
	}

	switch {
	case hasMethod && hasID:
		return Envelope{Kind: KindRequest, Request: &Request{ID: *w.ID, Method: w.Method, Params: w.Params}}, nil
	case hasMethod && !hasID:
		return Envelope{Kind: KindNotification, Notification: &Notification{Method: w.Method, Params: w.Params}}, nil
	case !hasMethod && hasID:
		if w.Result != nil && w.Error != nil {
			return Envelope{}, NewError(CodeInvalidRequest, "response carries both result and error", nil)
		}
		return Envelope{Kind: KindResponse, Response: &Response{ID: *w.ID, Result: w.Result, Error: w.Error}}, nil
	default:
		return Envelope{}, NewError(CodeInvalidRequest, "envelope has neither method nor id", nil)
	}
}

// Serialize renders the canonical wire form for whichever variant is set.
func Serialize(e Envelope) ([]byte, error) {
	switch e.Kind {
	case KindRequest:
		if e.Request == nil {
			return nil, fmt.Errorf("jsonrpc: KindRequest envelope missing Request")
		}
		return json.Marshal(struct {
			Jsonrpc string          `json:"jsonrpc"`
			ID      ID              `json:"id"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}{Version, e.Request.ID, e.Request.Method, e.Request.Params})
	case KindNotification:
		if e.Notification == nil {
			return nil, fmt.Errorf("jsonrpc: KindNotification envelope missing Notification")
		}
		return json.Marshal(struct {
			Jsonrpc string          `json:"jsonrpc"`
			Method  string          `json:"method"`
			Params  json.RawMessage `json:"params,omitempty"`
		}{Version, e.Notification.Method, e.Notification.Params})
	case KindResponse:
		if e.Response == nil {
			return nil, fmt.Errorf("jsonrpc: KindResponse envelope missing Response")
		}
		if (e.Response.Result == nil) == (e.Response.Error == nil) {
			return nil, fmt.Errorf("jsonrpc: response must carry exactly one of result/error")
		}
		return json.Marshal(struct {
			Jsonrpc string          `json:"jsonrpc"`
			ID      ID              `json:"id"`
			Result  json.RawMessage `json:"result,omitempty"`
			Error   *ErrorObject    `json:"error,omitempty"`
		}{Version, e.Response.ID, e.Response.Result, e.Response.Error})
	default:
		return nil, fmt.Errorf("jsonrpc: cannot serialize envelope of unknown kind")
	}
}

// Classify reports the kind, method (if any), and id (if any) of e, without
// requiring the caller to switch on e.Kind themselves.
func Classify(e Envelope) (kind Kind, method string, id ID) {
	switch e.Kind {
	case KindRequest:
		return KindRequest, e.Request.Method, e.Request.ID
	case KindNotification:
		return KindNotification, e.Notification.Method, ID{}
	case KindResponse:
		return KindResponse, "", e.Response.ID
	default:
		return KindUnknown, "", ID{}
	}
}

// NewRequest builds a Request envelope with params marshaled from v.
func NewRequest(id ID, method string, v interface{}) (Envelope, error) {
	params, err := marshalParams(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindRequest, Request: &Request{ID: id, Method: method, Params: params}}, nil
}

// NewNotification builds a Notification envelope with params marshaled from v.
func NewNotification(method string, v interface{}) (Envelope, error) {
	params, err := marshalParams(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindNotification, Notification: &Notification{Method: method, Params: params}}, nil
}

// NewResultResponse builds a successful Response envelope.
func NewResultResponse(id ID, v interface{}) (Envelope, error) {
	result, err := marshalParams(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Kind: KindResponse, Response: &Response{ID: id, Result: result}}, nil
}

// NewErrorResponse builds a failed Response envelope.
func NewErrorResponse(id ID, errObj *ErrorObject) Envelope {
	return Envelope{Kind: KindResponse, Response: &Response{ID: id, Error: errObj}}
}

func marshalParams(v interface{}) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonrpc: marshal params: %w", err)
	}
	return data, nil
}
