package device

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// Variant names the shape of a Response.
type Variant int

const (
	// Skipped marks a request blocked by the privacy policy. No network
	// exchange happened.
	Skipped Variant = iota
	// OkBody carries a plain success marker.
	OkBody
	// SerialBody carries a typed JSON payload chosen by the device
	// operation.
	SerialBody
	// InfoBody carries the fixed device-info payload.
	InfoBody
	// StreamBody carries a raw byte stream.
	StreamBody
)

func (v Variant) String() string {
	switch v {
	case Skipped:
		return "Skipped"
	case OkBody:
		return "OkBody"
	case SerialBody:
		return "SerialBody"
	case InfoBody:
		return "InfoBody"
	case StreamBody:
		return "StreamBody"
	default:
		return "Unknown"
	}
}

// Response is the reply to a device request. Its body is decoded lazily
// and can be consumed exactly once, through the parser matching its
// variant.
type Response struct {
	variant  Variant
	http     *http.Response
	consumed bool
}

// NewSkipped creates the response of a request blocked by the privacy
// policy.
func NewSkipped() *Response {
	return &Response{variant: Skipped}
}

func newResponse(kind wire.ResponseKind, response *http.Response) *Response {
	variant := OkBody
	switch kind {
	case wire.SerialKind:
		variant = SerialBody
	case wire.InfoKind:
		variant = InfoBody
	case wire.StreamKind:
		variant = StreamBody
	}
	return &Response{variant: variant, http: response}
}

// Variant returns the response shape.
func (r *Response) Variant() Variant {
	return r.variant
}

// IsSkipped reports whether the request was blocked by the privacy
// policy.
func (r *Response) IsSkipped() bool {
	return r.variant == Skipped
}

func (r *Response) body(expected Variant, kind errs.Kind) (io.ReadCloser, error) {
	if r.variant != expected {
		return nil, errs.Newf(kind, "Cannot parse a `%s` response as `%s`", r.variant, expected)
	}
	if r.consumed {
		return nil, errs.New(kind, "The response body has already been consumed")
	}
	r.consumed = true
	return r.http.Body, nil
}

func parseJSONBody(body io.ReadCloser, v any) error {
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return errs.Wrap(errs.JsonResponse, err)
	}
	return nil
}

// ParseOkBody decodes the success marker of an OkBody response.
func (r *Response) ParseOkBody() (wire.OkResponse, error) {
	body, err := r.body(OkBody, errs.JsonResponse)
	if err != nil {
		return wire.OkResponse{}, err
	}
	var ok wire.OkResponse
	if err := parseJSONBody(body, &ok); err != nil {
		return wire.OkResponse{}, err
	}
	return ok, nil
}

// ParseSerialBody decodes the typed JSON payload of a SerialBody response
// into v.
func (r *Response) ParseSerialBody(v any) error {
	body, err := r.body(SerialBody, errs.JsonResponse)
	if err != nil {
		return err
	}
	return parseJSONBody(body, v)
}

// ParseInfoBody decodes the device-info payload of an InfoBody response.
func (r *Response) ParseInfoBody() (*wire.DeviceInfo, error) {
	body, err := r.body(InfoBody, errs.JsonResponse)
	if err != nil {
		return nil, err
	}
	var info wire.DeviceInfo
	if err := parseJSONBody(body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Stream returns the raw byte stream of a StreamBody response. The caller
// owns the stream and must close it.
func (r *Response) Stream() (io.ReadCloser, error) {
	return r.body(StreamBody, errs.StreamResponse)
}
