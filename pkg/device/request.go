package device

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

// httpClient is shared by every request. Devices close the connection
// after each exchange, so there is nothing to pool per device.
var httpClient = &http.Client{Timeout: 30 * time.Second}

func slashEnd(s string) string {
	if len(s) > 1 && s[len(s)-1] == '/' {
		return s[:len(s)-1]
	}
	return s
}

func slashStart(s string) string {
	if len(s) > 1 && s[0] == '/' {
		return s[1:]
	}
	return s
}

func slashStartEnd(s string) string {
	return slashStart(slashEnd(s))
}

// Request is a prepared request for one device route.
//
// A request can be sent plain, with every parameter at its schema
// default, or with caller-supplied values overriding the defaults.
type Request struct {
	name         string
	kind         wire.RestKind
	hazards      *hazard.Hazards
	route        string
	description  string
	parameters   *wire.ParametersData
	responseKind wire.ResponseKind
	environment  wire.DeviceEnvironment
}

func newRequest(address, mainRoute string, environment wire.DeviceEnvironment, config wire.RouteConfig) *Request {
	route := slashEnd(address) + "/" + slashStartEnd(mainRoute) + "/" + slashStartEnd(config.Path)

	return &Request{
		name:         config.Name,
		kind:         config.RestKind,
		hazards:      config.Hazards,
		route:        route,
		description:  config.Description,
		parameters:   config.Parameters,
		responseKind: config.ResponseKind,
		environment:  environment,
	}
}

func createRequests(
	configs wire.RouteConfigs,
	completeAddress, mainRoute string,
	environment wire.DeviceEnvironment,
) map[string]*Request {
	requests := make(map[string]*Request, len(configs))
	for _, config := range configs {
		requests[config.Path] = newRequest(completeAddress, mainRoute, environment, config)
	}
	return requests
}

// Name returns the route display name.
func (r *Request) Name() string {
	return r.name
}

// Kind returns the REST verb.
func (r *Request) Kind() wire.RestKind {
	return r.kind
}

// Hazards returns the route hazards. It may be nil when the route
// declares none.
func (r *Request) Hazards() *hazard.Hazards {
	return r.hazards
}

// URL returns the complete route URL without parameter segments.
func (r *Request) URL() string {
	return r.route
}

// Description returns the route description, empty when absent.
func (r *Request) Description() string {
	return r.description
}

// ParametersData returns the route parameter schema. It may be nil when
// the route declares no parameters.
func (r *Request) ParametersData() *wire.ParametersData {
	return r.parameters
}

// ResponseKind returns the reply shape contract of the route.
func (r *Request) ResponseKind() wire.ResponseKind {
	return r.responseKind
}

// validateValues checks caller-supplied values against the parameter
// schema: every value must name a schema parameter and match its type.
func (r *Request) validateValues(values *wire.Values) error {
	for _, name := range values.Names() {
		kind, ok := r.parameters.Get(name)
		if !ok {
			return errs.Newf(errs.InvalidParameter, "`%s` does not exist", name)
		}
		value, _ := values.Get(name)
		if !value.MatchesKind(kind) {
			return errs.Newf(errs.InvalidParameter,
				"Found type `%s` for `%s`, expected type `%s`",
				value.TypeName(), name, kind.AsType())
		}
	}
	return nil
}

type requestData struct {
	url        string
	parameters map[string]string
}

// buildData resolves every schema parameter to its outgoing string form,
// supplied value first, schema default otherwise. GET requests against
// OS-class devices carry the values as path segments in schema order;
// every other combination keeps the plain URL and ships the values in
// the parameter map.
func (r *Request) buildData(values *wire.Values) requestData {
	resolve := func(name string, kind wire.ParameterKind) string {
		if value, ok := values.Get(name); ok {
			return value.String()
		}
		return kind.DefaultString()
	}

	url := r.route
	if r.kind == wire.Get && r.environment == wire.Os {
		for _, name := range r.parameters.Names() {
			kind, _ := r.parameters.Get(name)
			url += "/" + resolve(name, kind)
		}
	}

	parameters := make(map[string]string, r.parameters.Len())
	for _, name := range r.parameters.Names() {
		kind, _ := r.parameters.Get(name)
		parameters[name] = resolve(name, kind)
	}

	return requestData{url: url, parameters: parameters}
}

// Send sends the request with every parameter at its schema default.
func (r *Request) Send(ctx context.Context) (*Response, error) {
	return r.dispatch(ctx, r.buildData(nil))
}

// SendWithValues sends the request with the given parameter values.
// Parameters the caller leaves out fall back to their schema defaults.
func (r *Request) SendWithValues(ctx context.Context, values *wire.Values) (*Response, error) {
	if err := r.validateValues(values); err != nil {
		return nil, err
	}
	return r.dispatch(ctx, r.buildData(values))
}

func (r *Request) dispatch(ctx context.Context, data requestData) (*Response, error) {
	var body io.Reader
	// A GET request never carries a body.
	if r.kind != wire.Get && len(data.parameters) > 0 {
		encoded, err := json.Marshal(data.parameters)
		if err != nil {
			return nil, errs.Wrap(errs.Request, err)
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, r.kind.Method(), data.url, body)
	if err != nil {
		return nil, errs.Wrap(errs.Request, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	// Close the connection after the exchange.
	request.Close = true

	response, err := httpClient.Do(request)
	if err != nil {
		return nil, errs.Wrap(errs.Request, err)
	}

	// A device that failed to serialize its reply marks the response with
	// a reserved header and ships the error text as the body.
	if len(response.Header.Values(wire.SerializationErrorHeader)) > 0 {
		text, readErr := io.ReadAll(response.Body)
		response.Body.Close()
		if readErr != nil {
			return nil, errs.Newf(errs.Request,
				"Error in reading the device serialization error: %s", readErr)
		}
		return nil, errs.Newf(errs.Request,
			"Serialization error encountered on the device side: %s", text)
	}

	return newResponse(r.responseKind, response), nil
}
