package device

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tosca-protocol/tosca-go/pkg/errs"
	"github.com/tosca-protocol/tosca-go/pkg/hazard"
	"github.com/tosca-protocol/tosca-go/pkg/wire"
)

func toggleConfig(kind wire.RestKind) wire.RouteConfig {
	return wire.RouteConfig{
		Name: "Toggle",
		Path: "/toggle",
		Hazards: hazard.New(
			hazard.FireHazard,
			hazard.ElectricEnergyConsumption,
		),
		Parameters: wire.NewParametersData().
			Add("rangeu64", wire.RangeU64(0, 20, 1, 5)).
			Add("rangef64", wire.RangeF64(0, 20, 0.1, 0)),
		RestKind:     kind,
		ResponseKind: wire.SerialKind,
	}
}

func TestRequestRouteNormalization(t *testing.T) {
	config := wire.RouteConfig{Name: "Route", Path: "/route", RestKind: wire.Put, ResponseKind: wire.OkKind}

	for _, tc := range []struct {
		address   string
		mainRoute string
	}{
		{"http://tosca.local/", "light/"},
		{"http://tosca.local", "light"},
		{"http://tosca.local/", "/light/"},
	} {
		request := newRequest(tc.address, tc.mainRoute, wire.Os, config)
		assert.Equal(t, "http://tosca.local/light/route", request.URL(),
			"address %q main route %q", tc.address, tc.mainRoute)
	}
}

func TestSendWithValuesRejectsUnknownParameter(t *testing.T) {
	request := newRequest("http://tosca.local/", "light/", wire.Os, toggleConfig(wire.Get))

	_, err := request.SendWithValues(context.Background(), wire.NewValues().U64("wrong", 0))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
	assert.Contains(t, err.Error(), "`wrong` does not exist")
}

func TestSendWithValuesRejectsWrongType(t *testing.T) {
	request := newRequest("http://tosca.local/", "light/", wire.Os, toggleConfig(wire.Get))

	_, err := request.SendWithValues(context.Background(), wire.NewValues().F64("rangeu64", 0))
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.InvalidParameter))
	assert.Contains(t, err.Error(), "Found type `f64` for `rangeu64`, expected type `u64`")
}

func TestGetOnOsDeviceSendsParametersAsPathSegments(t *testing.T) {
	var gotPath, gotMethod string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"brightness": 3}`))
	}))
	defer server.Close()

	request := newRequest(server.URL, "light/", wire.Os, toggleConfig(wire.Get))

	response, err := request.SendWithValues(context.Background(), wire.NewValues().U64("rangeu64", 3))
	require.NoError(t, err)

	// Supplied value first, schema default for the rest, in schema order.
	assert.Equal(t, "/light/toggle/3/0", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
	assert.Empty(t, gotBody)
	assert.Equal(t, SerialBody, response.Variant())
}

func TestGetOnEsp32DeviceKeepsPlainRoute(t *testing.T) {
	var gotPath string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	request := newRequest(server.URL, "light/", wire.Esp32, toggleConfig(wire.Get))

	_, err := request.SendWithValues(context.Background(), wire.NewValues().U64("rangeu64", 3))
	require.NoError(t, err)

	// A GET request never carries a body, so the values cannot travel.
	assert.Equal(t, "/light/toggle", gotPath)
	assert.Empty(t, gotBody)
}

func TestPutSendsParametersAsJSONBody(t *testing.T) {
	var gotPath, gotContentType string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	request := newRequest(server.URL, "light/", wire.Os, toggleConfig(wire.Put))

	_, err := request.SendWithValues(context.Background(), wire.NewValues().U64("rangeu64", 3))
	require.NoError(t, err)

	assert.Equal(t, "/light/toggle", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"rangeu64": "3", "rangef64": "0"}`, string(gotBody))
}

func TestPlainSendUsesSchemaDefaults(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"brightness": 5}`))
	}))
	defer server.Close()

	request := newRequest(server.URL, "light/", wire.Os, toggleConfig(wire.Get))

	_, err := request.Send(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/light/toggle/5/0", gotPath)
}

func TestSerializationErrorHeaderFailsRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(wire.SerializationErrorHeader, "1")
		w.Write([]byte("unserializable response"))
	}))
	defer server.Close()

	config := wire.RouteConfig{Name: "On", Path: "/on", RestKind: wire.Put, ResponseKind: wire.OkKind}
	request := newRequest(server.URL, "light/", wire.Os, config)

	_, err := request.Send(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsKind(err, errs.Request))
	assert.Contains(t, err.Error(), "unserializable response")
}
