package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/weather"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nwsServer(t *testing.T, places string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, places)
	})
	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"properties":{"forecastHourly":%q}}`, srv.URL+"/hourly")
	})
	mux.HandleFunc("/hourly", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"properties":{"periods":[{"temperature":66.6}]}}`)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func weatherConfig(t *testing.T, srv *httptest.Server, enabled bool) string {
	t.Helper()
	return writeConfig(t, fmt.Sprintf(`
log:
  level: error
weather:
  enabled: %t
  postal_code: "90210"
  timeout: 2s
  geocode_url: %s/search
  points_url: %s/points
`, enabled, srv.URL, srv.URL))
}

func TestWeatherCommand_JSON(t *testing.T) {
	srv := nwsServer(t, `[{"lat":"34.09","lon":"-118.41"}]`)
	useFlags(t, weatherConfig(t, srv, true), true)

	var buf bytes.Buffer
	require.NoError(t, weatherCommand(context.Background(), &buf, ""))

	var snap weather.Snapshot
	decodeSuccess(t, buf.Bytes(), &snap)
	require.NotNil(t, snap.Temp)
	assert.Equal(t, 67, *snap.Temp)
	assert.NotNil(t, snap.LastUpdate)
}

func TestWeatherCommand_Text(t *testing.T) {
	srv := nwsServer(t, `[{"lat":"34.09","lon":"-118.41"}]`)
	useFlags(t, weatherConfig(t, srv, true), false)

	var buf bytes.Buffer
	require.NoError(t, weatherCommand(context.Background(), &buf, ""))
	assert.Contains(t, buf.String(), "90210")
	assert.Contains(t, buf.String(), "67°F")
}

func TestWeatherCommand_DisabledUnlessPostalCodeGiven(t *testing.T) {
	srv := nwsServer(t, `[{"lat":"34.09","lon":"-118.41"}]`)
	useFlags(t, weatherConfig(t, srv, false), true)

	err := weatherCommand(context.Background(), &bytes.Buffer{}, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))

	var buf bytes.Buffer
	require.NoError(t, weatherCommand(context.Background(), &buf, "10001"))
}

func TestWeatherCommand_UnknownPostalCode(t *testing.T) {
	srv := nwsServer(t, `[]`)
	useFlags(t, weatherConfig(t, srv, true), true)

	var buf bytes.Buffer
	err := weatherCommand(context.Background(), &buf, "")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrWeather))
	assert.Equal(t, ErrCodeWeatherUnavailable, ErrorToJSON(err).Code)
	assert.Empty(t, buf.String())
}
