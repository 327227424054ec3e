package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/cenkalti/backoff/v5"

	"github.com/computergenieco/pimon/internal/errors"
)

const maxBodyBytes = 4 << 20

type geocodeResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

type pointsResponse struct {
	Properties struct {
		ForecastHourly string `json:"forecastHourly"`
	} `json:"properties"`
}

type forecastResponse struct {
	Properties struct {
		Periods []struct {
			Temperature *float64 `json:"temperature"`
		} `json:"periods"`
	} `json:"properties"`
}

// fetch runs geocode, points and hourly forecast in order and returns the
// first period's temperature.
func (c *Client) fetch(ctx context.Context) (int, error) {
	q := url.Values{}
	q.Set("postalcode", c.opts.PostalCode)
	q.Set("country", c.opts.Country)
	q.Set("format", "json")

	var places []geocodeResult
	if err := c.getJSON(ctx, c.opts.GeocodeURL+"?"+q.Encode(), &places); err != nil {
		return 0, wrap(err, "Geocoding "+c.opts.PostalCode+" failed")
	}
	if len(places) == 0 || places[0].Lat == "" || places[0].Lon == "" {
		return 0, errors.New(errors.ErrWeather,
			fmt.Sprintf("No location found for postal code %s", c.opts.PostalCode),
			"Check weather.postal_code and weather.country.")
	}
	lat, lon := places[0].Lat, places[0].Lon

	var points pointsResponse
	pointsURL := strings.TrimRight(c.opts.PointsURL, "/") + "/" + lat + "," + lon
	if err := c.getJSON(ctx, pointsURL, &points); err != nil {
		return 0, wrap(err, fmt.Sprintf("NWS points lookup for %s,%s failed", lat, lon))
	}
	if points.Properties.ForecastHourly == "" {
		return 0, errors.New(errors.ErrWeather,
			fmt.Sprintf("NWS has no hourly forecast for %s,%s", lat, lon),
			"NWS only covers US locations.")
	}

	var forecast forecastResponse
	if err := c.getJSON(ctx, points.Properties.ForecastHourly, &forecast); err != nil {
		return 0, wrap(err, "NWS hourly forecast failed")
	}
	periods := forecast.Properties.Periods
	if len(periods) == 0 || periods[0].Temperature == nil {
		return 0, errors.New(errors.ErrWeather, "Invalid weather response from NWS API", "")
	}

	return int(math.Round(*periods[0].Temperature)), nil
}

// getJSON GETs rawURL and decodes the body into dst. 5xx responses and
// transport errors are retried; anything else non-2xx fails immediately.
func (c *Client) getJSON(ctx context.Context, rawURL string, dst any) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryInterval
	bo.MaxInterval = 4 * c.opts.RetryInterval

	operation := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)
		req.Header.Set("Accept", "application/geo+json, application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			statusErr := fmt.Errorf("%s returned %s", req.URL.Host, resp.Status)
			if resp.StatusCode >= 500 {
				return nil, statusErr
			}
			return nil, backoff.Permanent(statusErr)
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(c.opts.Retries)))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

func wrap(err error, message string) error {
	return errors.WrapWithCode(err, errors.ErrWeather, message, "")
}
