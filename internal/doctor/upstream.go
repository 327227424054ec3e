package doctor

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/computergenieco/pimon/internal/errors"
	"github.com/computergenieco/pimon/internal/publish"
	"github.com/computergenieco/pimon/internal/store"
	"github.com/computergenieco/pimon/internal/util"
)

// Refresher fetches the outdoor temperature once.
type Refresher interface {
	Refresh(ctx context.Context, now time.Time) error
}

// WeatherCheck performs one full geocode and forecast round trip.
type WeatherCheck struct {
	PostalCode string
	Client     Refresher // nil when weather is disabled
}

func (c *WeatherCheck) Name() string     { return "weather" }
func (c *WeatherCheck) Category() string { return "UPSTREAM" }

func (c *WeatherCheck) Run(ctx context.Context) CheckResult {
	if c.Client == nil {
		return CheckResult{Status: StatusSkip, Message: "Weather disabled"}
	}

	start := time.Now()
	if err := c.Client.Refresh(ctx, start); err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: suggestionOf(err, "Check weather.postal_code and your internet connection"),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("Forecast for %s fetched in %s", c.PostalCode, time.Since(start).Round(time.Millisecond)),
	}
}

// MQTTCheck connects to the broker and disconnects again.
type MQTTCheck struct {
	Broker  string
	Connect func(ctx context.Context) (publish.Publisher, error) // nil when MQTT is disabled
}

func (c *MQTTCheck) Name() string     { return "mqtt" }
func (c *MQTTCheck) Category() string { return "UPSTREAM" }

func (c *MQTTCheck) Run(ctx context.Context) CheckResult {
	if c.Connect == nil {
		return CheckResult{Status: StatusSkip, Message: "MQTT publishing disabled"}
	}

	pub, err := c.Connect(ctx)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    errors.Oneline(err),
			Suggestion: suggestionOf(err, "Check mqtt.broker and the mqtt credentials"),
		}
	}
	pub.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: "Connected to " + c.Broker,
	}
}

// Collector fetches one reading from a host.
type Collector interface {
	Collect(ctx context.Context, host string) (store.Reading, error)
}

// DeviceCheck runs a full collection against one device.
type DeviceCheck struct {
	Host      string
	Collector Collector
}

func (c *DeviceCheck) Name() string     { return "device_" + c.Host }
func (c *DeviceCheck) Category() string { return "DEVICES" }

func (c *DeviceCheck) Run(ctx context.Context) CheckResult {
	r, err := c.Collector.Collect(ctx, c.Host)
	if err != nil {
		return CheckResult{
			Status:     StatusFail,
			Message:    c.Host + ": " + errors.Oneline(err),
			Suggestion: suggestionOf(err, "Run 'pimon collect "+c.Host+" --debug' for each SSH step"),
		}
	}

	msg := fmt.Sprintf("%s: %s", c.Host, util.FormatCelsius(r.Temperature))
	if r.Uptime != nil {
		msg += ", up " + util.FormatUptime(*r.Uptime)
	}
	return CheckResult{Status: StatusPass, Message: msg}
}

// NewDeviceChecks creates a DeviceCheck per host.
func NewDeviceChecks(hosts []string, c Collector) []Check {
	checks := make([]Check, len(hosts))
	for i, h := range hosts {
		checks[i] = &DeviceCheck{Host: h, Collector: c}
	}
	return checks
}

// suggestionOf returns the suggestion carried by a structured error, or
// fallback.
func suggestionOf(err error, fallback string) string {
	var pErr *errors.Error
	if stderrors.As(err, &pErr) && pErr.Suggestion != "" {
		return pErr.Suggestion
	}
	return fallback
}
