package collect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/computergenieco/pimon/internal/errors"
)

// Output is the parsed result of one script run.
type Output struct {
	// MilliCelsius is the raw first token.
	MilliCelsius int64

	// Uptime in seconds, nil when the script printed a single token.
	Uptime *int64
}

// Celsius converts the raw reading to degrees.
func (o Output) Celsius() float64 {
	return float64(o.MilliCelsius) / 1000
}

// ParseOutput reads "<millidegrees> [<uptime seconds>]" from script stdout.
// Tokens after the second are ignored.
func ParseOutput(stdout []byte) (Output, error) {
	fields := strings.Fields(string(stdout))
	if len(fields) == 0 {
		return Output{}, errors.New(errors.ErrParse,
			"Script printed nothing",
			"The script must print '<millidegrees> [uptime seconds]'.")
	}

	milli, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Output{}, errors.WrapWithCode(err, errors.ErrParse,
			fmt.Sprintf("Temperature %q is not an integer", fields[0]),
			"The first token must be millidegrees Celsius, e.g. 45231.")
	}

	out := Output{MilliCelsius: milli}
	if len(fields) > 1 {
		up, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Output{}, errors.WrapWithCode(err, errors.ErrParse,
				fmt.Sprintf("Uptime %q is not an integer", fields[1]),
				"The second token must be whole seconds of uptime.")
		}
		out.Uptime = &up
	}
	return out, nil
}
