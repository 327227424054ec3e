// Package cli implements the pimon command-line interface.
//
// Each cobra command loads pimon.yaml, builds the pieces it needs from the
// internal packages and hands off to them:
//
//	pimon                  - same as pimon serve
//	pimon serve            - poll on a schedule and serve the dashboard API
//	pimon scan             - run one scan and collection cycle and print it
//	pimon collect <host>   - collect from specific hosts, skipping the scan
//	pimon weather          - fetch the outdoor temperature once
//	pimon doctor           - diagnose config, credentials and upstreams
//	pimon config init      - write a starter pimon.yaml
//	pimon config show      - print the effective configuration
//	pimon version          - print build information
//
// # Flag Handling
//
// Global flags (--config, --debug, --json, --no-color) live on the root
// command. With --json every command writes a single JSONEnvelope to stdout,
// including failures, so scripts never have to scrape tables.
package cli
