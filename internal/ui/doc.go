// Package ui renders pimon's CLI output: device tables, scan results and
// cycle summaries.
//
// Everything here is non-interactive. Tables are built with the Bubbles
// table component and styled with Lip Gloss; colour is switched off when
// stdout is not a terminal or --no-color is set.
//
// # Color Scheme
//
//	ColorSuccess   (green)  - Open ports, cool devices, successful steps
//	ColorError     (red)    - Failures and hot devices
//	ColorWarning   (yellow) - Warm devices and skipped work
//	ColorInfo      (cyan)   - Informational values
//	ColorMuted     (gray)   - Secondary text, timing info
package ui
