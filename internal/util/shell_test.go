package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellQuote(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "'simple'"},
		{"with space", "'with space'"},
		{"with'quote", "'with'\\''quote'"},
		{"", "''"},
		{"/tmp/get_avg_temp.sh", "'/tmp/get_avg_temp.sh'"},
		{"$variable", "'$variable'"},
		{"$(command)", "'$(command)'"},
		{"`backtick`", "'`backtick`'"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShellQuote(tt.input))
		})
	}
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, "", ShellJoin())
	assert.Equal(t, "'chmod' '+x' '/tmp/a b.sh'", ShellJoin("chmod", "+x", "/tmp/a b.sh"))
}
