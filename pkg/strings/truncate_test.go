package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short name unchanged", input: "Marit", maxLen: 10, expected: "Marit"},
		{name: "exact length unchanged", input: "Marit", maxLen: 5, expected: "Marit"},
		{name: "long school name", input: "Openbare Basisschool De Regenboog", maxLen: 20, expected: "Openbare Basissch..."},
		{name: "newlines collapsed", input: "De\nRegenboog", maxLen: 20, expected: "De Regenboog"},
		{name: "tabs and spaces collapsed", input: "De \t  Regenboog", maxLen: 20, expected: "De Regenboog"},
		{name: "unicode is cut on runes", input: "Zoë Öztürk-Ångström", maxLen: 8, expected: "Zoë Ö..."},
		{name: "tiny max is raised", input: "Regenboog", maxLen: 1, expected: "R..."},
		{name: "empty", input: "", maxLen: 10, expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.input, tt.maxLen))
		})
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "6a1f0a2e", ShortID("6a1f0a2e-7c1c-4f0e-8a8e-0d7b5c9b3a11"))
	assert.Equal(t, "plain", ShortID("plain"))
	assert.Equal(t, "", ShortID(""))
}
