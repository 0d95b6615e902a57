package formatting

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrettyJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{name: "object", input: map[string]interface{}{"name": "Marit", "accounts": 2}, expected: "{\n  \"accounts\": 2,\n  \"name\": \"Marit\"\n}"},
		{name: "array", input: []string{"a", "b"}, expected: "[\n  \"a\",\n  \"b\"\n]"},
		{name: "nil", input: nil, expected: "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, PrettyJSON(tt.input))
		})
	}
}

func TestPrettyJSON_FallsBackForUnmarshalable(t *testing.T) {
	assert.NotEmpty(t, PrettyJSON(make(chan int)))
}
