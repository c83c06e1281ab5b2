package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "json code block",
			input:    "```json\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "generic code block",
			input:    "```\n{\"key\": \"value\"}\n```",
			expected: `{"key": "value"}`,
		},
		{
			name:     "plain JSON",
			input:    `  {"key": "value"}  `,
			expected: `{"key": "value"}`,
		},
		{
			name:     "single line fence",
			input:    "```{\"key\": 1}```",
			expected: `{"key": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple object",
			input:    `{"key": "value"}`,
			expected: `{"key": "value"}`,
		},
		{
			name:     "preamble and trailing text",
			input:    "Here is the record:\n{\"type\": \"result\"}\nLet me know!",
			expected: `{"type": "result"}`,
		},
		{
			name:     "nested objects",
			input:    `{"outer": {"inner": "value"}}`,
			expected: `{"outer": {"inner": "value"}}`,
		},
		{
			name:     "braces inside strings",
			input:    `{"template": "Hello {name}!", "x": "}"}`,
			expected: `{"template": "Hello {name}!", "x": "}"}`,
		},
		{
			name:     "escaped quotes",
			input:    `Result: {"message": "He said \"hi {\""}`,
			expected: `{"message": "He said \"hi {\""}`,
		},
		{
			name:     "first of two objects",
			input:    `{"a": 1} {"b": 2}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "stray brace before object",
			input:    "note { unclosed\n",
			expected: "",
		},
		{
			name:     "fenced",
			input:    "```json\n{\"id\": \"x\"}\n```",
			expected: `{"id": "x"}`,
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "no object",
			input:    `["a", "b"]`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractJSONObject(tt.input))
		})
	}
}
