package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJsonBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain json untouched",
			input:    `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "json fence",
			input:    "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "bare fence",
			input:    "```\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "uppercase fence",
			input:    "```JSON\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "surrounding whitespace",
			input:    "  \n```json\n{\"a\": 1}\n```\n  ",
			expected: `{"a": 1}`,
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJsonBlock(tt.input))
		})
	}
}

func TestCleanMarkdownCode(t *testing.T) {
	input := "Пример:\n```json\n{\"a\": 1}\n```\nКонец"
	assert.Equal(t, "Пример:\nКонец", CleanMarkdownCode(input))
}

func TestExtractJsonObject(t *testing.T) {
	t.Run("json with prose around", func(t *testing.T) {
		input := "Вот предложенная структура:\n{\"docs\": [\"a.txt\"]}\nНадеюсь, помогло."
		assert.Equal(t, `{"docs": ["a.txt"]}`, ExtractJsonObject(input))
	})

	t.Run("nested objects", func(t *testing.T) {
		input := `prefix {"a": {"b": 2}} suffix`
		assert.Equal(t, `{"a": {"b": 2}}`, ExtractJsonObject(input))
	})

	t.Run("braces inside strings ignored", func(t *testing.T) {
		input := `{"a": "val { with brace"}`
		assert.Equal(t, input, ExtractJsonObject(input))
	})

	t.Run("no object returns input", func(t *testing.T) {
		assert.Equal(t, "no json here", ExtractJsonObject("no json here"))
	})
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "10.5 KB", FormatSize(10752))
	assert.Equal(t, "1.0 MB", FormatSize(1024*1024))
}
