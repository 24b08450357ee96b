package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func handleQuerySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"query", "userId"},
		"properties": map[string]interface{}{
			"query":     map[string]interface{}{"type": "string", "minLength": 1},
			"userId":    map[string]interface{}{"type": "string", "minLength": 1},
			"sessionId": map[string]interface{}{"type": "string"},
		},
	}
}

func TestValidator_Validate(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register("handle-query", handleQuerySchema()))
	assert.True(t, v.Has("handle-query"))

	tests := []struct {
		name      string
		data      map[string]interface{}
		wantValid bool
		badField  string
	}{
		{
			name:      "valid",
			data:      map[string]interface{}{"query": "reset password", "userId": "u-1"},
			wantValid: true,
		},
		{
			name:     "missing user",
			data:     map[string]interface{}{"query": "reset password"},
			badField: "userId",
		},
		{
			name:     "empty query",
			data:     map[string]interface{}{"query": "", "userId": "u-1"},
			badField: "query",
		},
		{
			name:     "wrong type",
			data:     map[string]interface{}{"query": 42, "userId": "u-1"},
			badField: "query",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := v.Validate("handle-query", tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.badField != "" {
				assert.True(t, result.HasErrors(tt.badField), "errors: %v", result.GetErrorMessages())
			}
		})
	}
}

func TestValidator_UnknownSchemaPasses(t *testing.T) {
	result, err := NewValidator().Validate("nope", map[string]interface{}{"anything": true})
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidator_RejectsBrokenSchema(t *testing.T) {
	err := NewValidator().Register("broken", map[string]interface{}{"type": 12})
	assert.Error(t, err)
}

func TestValidateInput(t *testing.T) {
	result, err := ValidateInput(map[string]interface{}{"userId": "u"}, handleQuerySchema())
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.GetErrorMessages())

	result, err = ValidateInput(map[string]interface{}{}, nil)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://example.com/docs"))
	assert.True(t, ValidateURL(" http://example.com "))
	assert.False(t, ValidateURL("ftp://example.com"))
	assert.False(t, ValidateURL("/relative/path"))
	assert.False(t, ValidateURL("https://"))
}
