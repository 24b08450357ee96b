package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "conversation-orchestrator/internal/common/errors"
)

func TestDecodeJSON_FencesAndRepair(t *testing.T) {
	var out struct {
		Intent string `json:"intent"`
	}

	require.NoError(t, DecodeJSON("```json\n{\"intent\": \"web_search\"}\n```", &out))
	assert.Equal(t, "web_search", out.Intent)

	require.NoError(t, DecodeJSON(`{"intent": "escalate",}`, &out))
	assert.Equal(t, "escalate", out.Intent)
}

func TestAsStandardError(t *testing.T) {
	tests := []struct {
		err  error
		code apperrors.ErrorCode
	}{
		{fmt.Errorf("%w: %v", ErrTimeout, context.DeadlineExceeded), apperrors.ErrCodeLLMTimeout},
		{fmt.Errorf("%w: 429", ErrRateLimited), apperrors.ErrCodeLLMRateLimited},
		{fmt.Errorf("%w: bad json", ErrInvalidResponse), apperrors.ErrCodeLLMInvalidResponse},
		{errors.New("dial tcp: refused"), apperrors.ErrCodeCollaboratorUnavailable},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.True(t, apperrors.HasCode(AsStandardError(tt.err), tt.code))
		})
	}
	assert.NoError(t, AsStandardError(nil))
}
