package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	apperrors "conversation-orchestrator/internal/common/errors"
)

// DecodeJSON unmarshals model output into v. Markdown code fences are
// stripped and syntax errors get one jsonrepair pass before giving up.
func DecodeJSON(text string, v interface{}) error {
	data := []byte(stripFences(text))
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}

	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// AsStandardError maps the package sentinels onto the shared error taxonomy.
func AsStandardError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout):
		return apperrors.NewLLMTimeoutError(err)
	case errors.Is(err, ErrRateLimited):
		return apperrors.NewLLMRateLimitedError(err)
	case errors.Is(err, ErrInvalidResponse):
		return apperrors.NewLLMInvalidResponseError(err)
	default:
		return apperrors.NewCollaboratorUnavailableError("llm", err)
	}
}
