package ai

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"

	"knowledge-base-platform/services"
)

// classifyError maps a Gemini API failure onto the pipeline taxonomy:
// credential rejections are fatal (services.ErrAuth), everything else
// from the transport is treated as transient and left retryable.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 401 || gerr.Code == 403 {
			return fmt.Errorf("%s: %w: %v", op, services.ErrAuth, err)
		}
	}
	// The genai SDK wraps some credential failures without a googleapi
	// code; match the canonical message.
	if strings.Contains(err.Error(), "API key not valid") || strings.Contains(err.Error(), "API_KEY_INVALID") {
		return fmt.Errorf("%s: %w: %v", op, services.ErrAuth, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
