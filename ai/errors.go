// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/poiesic/kbflow/core"
)

// Typed failures returned by AI services. The transient ones wrap
// core.ErrTransientExternal; ErrMalformedResponse wraps core.ErrMalformedResponse.
var (
	// ErrTimeout indicates the call exceeded its deadline.
	ErrTimeout = fmt.Errorf("%w: call timed out", core.ErrTransientExternal)

	// ErrRateLimited indicates the provider rejected the call for rate limiting.
	ErrRateLimited = fmt.Errorf("%w: rate limited", core.ErrTransientExternal)

	// ErrProvider indicates any other provider-side failure.
	ErrProvider = fmt.Errorf("%w: provider error", core.ErrTransientExternal)

	// ErrMalformedResponse indicates the model output failed to decode.
	ErrMalformedResponse = fmt.Errorf("%w: model output", core.ErrMalformedResponse)

	// ErrUnknownProvider indicates a provider id with no client or decoder.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ClassifyError maps a raw client error onto the typed failures.
// Errors that are already typed, and cancellation, pass through unchanged.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrTransientExternal), errors.Is(err, core.ErrMalformedResponse):
		return err
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case isRateLimit(err):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %w", ErrProvider, err)
}

func isRateLimit(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "too many requests")
}
