// Copyright (c) 2025 Authkit
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	autherrors "authkit/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
// Normalized errors show only their message; anything else shows its full text.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", context, Mask(autherrors.MessageOf(err)))
}
