// Copyright (c) 2025 Rowscope
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"

	xerrors "rowscope/cli/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	msg := fmt.Sprintf("%s: %s", context, Mask(err.Error()))
	if hint := Hint(err); hint != "" {
		msg += "\n" + hint
	}
	return msg
}

// Hint returns a short suggestion for errors of a known kind.
func Hint(err error) string {
	switch xerrors.KindOf(err) {
	case xerrors.InvalidConfiguration:
		return "Check the values with 'rowscope config show'."
	case xerrors.RewriteFailure:
		return "Only a single statement can be browsed; remove extra statements and trailing text."
	case xerrors.ConnectFailed:
		return "Run 'rowscope connect' to update the connection string."
	case xerrors.ProbeTimeout:
		return "Raise lazy.probe_timeout or disable lazy loading for this source."
	default:
		return ""
	}
}
