package cli

import (
	"fmt"
	"io"
	"os"
	"sort"

	relayerrors "github.com/byteness/embedrelay/errors"
)

// FormatErrorWithSuggestion writes error to stderr with suggestion if available.
// Returns the original error for chaining.
func FormatErrorWithSuggestion(err error) error {
	return FormatErrorWithSuggestionTo(os.Stderr, err)
}

// FormatErrorWithSuggestionTo writes to a specific writer.
func FormatErrorWithSuggestionTo(w io.Writer, err error) error {
	if err == nil {
		return nil
	}

	re, ok := relayerrors.AsRelayError(err)
	if !ok {
		fmt.Fprintf(w, "Error: %v\n", err)
		return err
	}

	fmt.Fprintf(w, "Error: %s (%s)\n", re.Error(), re.Code())
	if cause := re.Unwrap(); cause != nil {
		fmt.Fprintf(w, "Cause: %v\n", cause)
	}
	if suggestion := re.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
	if ctx := re.Context(); len(ctx) > 0 {
		keys := make([]string, 0, len(ctx))
		for k := range ctx {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(w, "\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s: %s\n", k, ctx[k])
		}
	}
	return err
}

// pluralize returns "s" if count != 1.
func pluralize(count int) string {
	if count == 1 {
		return ""
	}
	return "s"
}
