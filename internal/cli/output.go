package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Verification failed: stored balances drifted from the log
	ExitCommandError = 2 // Command error (bad flags, unreachable database, rejected transaction, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitCommandError if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatAmount renders minor units in the currency's display form, e.g. "$1,234.56".
func formatAmount(minor int64, currency string) string {
	return money.New(minor, currency).Display()
}

// formatSigned is formatAmount with an explicit "+" on positive amounts.
func formatSigned(minor int64, currency string) string {
	if minor > 0 {
		return "+" + formatAmount(minor, currency)
	}
	return formatAmount(minor, currency)
}

// parseAmount converts a major-unit decimal string ("12.50") into minor units of currency.
// More decimal places than the currency has are rejected rather than rounded.
func parseAmount(s, currency string) (int64, error) {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return 0, fmt.Errorf("unknown currency %q", currency)
	}
	return parseScaled(s, int32(cur.Fraction))
}

// parsePercent converts a percentage string ("33.33") into basis points.
func parsePercent(s string) (int64, error) {
	return parseScaled(strings.TrimSuffix(strings.TrimSpace(s), "%"), 2)
}

func parseScaled(s string, places int32) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	scaled := d.Shift(places)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%q has more than %d decimal places", s, places)
	}
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || scaled.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, fmt.Errorf("%q is out of range", s)
	}
	return scaled.IntPart(), nil
}
