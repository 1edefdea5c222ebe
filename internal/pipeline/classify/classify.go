// Package classify replaces the exception-kind taxonomy the original
// pipeline used to distinguish retryable from terminal failures with an
// explicit result type (spec §7, §9 design note on "exceptions as control
// flow"). Every handler and pipeline step returns an Outcome instead of
// raising a typed exception.
package classify

import (
	"regexp"
	"strconv"
	"strings"
)

// Outcome is the classification of a single unit of work.
type Outcome int

const (
	// Ok means the step succeeded.
	Ok Outcome = iota
	// TerminalInvalid covers validation failures: empty/invalid filename,
	// unsupported extension, a bulk job whose upload isn't a ZIP.
	TerminalInvalid
	// TerminalProtected covers password/encrypted input.
	TerminalProtected
	// TerminalMalformed covers corrupt archives or unreadable PDFs.
	TerminalMalformed
	// TransientIO covers retryable I/O failures (handler-level retry,
	// then escalation to queue redelivery once exhausted).
	TransientIO
	// TransientExternal covers retryable external-process or
	// external-service failures (GX 5xx/timeout, subprocess crash not
	// classified as protected).
	TransientExternal
)

func (o Outcome) String() string {
	switch o {
	case Ok:
		return "Ok"
	case TerminalInvalid:
		return "TerminalInvalid"
	case TerminalProtected:
		return "TerminalProtected"
	case TerminalMalformed:
		return "TerminalMalformed"
	case TransientIO:
		return "TransientIO"
	case TransientExternal:
		return "TransientExternal"
	default:
		return "Unknown"
	}
}

// Terminal reports whether the outcome represents a final state that must
// not be retried.
func (o Outcome) Terminal() bool {
	switch o {
	case TerminalInvalid, TerminalProtected, TerminalMalformed:
		return true
	default:
		return false
	}
}

// Result pairs an Outcome with the human-readable reason recorded on the
// FileMaster/ZipMaster/ProcessingJob error_message column.
type Result struct {
	Outcome Outcome
	Reason  string
}

func OkResult() Result { return Result{Outcome: Ok} }

func Invalid(reason string) Result    { return Result{Outcome: TerminalInvalid, Reason: reason} }
func Protected(reason string) Result  { return Result{Outcome: TerminalProtected, Reason: reason} }
func Malformed(reason string) Result  { return Result{Outcome: TerminalMalformed, Reason: reason} }
func TransientIOErr(reason string) Result {
	return Result{Outcome: TransientIO, Reason: reason}
}
func TransientExternalErr(reason string) Result {
	return Result{Outcome: TransientExternal, Reason: reason}
}

// protectedPatterns are the stderr substrings ghostscript and qpdf emit for
// password-protected input (spec §4.6). Matching is case-insensitive since
// tool versions vary in capitalization.
var protectedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)requires a password for access`),
	regexp.MustCompile(`(?i)file is encrypted`),
	regexp.MustCompile(`(?i)invalid password`),
}

// ClassifyProcessFailure inspects a failed subprocess's stderr and exit
// code to decide whether the failure is a protected-file terminal error or
// a retryable external-process failure (spec §4.6, §7).
func ClassifyProcessFailure(exitCode int, stderr string) Result {
	for _, pat := range protectedPatterns {
		if pat.MatchString(stderr) {
			return Protected("file is password protected")
		}
	}
	trimmed := strings.TrimSpace(stderr)
	if trimmed == "" {
		trimmed = "external process failed"
	}
	return TransientExternalErr(trimmed)
}

// ClassifyGxStatusCode maps a GX HTTP response status code per spec §7:
// 2xx is Ok, 4xx is TerminalInvalid, and every other code (5xx included)
// is TransientExternal, i.e. retryable. It only classifies; it writes no
// row status.
func ClassifyGxStatusCode(statusCode int) Result {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OkResult()
	case statusCode >= 400 && statusCode < 500:
		return Invalid("gx rejected request with status " + strconv.Itoa(statusCode))
	default:
		return TransientExternalErr("gx returned status " + strconv.Itoa(statusCode))
	}
}
