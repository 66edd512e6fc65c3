package uploader

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoInputFiles  = errors.New("no input files matched")
	ErrArchiveLocked = errors.New("archive is locked by another run")
	ErrAborted       = errors.New("aborted by operator")
)

// ClassificationError reports a file name the key rules cannot resolve.
type ClassificationError struct {
	FileName string
	Reason   string
	Matches  []string
}

func (e *ClassificationError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("classify %s: %s", e.FileName, e.Reason)
	}
	return fmt.Sprintf("classify %s: %s (matches: %s)", e.FileName, e.Reason, strings.Join(e.Matches, ", "))
}

// PortalError is a non-success answer from a portal endpoint.
type PortalError struct {
	Op         string
	FileName   string
	StatusCode int
	Body       string
}

func (e *PortalError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Op, e.FileName, e.StatusCode)
}

// HashMismatchError means the file changed between archiving and upload.
type HashMismatchError struct {
	FileName string
	Expected string
	Actual   string
}

func (e *HashMismatchError) Error() string {
	return fmt.Sprintf("hash mismatch for %s: archived %s, current %s", e.FileName, e.Expected, e.Actual)
}

// StageError ties a failure to the pipeline stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

const maxDiagnosticBody = 2048

// Diagnostic renders err as the multi-line operator message printed before exit.
func Diagnostic(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder

	var pe *PortalError
	var he *HashMismatchError
	var ce *ClassificationError
	switch {
	case errors.As(err, &pe):
		fmt.Fprintf(&b, "Error during %s for file %s\n", strings.ReplaceAll(pe.Op, "_", " "), pe.FileName)
		fmt.Fprintf(&b, "Status code: %d\n", pe.StatusCode)
		b.WriteString("***\n")
		body := pe.Body
		if len(body) > maxDiagnosticBody {
			body = body[:maxDiagnosticBody] + "... (truncated)"
		}
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			fmt.Fprintf(&b, "\t%s\n", line)
		}
		b.WriteString("***\n")
	case errors.As(err, &he):
		fmt.Fprintf(&b, "Hash mismatch for file %s\n", he.FileName)
		fmt.Fprintf(&b, "\tarchived: %s\n", he.Expected)
		fmt.Fprintf(&b, "\tcurrent:  %s\n", he.Actual)
		b.WriteString("The file changed after its metadata was built; rerun archive_json.\n")
	case errors.As(err, &ce):
		fmt.Fprintf(&b, "Cannot derive a key for file %s\n", ce.FileName)
		fmt.Fprintf(&b, "\t%s\n", ce.Reason)
		if len(ce.Matches) > 0 {
			fmt.Fprintf(&b, "\tmatches: %s\n", strings.Join(ce.Matches, ", "))
		}
	default:
		fmt.Fprintf(&b, "Error: %v\n", err)
	}
	b.WriteString("zupload will now exit.")
	return b.String()
}
