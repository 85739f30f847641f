package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fatih/color"

	"github.com/petal-labs/dify-go/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitService    = 2
	ExitNetwork    = 3
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode picks the process exit code for err. Validation failures raised
// before any request was sent count as usage errors.
func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var svcErr *core.ServiceError
	if !errors.As(err, &svcErr) {
		return ExitValidation
	}
	switch svcErr.Kind {
	case core.KindNetwork, core.KindTimeout:
		return ExitNetwork
	case core.KindBadRequest:
		if svcErr.HTTPStatus == 0 {
			return ExitValidation
		}
	}
	return ExitService
}

// reportError prints err to stderr and returns it wrapped with its exit code.
func (a *App) reportError(err error) error {
	code := exitCode(err)

	var svcErr *core.ServiceError
	isService := errors.As(err, &svcErr)

	if a.jsonOutput {
		body := map[string]any{
			"type":    "error",
			"message": err.Error(),
		}
		if isService {
			body["type"] = svcErr.Kind.String()
			body["message"] = svcErr.Message
			if svcErr.Code != "" {
				body["code"] = svcErr.Code
			}
			if svcErr.HTTPStatus != 0 {
				body["status"] = svcErr.HTTPStatus
			}
			if svcErr.RequestID != "" {
				body["request_id"] = svcErr.RequestID
			}
		}
		enc := json.NewEncoder(a.stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"error": body})
		return exitWithCode(code, err)
	}

	label := color.New(color.FgRed, color.Bold)
	_, _ = label.Fprint(a.stderr, "error:")
	fmt.Fprintf(a.stderr, " %v\n", err)
	return exitWithCode(code, err)
}
