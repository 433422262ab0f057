// Package errors provides error wrapping utilities for consistent error handling.
package errors

import (
	"errors"
	"fmt"
)

// Stage names the step of a command that failed.
type Stage string

const (
	StageDatabase Stage = "database"
	StageRegistry Stage = "registry"
	StageLookup   Stage = "lookup"
	StageInput    Stage = "input"
	StageValidate Stage = "validate"
	StageCaptcha  Stage = "captcha"
	StageLogin    Stage = "login"
	StageFetch    Stage = "fetch"
	StageSync     Stage = "sync"
	StageSnapshot Stage = "snapshot"
)

// Wrapper attaches a stage, and optionally an institution, to errors
// together with the message shown to the user.
type Wrapper struct {
	stage       Stage
	institution string
}

// At starts a Wrapper for stage.
func At(stage Stage) Wrapper {
	return Wrapper{stage: stage}
}

// For returns a copy of w tied to institution.
func (w Wrapper) For(institution string) Wrapper {
	w.institution = institution
	return w
}

// Wrap returns nil if err is nil.
func (w Wrapper) Wrap(err error, userMessage string) error {
	if err == nil {
		return nil
	}
	return &UserError{
		Stage:       w.stage,
		Institution: w.institution,
		Cause:       err,
		UserMessage: userMessage,
	}
}

// Wrapf is Wrap with a formatted message.
func (w Wrapper) Wrapf(err error, userMessageFormat string, args ...any) error {
	return w.Wrap(err, fmt.Sprintf(userMessageFormat, args...))
}

// UserError keeps the internal cause next to the message a user sees.
type UserError struct {
	Stage       Stage
	Institution string // empty when the failure is not tied to a portal
	Cause       error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Institution == "" {
		return fmt.Sprintf("[%s] %s: %v", e.Stage, e.UserMessage, e.Cause)
	}
	return fmt.Sprintf("[%s institution=%s] %s: %v", e.Stage, e.Institution, e.UserMessage, e.Cause)
}

func (e *UserError) Unwrap() error {
	return e.Cause
}

// GetUserMessage returns the outermost user message in err's chain, or
// err's own text when there is none.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.UserMessage
	}
	return err.Error()
}

// StageOf returns the stage and institution recorded on err, if any.
func StageOf(err error) (Stage, string, bool) {
	var ue *UserError
	if !errors.As(err, &ue) {
		return "", "", false
	}
	return ue.Stage, ue.Institution, true
}
