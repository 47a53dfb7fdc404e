package app

import (
	"github.com/tphakala/birdtarifa/internal/api"
	"github.com/tphakala/birdtarifa/internal/errors"
	"github.com/tphakala/birdtarifa/internal/render"
)

// ReportedError marks an error that has already been shown to the user.
type ReportedError struct {
	Err error
}

func (e *ReportedError) Error() string { return e.Err.Error() }

func (e *ReportedError) Unwrap() error { return e.Err }

// IsReported reports whether err was already rendered.
func IsReported(err error) bool {
	var reported *ReportedError
	return errors.As(err, &reported)
}

// Fail renders msg, or the message of err when msg is empty, as an error
// banner and marks err as reported.
func (a *App) Fail(err error, msg string) error {
	if err == nil {
		return nil
	}
	if msg == "" {
		msg = api.Message(err)
	}
	a.Out.Banner(render.BannerError, msg)
	return &ReportedError{Err: err}
}
