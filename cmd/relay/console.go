package main

import (
	"errors"
	"fmt"
	"io"

	"manifest-relay/internal/relay"
	apperrors "manifest-relay/pkg/errors"
)

// consoleObserver draws the same three-digit percentage the sheet loader
// shows, rewriting one terminal line.
type consoleObserver struct {
	out  io.Writer
	last int
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out, last: -1}
}

func (o *consoleObserver) Started(total int) {
	fmt.Fprintf(o.out, "Starting upload of %d rows...\n", total)
}

func (o *consoleObserver) Progress(p relay.Progress) {
	if p.Percent == o.last {
		return
	}
	o.last = p.Percent
	fmt.Fprintf(o.out, "\r%s%% (%d/%d)", padPercent(p.Percent), p.Sent, p.Total)
}

func (o *consoleObserver) Completed(total int) {
	fmt.Fprintf(o.out, "\nUploaded %d rows.\n", total)
}

// Failed only ends the progress line; main prints the error itself.
func (o *consoleObserver) Failed(err error) {
	if o.last >= 0 {
		fmt.Fprintln(o.out)
	}
}

func padPercent(p int) string {
	return fmt.Sprintf("%03d", p)
}

// describe turns pipeline errors into the operator-facing message.
func describe(err error) string {
	var relayErr apperrors.RelayError
	switch {
	case errors.As(err, &relayErr):
		return fmt.Sprintf("Error during upload at row %d: %v. Upload stopped.", relayErr.Row, relayErr.Err)
	case errors.Is(err, apperrors.ErrRunCancelled):
		return fmt.Sprintf("Upload cancelled: %v", err)
	case errors.Is(err, apperrors.ErrMissingSheet):
		return fmt.Sprintf("Are you sure you used the correct file? %v", err)
	case errors.Is(err, apperrors.ErrInvalidFileFormat), errors.Is(err, apperrors.ErrDecodeFailed):
		return fmt.Sprintf("An error occurred while processing the file: %v. Please ensure the file format is correct.", err)
	}
	return fmt.Sprintf("Error: %v", err)
}
