package resilience

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/custodia-labs/ctxexport/internal/core/domain"
)

// StatusCoder is implemented by errors carrying an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryAfterer is implemented by errors carrying a Retry-After hint.
type RetryAfterer interface {
	RetryAfter() time.Duration
}

type timeoutError interface {
	Timeout() bool
}

// Classify maps an error to its handling class using the default retryable statuses.
func Classify(err error) domain.ErrorClass {
	return classify(err, statusSet(domain.DefaultRetryStatusCodes()))
}

func classify(err error, retryable map[int]bool) domain.ErrorClass {
	switch {
	case err == nil:
		return domain.ClassPermanent
	case errors.Is(err, context.Canceled):
		return domain.ClassCancelled
	case errors.Is(err, domain.ErrCircuitOpen):
		return domain.ClassCircuitOpen
	case errors.Is(err, domain.ErrRateLimitTimeout):
		return domain.ClassTransient
	case errors.Is(err, domain.ErrItemSkipped):
		return domain.ClassPermanent
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		if retryable[sc.HTTPStatus()] {
			return domain.ClassTransient
		}
		return domain.ClassPermanent
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ClassTransient
	}

	var te timeoutError
	if errors.As(err, &te) && te.Timeout() {
		return domain.ClassTransient
	}

	switch {
	case errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return domain.ClassTransient
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.ClassTransient
	}
	return domain.ClassPermanent
}

func statusSet(codes []int) map[int]bool {
	set := make(map[int]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// httpStatus returns the status carried by err, or 0.
func httpStatus(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

func retryAfter(err error) time.Duration {
	var ra RetryAfterer
	if errors.As(err, &ra) {
		return ra.RetryAfter()
	}
	return 0
}
