package ranking

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConfigInvalid indicates that the endpoint of the ranking service could not be parsed.
	ErrConfigInvalid = errors.New("http offer set endpoint is malformed")

	// ErrIOFailure indicates that the request could not be sent, timed out, or produced an empty response.
	ErrIOFailure = errors.New("failed to exchange ranking request with the ranking service")

	// ErrMalformedResponse indicates that the response could not be parsed or is missing required fields.
	ErrMalformedResponse = errors.New("ranking response is malformed")

	// ErrRankingService indicates that the ranking service reported an error. Use errors.As with a
	// *ServiceError to retrieve the message.
	ErrRankingService = errors.New("ranking service reported an error")

	// ErrPermanentlyDisabled is never returned to callers. It labels requests that fell back because
	// external ranking has been switched off.
	ErrPermanentlyDisabled = errors.New("external offer ranking is permanently disabled")
)

// ServiceError is the error reported by the ranking service in the error field of its response.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRankingService.Error(), e.Message)
}

// Is makes errors.Is(err, ErrRankingService) true for every ServiceError.
func (e *ServiceError) Is(target error) bool {
	return target == ErrRankingService
}

// FailureKind returns the label under which the given error is counted.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrConfigInvalid):
		return "config_invalid"
	case errors.Is(err, ErrIOFailure):
		return "io_failure"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrRankingService):
		return "ranking_service_error"
	case errors.Is(err, ErrPermanentlyDisabled):
		return "permanently_disabled"
	default:
		return "unknown"
	}
}
