package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	FlowErrorBadInput         = "FLOW_BAD_INPUT"
	FlowErrorUnknownState     = "FLOW_UNKNOWN_STATE"
	FlowErrorExpired          = "FLOW_EXPIRED"
	FlowErrorEmptyAuthURL     = "FLOW_EMPTY_AUTHORIZATION_URL"
	FlowErrorInvalidAuthURL   = "FLOW_INVALID_AUTHORIZATION_URL"
	FlowErrorExchangeFailed   = "FLOW_EXCHANGE_FAILED"
	FlowErrorPersistence      = "FLOW_PERSISTENCE_FAILED"
	FlowErrorDispatchCanceled = "FLOW_DISPATCH_CANCELED"
	FlowErrorInternal         = "FLOW_INTERNAL_ERROR"
)

var (
	// ErrUnknownState covers both a forged state and a crashed or cleared
	// durable store; callers cannot distinguish the two.
	ErrUnknownState = errors.New("core: no pending authorization for state")
	// ErrFlowExpired is raised when the pending authorization outlived its TTL.
	ErrFlowExpired = errors.New("core: pending authorization expired")
	// ErrEmptyAuthorizationURL is raised when the authorize collaborator
	// returns a blank or missing URL.
	ErrEmptyAuthorizationURL = errors.New("core: authorize endpoint returned empty authorization url")
	// ErrInvalidAuthorizationURL is raised for a malformed authorization URL.
	ErrInvalidAuthorizationURL = errors.New("core: authorize endpoint returned invalid authorization url")
	// ErrExchangeFailed wraps a non-success token-endpoint response; the
	// response body rides through verbatim.
	ErrExchangeFailed = errors.New("core: token exchange failed")
	// ErrPersistenceFailed is raised only for writes through host hooks;
	// silent loss of a credential is worse than a visible error.
	ErrPersistenceFailed = errors.New("core: credential persistence failed")
	// ErrDispatchCanceled is raised when the browser leg ends without a
	// completion signal: the user closed the popup or the context was
	// canceled while waiting.
	ErrDispatchCanceled = errors.New("core: authorization dispatch canceled")
)

func flowErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureFlowErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrUnknownState):
		return newFlowError(err.Error(), goerrors.CategoryAuth, FlowErrorUnknownState)
	case errors.Is(err, ErrFlowExpired):
		return newFlowError(err.Error(), goerrors.CategoryAuth, FlowErrorExpired)
	case errors.Is(err, ErrEmptyAuthorizationURL):
		return newFlowError(err.Error(), goerrors.CategoryOperation, FlowErrorEmptyAuthURL)
	case errors.Is(err, ErrInvalidAuthorizationURL):
		return newFlowError(err.Error(), goerrors.CategoryOperation, FlowErrorInvalidAuthURL)
	case errors.Is(err, ErrExchangeFailed):
		return newFlowError(err.Error(), goerrors.CategoryOperation, FlowErrorExchangeFailed)
	case errors.Is(err, ErrPersistenceFailed):
		return newFlowError(err.Error(), goerrors.CategoryInternal, FlowErrorPersistence)
	case errors.Is(err, ErrDispatchCanceled):
		return newFlowError(err.Error(), goerrors.CategoryOperation, FlowErrorDispatchCanceled)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newFlowError(err.Error(), goerrors.CategoryBadInput, FlowErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureFlowErrorEnvelope(mapped)
}

func newFlowError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureFlowErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureFlowErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = flowHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultFlowTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultFlowTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return FlowErrorBadInput
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return FlowErrorUnknownState
	case goerrors.CategoryOperation:
		return FlowErrorExchangeFailed
	default:
		return FlowErrorInternal
	}
}

func flowHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
