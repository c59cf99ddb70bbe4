package openai

import (
	"context"
	"errors"
	"net"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/cloo-solutions/newsweave/internal/domain"
)

// Classify maps a go-openai error onto the provider error taxonomy. Rate
// limits, server errors, timeouts and network failures are transient;
// everything else is permanent.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var de *domain.DomainError
	if errors.As(err, &de) && (de.Code == domain.ErrCodeTransientProvider || de.Code == domain.ErrCodePermanentProvider) {
		return err
	}
	if isTransient(err) {
		return domain.NewTransientProviderError(err)
	}
	return domain.NewPermanentProviderError(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}
