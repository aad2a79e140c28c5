package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/portfolio-risk/internal/types"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantCategory ErrorCategory
		wantStatus   int
	}{
		{"validation", NewValidationError("thresholds", "low must be below high"), CategoryValidation, http.StatusBadRequest},
		{"unsupported chain", NewUnsupportedChainError("tron"), CategoryValidation, http.StatusBadRequest},
		{"wrapped provider", fmt.Errorf("resolve: %w", NewProviderError("coingecko", nil)), CategoryProvider, http.StatusBadGateway},
		{"service error", &types.ServiceError{Code: "ALERT_NOT_FOUND", Message: "missing"}, CategoryNotFound, http.StatusNotFound},
		{"plain error", fmt.Errorf("boom"), CategorySystem, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catErr := Categorize(tt.err)
			assert.Equal(t, tt.wantCategory, catErr.Category)
			assert.Equal(t, tt.wantStatus, GetHTTPStatusCode(tt.err))
		})
	}

	assert.Nil(t, Categorize(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewProviderTimeoutError("coingecko")))
	assert.True(t, IsRetryable(NewCacheError("get", nil)))
	assert.True(t, IsRetryable(NewServiceUnavailableError("rpc")))
	assert.False(t, IsRetryable(NewValidationError("symbol", "required")))
	assert.False(t, IsRetryable(NewInternalError("bug", nil)))
	assert.False(t, IsRetryable(NewChainNotConfiguredError(types.ChainSolana, nil)))
}

func TestNewChainNotConfiguredError(t *testing.T) {
	cause := fmt.Errorf("chain not configured")
	err := NewChainNotConfiguredError(types.ChainSolana, cause)

	assert.Equal(t, http.StatusNotImplemented, GetHTTPStatusCode(err))
	assert.True(t, IsSystemError(err))
	assert.False(t, IsUserError(err))
	assert.ErrorIs(t, err, cause)
}

func TestValidationHelpers(t *testing.T) {
	addrErr := NewInvalidAddressError("0x123", types.ChainEthereum)
	assert.True(t, IsValidationError(addrErr))
	assert.True(t, IsUserError(addrErr))
	assert.False(t, IsSystemError(addrErr))

	provErr := NewProviderError("rpc", fmt.Errorf("dial tcp"))
	assert.True(t, IsProviderError(provErr))
	assert.True(t, IsSystemError(provErr))
	assert.Contains(t, provErr.Error(), "dial tcp")

	svc := NewUnsupportedChainError("tron").ToServiceError()
	assert.Equal(t, "UNSUPPORTED_CHAIN", svc.Code)
	assert.Equal(t, "tron", svc.Details["chain"])
}
