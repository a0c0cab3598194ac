package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestLimitKeyUsesActorWhenAuthenticated(t *testing.T) {
	actor := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	req.RemoteAddr = "10.1.2.3:55000"
	req = req.WithContext(context.WithValue(req.Context(), ctxActorIDKey, actor))

	assert.Equal(t, "ratelimit:10.1.2.3:"+actor.String(), limitKey(req))
}

func TestLimitKeyFallsBackToClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/operations", nil)
	req.RemoteAddr = "10.1.2.3:55000"

	assert.Equal(t, "ratelimit:10.1.2.3", limitKey(req))
}
