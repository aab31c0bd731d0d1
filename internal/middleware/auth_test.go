package middleware

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/miniconomy2025/sumsang-phones/pkg/httpcontext"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims, key string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func call(guard func(fasthttp.RequestHandler) fasthttp.RequestHandler, auth string) (*fasthttp.RequestCtx, string) {
	var operator string
	handler := guard(func(ctx *fasthttp.RequestCtx) {
		operator = httpcontext.Operator(ctx)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})
	ctx := &fasthttp.RequestCtx{}
	if auth != "" {
		ctx.Request.Header.Set("Authorization", auth)
	}
	handler(ctx)
	return ctx, operator
}

func TestJWTAuthAcceptsValidToken(t *testing.T) {
	guard := JWTAuth(secret, "sumsang-phones", nil)
	token := sign(t, jwt.MapClaims{
		"sub": "ops",
		"iss": "sumsang-phones",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, secret)

	ctx, operator := call(guard, "Bearer "+token)
	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "ops", operator)
}

func TestJWTAuthRejects(t *testing.T) {
	guard := JWTAuth(secret, "sumsang-phones", nil)

	cases := map[string]string{
		"missing":      "",
		"wrong secret": "Bearer " + sign(t, jwt.MapClaims{"iss": "sumsang-phones"}, "other"),
		"expired":      "Bearer " + sign(t, jwt.MapClaims{"iss": "sumsang-phones", "exp": time.Now().Add(-time.Hour).Unix()}, secret),
		"wrong issuer": "Bearer " + sign(t, jwt.MapClaims{"iss": "someone-else"}, secret),
	}
	for name, auth := range cases {
		t.Run(name, func(t *testing.T) {
			ctx, _ := call(guard, auth)
			assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())
			assert.Contains(t, string(ctx.Response.Body()), "UNAUTHORIZED")
		})
	}
}
