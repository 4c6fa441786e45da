package main

import (
	"testing"

	"guildhall-backend/internal/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
)

func TestApplyGatewayIdentityFromJWTAuthorizer(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"content-type": "application/json"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
					Claims: map[string]string{
						"sub":            "user-a",
						"email":          "a@example.com",
						"cognito:groups": "[admin moderators]",
					},
				},
			},
		},
	}

	assert.True(t, applyGatewayIdentity(&req))
	assert.Equal(t, "true", req.Headers[middleware.HeaderGatewayAuthorized])
	assert.Equal(t, "user-a", req.Headers[middleware.HeaderUserID])
	assert.Equal(t, "a@example.com", req.Headers[middleware.HeaderUserEmail])
	assert.Equal(t, "admin,moderators", req.Headers[middleware.HeaderUserRoles])
	assert.NotContains(t, req.Headers, middleware.HeaderUserName)
	assert.Equal(t, "application/json", req.Headers["content-type"])
}

func TestApplyGatewayIdentityFromLambdaAuthorizer(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				Lambda: map[string]interface{}{"sub": "user-b", "name": "Misty", "role": "member"},
			},
		},
	}

	assert.True(t, applyGatewayIdentity(&req))
	assert.Equal(t, "user-b", req.Headers[middleware.HeaderUserID])
	assert.Equal(t, "Misty", req.Headers[middleware.HeaderUserName])
	assert.Equal(t, "member", req.Headers[middleware.HeaderUserRoles])
}

func TestApplyGatewayIdentityStripsSpoofedHeaders(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{
			"x-api-gateway-authorized": "true",
			"x-user-id":                "mod-1",
			"X-User-Roles":             "admin",
			"authorization":            "Bearer abc",
		},
	}

	assert.False(t, applyGatewayIdentity(&req))
	assert.Equal(t, map[string]string{"authorization": "Bearer abc"}, req.Headers)
}

func TestApplyGatewayIdentityWithoutSubject(t *testing.T) {
	req := events.APIGatewayV2HTTPRequest{
		Headers: map[string]string{"x-user-id": "spoofed"},
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			Authorizer: &events.APIGatewayV2HTTPRequestContextAuthorizerDescription{
				JWT: &events.APIGatewayV2HTTPRequestContextAuthorizerJWTDescription{
					Claims: map[string]string{"email": "nobody@example.com"},
				},
			},
		},
	}

	assert.False(t, applyGatewayIdentity(&req))
	assert.Empty(t, req.Headers)
}
