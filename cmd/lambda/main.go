// Command lambda serves the guild API behind API Gateway HTTP APIs.
package main

import (
	"context"
	"log"
	"strings"
	"time"

	"guildhall-backend/internal/config"
	"guildhall-backend/internal/di"
	"guildhall-backend/internal/middleware"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"go.uber.org/zap"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	container *di.Container
)

// identityHeaders may only be set by this entry point. Client supplied
// copies are removed before the request reaches the router.
var identityHeaders = []string{
	middleware.HeaderGatewayAuthorized,
	middleware.HeaderUserID,
	middleware.HeaderUserEmail,
	middleware.HeaderUserName,
	middleware.HeaderUserRoles,
}

// setup runs once per cold start.
func setup() {
	coldStartTime := time.Now()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// The gateway authorizer is the identity source in Lambda.
	cfg.Auth.TrustGatewayHeaders = true

	// Background sweepers live as long as the execution environment.
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := container.Repositories.Ping(ctx); err != nil {
			container.Logger.Warn("DynamoDB warm-up failed", zap.Error(err))
		}
	}()

	chiLambda = chiadapter.NewV2(container.Router)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)),
		zap.String("table", cfg.AWS.TableName),
	)
}

// applyGatewayIdentity copies the JWT authorizer claims into the identity
// headers the router trusts. It reports whether the request was authorized.
func applyGatewayIdentity(req *events.APIGatewayV2HTTPRequest) bool {
	if req.Headers == nil {
		req.Headers = map[string]string{}
	}
	for key := range req.Headers {
		for _, h := range identityHeaders {
			if strings.EqualFold(key, h) {
				delete(req.Headers, key)
			}
		}
	}

	authorizer := req.RequestContext.Authorizer
	if authorizer == nil {
		return false
	}

	var userID, email, name, roles string
	switch {
	case authorizer.JWT != nil:
		claims := authorizer.JWT.Claims
		userID, email, name = claims["sub"], claims["email"], claims["name"]
		roles = strings.Trim(claims["cognito:groups"], "[]")
	case authorizer.Lambda != nil:
		userID, _ = authorizer.Lambda["sub"].(string)
		email, _ = authorizer.Lambda["email"].(string)
		name, _ = authorizer.Lambda["name"].(string)
		roles, _ = authorizer.Lambda["role"].(string)
	}
	if userID == "" {
		return false
	}

	req.Headers[middleware.HeaderGatewayAuthorized] = "true"
	req.Headers[middleware.HeaderUserID] = userID
	if email != "" {
		req.Headers[middleware.HeaderUserEmail] = email
	}
	if name != "" {
		req.Headers[middleware.HeaderUserName] = name
	}
	if roles = strings.Join(strings.Fields(roles), ","); roles != "" {
		req.Headers[middleware.HeaderUserRoles] = roles
	}
	return true
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	authorized := applyGatewayIdentity(&req)
	container.Logger.Debug("Lambda received request",
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Bool("gateway_authorized", authorized),
	)
	return chiLambda.ProxyWithContextV2(ctx, req)
}

func main() {
	setup()
	lambda.Start(Handler)
}
