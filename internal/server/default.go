package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/provisioning-sdk/pkg/application"
	"github.com/iota-uz/provisioning-sdk/pkg/configuration"
	"github.com/iota-uz/provisioning-sdk/pkg/httpapi"
	"github.com/iota-uz/provisioning-sdk/pkg/metrics"
	"github.com/iota-uz/provisioning-sdk/pkg/middleware"
	"github.com/iota-uz/provisioning-sdk/pkg/routing"
	"github.com/iota-uz/provisioning-sdk/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
}

// Classifier pins the ops endpoints; every "/<module>/api" path is
// recognised as an internal API by pattern.
func Classifier(conf *configuration.Configuration) *routing.Classifier {
	rules := []routing.Rule{
		{Prefix: metrics.HealthPath, Class: routing.RouteClassOps},
	}
	if conf.Prometheus.Enabled {
		rules = append(rules, routing.Rule{Prefix: conf.Prometheus.Path, Class: routing.RouteClassOps})
	}
	return routing.NewClassifier(rules...)
}

func Default(options *DefaultOptions) (*server.HTTPServer, error) {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.Classifier = Classifier(conf)

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, loggerOpts), // creates the root span for each request

		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.CORS.AllowedOrigins...),
	}

	if conf.RateLimit.Enabled {
		var store limiter.Store
		var err error

		switch conf.RateLimit.Storage {
		case "redis":
			store, err = middleware.NewRedisStore(conf.RateLimit.RedisURL)
			if err != nil {
				options.Logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
				store = middleware.NewMemoryStore()
			}
		default:
			store = middleware.NewMemoryStore()
		}

		middlewares = append(middlewares,
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: conf.RateLimit.GlobalRPS,
				Store:             store,
			}),
		)
	}

	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(app, NotFound(), MethodNotAllowed()), nil
}

func NotFound() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found", httpapi.RequestMeta(r))
	})
}

func MethodNotAllowed() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpapi.WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", httpapi.RequestMeta(r))
	})
}
