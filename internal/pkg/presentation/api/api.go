// Package api exposes the catalog to the host page tooling over HTTP. This
// is the boundary the (external) UI widgets call into; everything behind it
// is headless.
package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/go-chi/chi/v5"
	"github.com/openmetalab/metasync/internal/pkg/application/catalog"
	"github.com/openmetalab/metasync/internal/pkg/presentation/api/auth"
	"go.opentelemetry.io/otel/trace"
)

func RegisterHandlers(ctx context.Context, r *chi.Mux, policies io.Reader, app catalog.Catalog) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	logger := logging.GetFromContext(ctx)

	r.Route("/api/v1/catalog/{originKey}", func(r chi.Router) {
		r.Use(
			Logger(logger),
			RequiredContentTypes([]string{"application/json"}),
		)

		r.Post("/search", NewSearchHandler(app, authenticator))
		r.Post("/resolve", NewResolveHandler(app, authenticator))
		r.Post("/refresh", NewRefreshHandler(app, authenticator))
		r.Get("/status", NewStatusHandler(app, authenticator))

		r.Post("/classes/{classId}/truncate", NewTruncateClassHandler(app, authenticator))
	})

	return nil
}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}
