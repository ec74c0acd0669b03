package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/go-chi/chi/v5"
	"github.com/openmetalab/metasync/internal/pkg/application/catalog"
	"github.com/openmetalab/metasync/internal/pkg/presentation/api/auth"
	mserrors "github.com/openmetalab/metasync/pkg/metadata/errors"
	"github.com/openmetalab/metasync/pkg/metadata/resolve"
	"github.com/openmetalab/metasync/pkg/metadata/search"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("metasync/api")

func NewSearchHandler(app catalog.Catalog, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "search-metadata")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFromSpan(span)
		originKey := chi.URLParam(r, "originKey")

		if err = authenticator.CheckAccess(ctx, r, originKey); err != nil {
			mserrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		params := search.Params{}
		if err = json.NewDecoder(r.Body).Decode(&params); err != nil {
			mserrors.ReportNewBadRequestData(w, "unable to decode request payload: "+err.Error(), traceID)
			return
		}

		result, err := app.Search(ctx, originKey, params)
		if err != nil {
			reportError(w, err, traceID)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func NewResolveHandler(app catalog.Catalog, authenticator auth.Enticator) http.HandlerFunc {
	type resolveResponse struct {
		Resolved any           `json:"resolved"`
		Gaps     []resolve.Gap `json:"gaps"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "resolve-template")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFromSpan(span)
		originKey := chi.URLParam(r, "originKey")

		if err = authenticator.CheckAccess(ctx, r, originKey); err != nil {
			mserrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		var payload any
		if err = json.NewDecoder(r.Body).Decode(&payload); err != nil {
			mserrors.ReportNewBadRequestData(w, "unable to decode request payload: "+err.Error(), traceID)
			return
		}

		resolved, gaps, err := app.ResolveTemplate(ctx, originKey, payload)
		if err != nil {
			reportError(w, err, traceID)
			return
		}

		if gaps == nil {
			gaps = []resolve.Gap{}
		}

		writeJSON(w, http.StatusOK, resolveResponse{Resolved: resolved, Gaps: gaps})
	}
}

func NewRefreshHandler(app catalog.Catalog, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "refresh-metadata")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFromSpan(span)
		originKey := chi.URLParam(r, "originKey")

		if err = authenticator.CheckAccess(ctx, r, originKey); err != nil {
			mserrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		if err = app.Refresh(ctx, originKey); err != nil {
			reportError(w, err, traceID)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func NewStatusHandler(app catalog.Catalog, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "metadata-status")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFromSpan(span)
		originKey := chi.URLParam(r, "originKey")

		if err = authenticator.CheckAccess(ctx, r, originKey); err != nil {
			mserrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		status, err := app.Status(ctx, originKey)
		if err != nil {
			reportError(w, err, traceID)
			return
		}

		writeJSON(w, http.StatusOK, status)
	}
}

func NewTruncateClassHandler(app catalog.Catalog, authenticator auth.Enticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx, span := tracer.Start(r.Context(), "truncate-class")
		defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

		traceID := traceIDFromSpan(span)
		originKey := chi.URLParam(r, "originKey")

		if err = authenticator.CheckAccess(ctx, r, originKey); err != nil {
			mserrors.ReportUnauthorizedRequest(w, "access denied", traceID)
			return
		}

		classID, err := strconv.ParseInt(chi.URLParam(r, "classId"), 10, 64)
		if err != nil {
			mserrors.ReportNewBadRequestData(w, "class id must be an integer", traceID)
			return
		}

		result, err := app.TruncateClass(ctx, originKey, classID)
		if err != nil {
			reportError(w, err, traceID)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func reportError(w http.ResponseWriter, err error, traceID string) {
	if errors.Is(err, mserrors.ErrUnknownOrigin) || errors.Is(err, mserrors.ErrNotFound) {
		mserrors.ReportNotFoundError(w, err.Error(), traceID)
		return
	}

	mserrors.ReportNewInternalError(w, err.Error(), traceID)
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	b, err := json.Marshal(body)
	if err != nil {
		mserrors.ReportNewInternalError(w, "failed to marshal response", "")
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(b)
}

func traceIDFromSpan(span trace.Span) string {
	if !span.SpanContext().HasTraceID() {
		return ""
	}

	return span.SpanContext().TraceID().String()
}
