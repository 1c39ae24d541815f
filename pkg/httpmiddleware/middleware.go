// Package httpmiddleware contains net/http middlewares shared by the HTTP
// servers: panic recovery, rate limiting, request ids, logging and
// OpenTelemetry instrumentation.
package httpmiddleware

import (
	"net/http"
	"strings"

	"github.com/felixge/httpsnoop"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Middleware is a net/http middleware.
type Middleware func(http.Handler) http.Handler

// Wrap applies middlewares to h. The first middleware is the outermost.
func Wrap(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// Route is a registered route pattern. Path segments starting with ':' match
// any single segment and a segment starting with '*' matches the remainder.
type Route struct {
	Method string
	Path   string
}

// RouteFinder resolves the route pattern serving a request.
type RouteFinder func(r *http.Request) (Route, bool)

// MakeRouteFinder returns a RouteFinder over routes. Static segments win over
// parameters when several patterns match.
func MakeRouteFinder(routes []Route) RouteFinder {
	type compiled struct {
		route    Route
		segments []string
		static   int
	}
	byMethod := make(map[string][]compiled)
	for _, rt := range routes {
		segs := splitPath(rt.Path)
		c := compiled{route: rt, segments: segs}
		for _, s := range segs {
			if !strings.HasPrefix(s, ":") && !strings.HasPrefix(s, "*") {
				c.static++
			}
		}
		byMethod[rt.Method] = append(byMethod[rt.Method], c)
	}

	return func(r *http.Request) (Route, bool) {
		path := splitPath(r.URL.Path)
		var (
			best  Route
			score = -1
		)
		for _, c := range byMethod[r.Method] {
			if matchSegments(c.segments, path) && c.static > score {
				best, score = c.route, c.static
			}
		}
		return best, score >= 0
	}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func matchSegments(pattern, path []string) bool {
	for i, seg := range pattern {
		if strings.HasPrefix(seg, "*") {
			return true
		}
		if i >= len(path) {
			return false
		}
		if !strings.HasPrefix(seg, ":") && seg != path[i] {
			return false
		}
	}
	return len(pattern) == len(path)
}

// InjectLogger stores lg, annotated with the request id, in the request
// context for zctx.From.
func InjectLogger(lg *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqLg := lg
			if id := RequestIDFromContext(r.Context()); id != "" {
				reqLg = lg.With(zap.String("request_id", id))
			}
			next.ServeHTTP(w, r.WithContext(zctx.Base(r.Context(), reqLg)))
		})
	}
}

// LogRequests logs every request once it completes.
func LogRequests(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			m := httpsnoop.CaptureMetrics(next, w, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", m.Code),
				zap.Duration("duration", m.Duration),
				zap.Int64("written", m.Written),
			}
			if route, ok := find(r); ok {
				fields = append(fields, zap.String("route", route.Path))
			}

			lg := zctx.From(r.Context())
			switch {
			case m.Code >= http.StatusInternalServerError:
				lg.Warn("Request failed", fields...)
			default:
				lg.Info("Request", fields...)
			}
		})
	}
}

// Telemetry provides the OpenTelemetry providers for instrumentation.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
}

// Instrument wraps the handler with otelhttp server spans and metrics.
// Spans are named after the matched route.
func Instrument(serviceName string, find RouteFinder, t Telemetry) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName,
			otelhttp.WithMeterProvider(t.MeterProvider()),
			otelhttp.WithTracerProvider(t.TracerProvider()),
			otelhttp.WithSpanNameFormatter(func(op string, r *http.Request) string {
				if route, ok := find(r); ok {
					return route.Method + " " + route.Path
				}
				return op
			}),
		)
	}
}

// Labeler adds the matched route to the otelhttp metric labels and the
// current span. It must run inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route, ok := find(r); ok {
				attr := attribute.String("http.route", route.Path)
				if labeler, ok := otelhttp.LabelerFromContext(r.Context()); ok {
					labeler.Add(attr)
				}
				trace.SpanFromContext(r.Context()).SetAttributes(attr)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeError writes the API error envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("success", func(e *jx.Encoder) { e.Bool(false) })
		e.Field("message", func(e *jx.Encoder) { e.Str(message) })
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
