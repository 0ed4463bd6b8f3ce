package runtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdalberg/acs/internal/cwmp"
	"github.com/jdalberg/acs/internal/runtime/dispatch"
	errspkg "github.com/jdalberg/acs/internal/runtime/errors"
	idspkg "github.com/jdalberg/acs/internal/runtime/ids"
	loggingpkg "github.com/jdalberg/acs/internal/runtime/logging"
	sessionpkg "github.com/jdalberg/acs/internal/runtime/session"
)

// Routes served to devices.
const (
	InformPath = "/acs"
	HelloPath  = "/hello"
)

// CorrelationIDHeader lets a caller pick the correlation id of its request.
const CorrelationIDHeader = "X-Correlation-ID"

// Response bodies of the device-facing routes.
const (
	helloBody            = "Hello, world!"
	bodyParseError       = "Error parsing XML"
	bodyNotInform        = "Not an Inform message"
	bodyTransformError   = "Error parsing inform message"
	bodyTooLarge         = "Request body too large"
	bodyChannelSendError = "Channel send failed"
	bodyInternalError    = "Internal server error"
)

// ingressHandler turns posted envelopes into queued session events.
type ingressHandler struct {
	transformer *sessionpkg.Transformer
	multiple    sessionpkg.MultipleInformPolicy
	queue       *dispatch.Queue[QueuedEvent]
	sendTimeout time.Duration
	maxBody     int64
	metrics     *BridgeMetrics
	logger      loggingpkg.ServiceLogger
}

func (h *ingressHandler) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+InformPath, h.handleInform)
	mux.HandleFunc("GET "+HelloPath, handleHello)
	return recoverHTTP(h.logger, mux)
}

func handleHello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, helloBody)
}

func (h *ingressHandler) handleInform(w http.ResponseWriter, r *http.Request) {
	receivedAt := time.Now()
	correlationID := r.Header.Get(CorrelationIDHeader)
	if correlationID == "" {
		correlationID = idspkg.NewCorrelationID()
	}

	ctx, span := tracer.Start(r.Context(), "HandleInform",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("acs.correlation_id", correlationID)),
	)
	defer span.End()

	log := h.logger.With(loggingpkg.LogFields{"correlation_id": correlationID})
	reject := func(status int, body, outcome string, err error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		h.metrics.RecordInform(outcome)
		log.Info("Rejected inform", loggingpkg.LogFields{
			"status":  status,
			"outcome": outcome,
			"error":   err.Error(),
		})
		http.Error(w, body, status)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(http.StatusRequestEntityTooLarge, bodyTooLarge, InformParseError, err)
			return
		}
		reject(http.StatusBadRequest, bodyParseError, InformParseError, err)
		return
	}

	env, err := cwmp.ParseBytes(body)
	if err != nil {
		reject(http.StatusBadRequest, bodyParseError, InformParseError, err)
		return
	}
	if !env.IsInform() {
		reject(http.StatusBadRequest, bodyNotInform, InformNotInform, errors.New("first body element is "+env.Method()))
		return
	}

	event, err := h.transformer.Transform(env)
	if err != nil {
		outcome := InformTransformError
		if errors.Is(err, errspkg.ErrMultipleInforms) || errors.Is(err, errspkg.ErrInvalidDeviceID) {
			outcome = InformRejected
		}
		reject(http.StatusBadRequest, bodyTransformError, outcome, err)
		return
	}
	if n := len(env.Informs()); n > 1 && h.multiple == sessionpkg.UseFirstInform {
		log.Debug("Ignoring additional informs in envelope", loggingpkg.LogFields{"informs": n})
	}

	log = log.With(loggingpkg.LogFields{"session_id": event.SessionID})
	span.SetAttributes(attribute.String("acs.session_id", event.SessionID))

	sendCtx := ctx
	if h.sendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, h.sendTimeout)
		defer cancel()
	}

	item := QueuedEvent{Event: event, CorrelationID: correlationID, ReceivedAt: receivedAt}
	if err := h.queue.Send(sendCtx, item); err != nil {
		reject(http.StatusRequestTimeout, bodyChannelSendError, InformTimeout, err)
		return
	}

	h.metrics.SetQueueDepth(h.queue.Len())
	h.metrics.RecordInform(InformAccepted)
	log.Debug("Queued session event", loggingpkg.LogFields{
		"events":     len(event.Events),
		"parameters": len(event.Parameters),
	})
	w.WriteHeader(http.StatusOK)
}

// recoverHTTP answers 500 when a handler panics instead of dropping the
// connection.
func recoverHTTP(logger loggingpkg.ServiceLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("Recovered panic in HTTP handler", errors.New("panic"), loggingpkg.LogFields{
				"panic":  rec,
				"path":   r.URL.Path,
				"method": r.Method,
				"stack":  string(debug.Stack()),
			})
			http.Error(w, bodyInternalError, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
