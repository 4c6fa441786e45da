package errors

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

const hiddenInternalMessage = "An internal error occurred"

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error     bool                   `json:"error"`
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Code      string                 `json:"code,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// ErrorHandler turns service errors into HTTP responses. In debug mode the
// raw message of unclassified errors and any captured stack are exposed.
type ErrorHandler struct {
	logger *zap.Logger
	debug  bool
}

func NewErrorHandler(logger *zap.Logger, debug bool) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{logger: logger, debug: debug}
}

// Handle writes the response for err. A nil err writes nothing.
func (h *ErrorHandler) Handle(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	requestID := requestIDFor(w, r)

	appErr := GetAppError(err)
	if appErr == nil {
		h.logger.Error("Unhandled error",
			zap.Error(err),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", requestID),
		)
		body := ErrorResponse{Error: true, Type: string(ErrorTypeInternal), Message: hiddenInternalMessage, RequestID: requestID}
		if h.debug {
			body.Message = err.Error()
		}
		h.write(w, http.StatusInternalServerError, body)
		return
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	h.logAppError(r, appErr, status, requestID)

	if appErr.Retryable() {
		w.Header().Set("Retry-After", "1")
	}
	h.write(w, status, h.bodyFor(appErr, requestID))
}

func (h *ErrorHandler) bodyFor(appErr *AppError, requestID string) ErrorResponse {
	body := ErrorResponse{
		Error:     true,
		Type:      string(appErr.Type),
		Message:   appErr.Message,
		Code:      appErr.Code,
		Retryable: appErr.Retryable(),
		Details:   appErr.Details,
		RequestID: requestID,
	}
	if !h.debug || appErr.StackTrace == "" {
		return body
	}
	details := make(map[string]interface{}, len(appErr.Details)+1)
	for k, v := range appErr.Details {
		details[k] = v
	}
	details["stack_trace"] = appErr.StackTrace
	body.Details = details
	return body
}

// requestIDFor prefers the id the request id middleware echoed on the response.
func requestIDFor(w http.ResponseWriter, r *http.Request) string {
	if id := w.Header().Get("X-Request-ID"); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

func (h *ErrorHandler) logAppError(r *http.Request, err *AppError, status int, requestID string) {
	fields := []zap.Field{
		zap.String("error_type", string(err.Type)),
		zap.String("code", err.Code),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("request_id", requestID),
	}
	if err.Cause != nil {
		fields = append(fields, zap.Error(err.Cause))
	}

	log := h.logger.Info
	if status >= 500 {
		log = h.logger.Error
	} else if status >= 400 {
		log = h.logger.Warn
	}
	log(err.Message, fields...)
}

func (h *ErrorHandler) write(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("Failed to encode error response", zap.Error(err))
	}
}
