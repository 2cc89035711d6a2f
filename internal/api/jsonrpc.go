package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/golos/golosmind/internal/api/rpc"
	"github.com/golos/golosmind/pkg/logging"
	"github.com/golos/golosmind/pkg/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var null = jsoniter.RawMessage("null")

// JSONRPCRequest represents a JSON-RPC 2.0 request
type JSONRPCRequest struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Method  string              `json:"method"`
	Params  jsoniter.RawMessage `json:"params"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response
type JSONRPCResponse struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      jsoniter.RawMessage `json:"id"`
	Result  jsoniter.RawMessage `json:"result,omitempty"`
	Error   *Error              `json:"error,omitempty"`
}

// JSONRPCHandler dispatches JSON-RPC calls for the HTTP and websocket
// transports.
type JSONRPCHandler struct {
	methods map[string]rpc.Handler
	logger  *zap.Logger
}

func NewJSONRPCHandler() *JSONRPCHandler {
	return &JSONRPCHandler{
		methods: make(map[string]rpc.Handler),
		logger:  logging.WithComponent("jsonrpc"),
	}
}

// RegisterMethod registers handler under a fully qualified "api.method" name.
func (h *JSONRPCHandler) RegisterMethod(method string, handler rpc.Handler) {
	h.methods[method] = handler
}

// Methods lists the registered names in order.
func (h *JSONRPCHandler) Methods() []string {
	out := make([]string, 0, len(h.methods))
	for name := range h.methods {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// resolve returns the qualified method name and its arguments. Besides
// "api.method" it accepts the legacy form call(api, method, args) and bare
// names, which belong to database_api.
func resolve(method string, raw jsoniter.RawMessage) (string, rpc.Params, error) {
	if method == "call" {
		outer, err := rpc.ParseParams(raw)
		if err != nil {
			return "", rpc.Params{}, err
		}
		if err := outer.Require(2, "api", "method"); err != nil {
			return "", rpc.Params{}, err
		}
		api, err := outer.String(0, "api")
		if err != nil {
			return "", rpc.Params{}, err
		}
		name, err := outer.String(1, "method")
		if err != nil {
			return "", rpc.Params{}, err
		}
		params, err := rpc.ParseParams(outer.Raw(2))
		return api + "." + name, params, err
	}
	if !strings.Contains(method, ".") {
		method = "database_api." + method
	}
	params, err := rpc.ParseParams(raw)
	return method, params, err
}

func errorResponse(id jsoniter.RawMessage, err *Error) JSONRPCResponse {
	if len(id) == 0 {
		id = null
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: err}
}

// invoke runs a handler, turning a panic into an error.
func invoke(ctx context.Context, handler rpc.Handler, params rpc.Params) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, params)
}

// Call executes one request.
func (h *JSONRPCHandler) Call(ctx context.Context, req JSONRPCRequest) JSONRPCResponse {
	if req.JSONRPC != "2.0" {
		return errorResponse(req.ID, NewError(ErrInvalidRequest, "Invalid Request"))
	}
	name, params, err := resolve(req.Method, req.Params)
	if err != nil {
		return errorResponse(req.ID, toError(err))
	}
	handler, ok := h.methods[name]
	if !ok {
		return errorResponse(req.ID, &Error{
			Code:    ErrMethodNotFound,
			Message: "Method not found",
			Data:    fmt.Sprintf("method %s not found", name),
		})
	}

	ctx, span := telemetry.StartSpan(ctx, "jsonrpc."+name)
	defer span.End()
	span.SetAttributes(attribute.String("rpc.method", name))

	start := time.Now()
	result, err := invoke(ctx, handler, params)
	telemetry.RecordRequest(ctx, name, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		rpcErr := toError(err)
		if rpcErr.Code == ErrInternalError {
			h.logger.Error("JSON-RPC error", zap.String("method", name), zap.Error(err))
		} else {
			h.logger.Debug("JSON-RPC call rejected", zap.String("method", name), zap.Error(err))
		}
		return errorResponse(req.ID, rpcErr)
	}

	data, err := json.Marshal(result)
	if err != nil {
		h.logger.Error("encode result", zap.String("method", name), zap.Error(err))
		return errorResponse(req.ID, toError(err))
	}
	id := req.ID
	if len(id) == 0 {
		id = null
	}
	return JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: data}
}

// Dispatch decodes a single request or a batch and returns the encoded
// response.
func (h *JSONRPCHandler) Dispatch(ctx context.Context, body []byte) []byte {
	body = bytes.TrimSpace(body)
	var out interface{}
	if len(body) > 0 && body[0] == '[' {
		var batch []jsoniter.RawMessage
		if err := json.Unmarshal(body, &batch); err != nil {
			out = errorResponse(nil, &Error{Code: ErrParseError, Message: "Parse error", Data: err.Error()})
		} else if len(batch) == 0 {
			out = errorResponse(nil, NewError(ErrInvalidRequest, "Invalid Request"))
		} else {
			responses := make([]JSONRPCResponse, 0, len(batch))
			for _, item := range batch {
				responses = append(responses, h.single(ctx, item))
			}
			out = responses
		}
	} else {
		out = h.single(ctx, body)
	}
	data, err := json.Marshal(out)
	if err != nil {
		h.logger.Error("encode response", zap.Error(err))
		data, _ = json.Marshal(errorResponse(nil, NewError(ErrInternalError, "Internal error")))
	}
	return data
}

func (h *JSONRPCHandler) single(ctx context.Context, body []byte) JSONRPCResponse {
	var req JSONRPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return errorResponse(nil, &Error{Code: ErrParseError, Message: "Parse error", Data: err.Error()})
	}
	return h.Call(ctx, req)
}

// Handle serves JSON-RPC over HTTP POST.
func (h *JSONRPCHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Warn("read request body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}
	c.Data(http.StatusOK, "application/json", h.Dispatch(c.Request.Context(), body))
}
