// Package handler provides AWS Lambda handlers that run change-set batches.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/changeset/save"
	"github.com/jacentio/changeset/store"
)

// Handler decodes batch requests, saves them and encodes the outcome.
type Handler struct {
	store  store.Store
	logger *slog.Logger
	opts   []save.Option
}

// New creates a Handler. opts are applied to every batch.
func New(st store.Store, logger *slog.Logger, opts ...save.Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		store:  st,
		logger: logger,
		opts:   append([]save.Option{save.WithLogger(logger)}, opts...),
	}
}

// errorBody is the response body of a failed batch.
type errorBody struct {
	Error  string       `json:"error"`
	Kind   save.Kind    `json:"kind"`
	Result *save.Result `json:"result,omitempty"`
}

// HandleRequest saves the batch carried in an API Gateway proxy request.
// A partially failed batch responds with the status of its first error
// entry and the full result, so the client can tell what was written.
func (h *Handler) HandleRequest(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return h.respond(http.StatusMethodNotAllowed, errorBody{Error: "method not allowed", Kind: save.KindValidation})
	}

	batch, err := decodeRequest(req.Body, req.IsBase64Encoded)
	if err != nil {
		h.logger.Warn("rejected request",
			"requestID", req.RequestContext.RequestID,
			"error", err,
		)
		return h.respond(http.StatusBadRequest, errorBody{Error: err.Error(), Kind: save.KindValidation})
	}

	res, err := save.SaveBatch(ctx, h.store, batch, h.opts...)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return events.APIGatewayProxyResponse{}, err
		}
		status, body := failure(err)
		return h.respond(status, body)
	}
	return h.respond(http.StatusOK, wireResult(res))
}

// HandleQueue saves one batch per SQS message. Messages that failed before
// anything was written are reported for redelivery; batches that reached the
// store are never retried, since a replay would conflict with its own inserts.
func (h *Handler) HandleQueue(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	for _, msg := range event.Records {
		batch, err := decodeRequest(msg.Body, false)
		if err != nil {
			h.logger.Error("dropping malformed message",
				"messageID", msg.MessageId,
				"error", err,
			)
			continue
		}

		_, err = save.SaveBatch(ctx, h.store, batch, h.opts...)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			return resp, err
		case retryable(err):
			h.logger.Warn("batch failed, will retry",
				"messageID", msg.MessageId,
				"error", err,
			)
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		default:
			h.logger.Error("batch failed",
				"messageID", msg.MessageId,
				"kind", save.KindOf(err),
				"error", err,
			)
		}
	}
	return resp, nil
}

// retryable reports whether a batch error left the store untouched and may
// succeed on redelivery.
func retryable(err error) bool {
	return save.KindOf(err) == save.KindInternal && save.ResultOf(err) == nil
}

func decodeRequest(body string, base64Encoded bool) (*save.Request, error) {
	data := []byte(body)
	if base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
		data = decoded
	}
	if len(data) == 0 {
		return nil, errors.New("empty request body")
	}
	var req save.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return &req, nil
}

// failure maps a batch error to a status code and response body.
func failure(err error) (int, errorBody) {
	kind := save.KindOf(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	status := kind.Status()
	if res := save.ResultOf(err); res != nil {
		body.Result = wireResult(res)
		if kind == save.KindPartialFailure && len(res.Errors) > 0 {
			status = res.Errors[0].Status
		}
	}
	return status, body
}

func (h *Handler) respond(status int, body any) (events.APIGatewayProxyResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		h.logger.Error("failed to encode response", "error", err)
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"failed to encode response","kind":"internal"}`,
		}, nil
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}, nil
}
