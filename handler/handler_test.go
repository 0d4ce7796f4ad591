package handler_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/changeset/handler"
	"github.com/jacentio/changeset/save"
	"github.com/jacentio/changeset/store"
)

const tagMetadata = `"metadata": {
	"Tag": {
		"collectionName": "tags",
		"dataProperties": [
			{"name": "_id", "dataType": "String"},
			{"name": "name", "dataType": "String"}
		]
	},
	"Event": {
		"collectionName": "events",
		"autoGeneratedKeyType": "BinaryId",
		"dataProperties": [
			{"name": "_id", "dataType": "BinaryId"}
		]
	}
}`

func newHandler(st store.Store, opts ...save.Option) *handler.Handler {
	return handler.New(st, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
}

type response struct {
	Error  string       `json:"error"`
	Kind   string       `json:"kind"`
	Result *save.Result `json:"result"`

	InsertedKeys []save.EntityKey  `json:"insertedKeys"`
	KeyMappings  []save.KeyMapping `json:"keyMappings"`
	Errors       []save.ErrorEntry `json:"errors"`
}

func decode(t *testing.T, resp events.APIGatewayProxyResponse) response {
	t.Helper()
	var r response
	if err := json.Unmarshal([]byte(resp.Body), &r); err != nil {
		t.Fatalf("invalid response body %q: %v", resp.Body, err)
	}
	return r
}

func TestHandleRequest_Success(t *testing.T) {
	st := store.NewMemory()
	h := newHandler(st)

	body := `{"entities": [
		{"_id": "a", "name": "A", "entityAspect": {"entityTypeName": "Tag", "entityState": "Added"}},
		{"_id": "temp-1", "entityAspect": {"entityTypeName": "Event", "entityState": "Added", "tempKey": "temp-1"}}
	], ` + tagMetadata + `}`

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{HTTPMethod: "POST", Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
	if resp.Headers["Content-Type"] != "application/json" {
		t.Errorf("expected JSON content type, got %q", resp.Headers["Content-Type"])
	}

	r := decode(t, resp)
	if len(r.InsertedKeys) != 2 {
		t.Errorf("expected 2 inserted keys, got %+v", r.InsertedKeys)
	}
	if len(r.KeyMappings) != 1 {
		t.Fatalf("expected one key mapping, got %+v", r.KeyMappings)
	}
	hexKey, ok := r.KeyMappings[0].RealValue.(string)
	if !ok || len(hexKey) != 24 {
		t.Errorf("expected 24-character hex binary id, got %v", r.KeyMappings[0].RealValue)
	}
	if st.Len("tags") != 1 || st.Len("events") != 1 {
		t.Errorf("expected one tag and one event stored, got %d and %d", st.Len("tags"), st.Len("events"))
	}
}

func TestHandleRequest_Base64Body(t *testing.T) {
	h := newHandler(store.NewMemory())
	body := `{"entities": [], ` + tagMetadata + `}`

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{
		Body:            base64.StdEncoding.EncodeToString([]byte(body)),
		IsBase64Encoded: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestHandleRequest_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		req    events.APIGatewayProxyRequest
		status int
	}{
		{"wrong method", events.APIGatewayProxyRequest{HTTPMethod: "GET"}, http.StatusMethodNotAllowed},
		{"empty body", events.APIGatewayProxyRequest{HTTPMethod: "POST"}, http.StatusBadRequest},
		{"malformed json", events.APIGatewayProxyRequest{HTTPMethod: "POST", Body: "{"}, http.StatusBadRequest},
		{"bad base64", events.APIGatewayProxyRequest{Body: "!!", IsBase64Encoded: true}, http.StatusBadRequest},
		{
			name: "unknown type",
			req: events.APIGatewayProxyRequest{Body: `{"entities": [
				{"_id": "x", "entityAspect": {"entityTypeName": "Invoice", "entityState": "Added"}}
			], ` + tagMetadata + `}`},
			status: http.StatusBadRequest,
		},
	}

	h := newHandler(store.NewMemory())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := h.HandleRequest(context.Background(), tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("expected %d, got %d: %s", tt.status, resp.StatusCode, resp.Body)
			}
			if r := decode(t, resp); r.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestHandleRequest_PartialFailure(t *testing.T) {
	st := store.NewMemory()
	tags, _ := st.Collection(context.Background(), "tags", "_id")
	tags.Insert(context.Background(), store.Document{"_id": "dup"})
	h := newHandler(st)

	body := `{"entities": [
		{"_id": "dup", "entityAspect": {"entityTypeName": "Tag", "entityState": "Added"}},
		{"_id": "ok", "entityAspect": {"entityTypeName": "Tag", "entityState": "Added"}}
	], ` + tagMetadata + `}`

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{Body: body})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d: %s", resp.StatusCode, resp.Body)
	}
	r := decode(t, resp)
	if r.Kind != "partial_failure" {
		t.Errorf("expected partial_failure kind, got %q", r.Kind)
	}
	if r.Result == nil || len(r.Result.InsertedKeys) != 1 || len(r.Result.Errors) != 1 {
		t.Errorf("expected result with one insert and one error, got %+v", r.Result)
	}
}

func TestHandleRequest_HookError(t *testing.T) {
	h := newHandler(store.NewMemory(), save.WithBeforeSave(func(context.Context, *save.Saver, func()) error {
		return &save.Error{Kind: save.KindValidation, Msg: "tag required"}
	}))

	resp, err := h.HandleRequest(context.Background(), events.APIGatewayProxyRequest{Body: `{"entities": []}`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestHandleRequest_Canceled(t *testing.T) {
	h := newHandler(store.NewMemory(), save.WithBeforeSave(func(context.Context, *save.Saver, func()) error {
		return nil
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.HandleRequest(ctx, events.APIGatewayProxyRequest{Body: `{"entities": []}`})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context canceled, got %v", err)
	}
}

func TestHandleQueue(t *testing.T) {
	st := store.NewMemory()
	calls := 0
	h := newHandler(st, save.WithBeforeSave(func(ctx context.Context, s *save.Saver, next func()) error {
		calls++
		if s.Request().SaveOptions.Tag == "flaky" {
			return errors.New("downstream unavailable")
		}
		next()
		return nil
	}))

	event := events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: `{"entities": [{"_id": "a", "entityAspect": {"entityTypeName": "Tag", "entityState": "Added"}}], ` + tagMetadata + `}`},
		{MessageId: "m2", Body: "not json"},
		{MessageId: "m3", Body: `{"entities": [], "saveOptions": {"tag": "flaky"}}`},
		{MessageId: "m4", Body: `{"entities": [{"_id": "a", "entityAspect": {"entityTypeName": "Tag", "entityState": "Added"}}], ` + tagMetadata + `}`},
	}}

	resp, err := h.HandleQueue(context.Background(), event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "m3" {
		t.Errorf("expected only m3 to be retried, got %+v", resp.BatchItemFailures)
	}
	if calls != 3 {
		t.Errorf("expected 3 batches run, got %d", calls)
	}
	if st.Len("tags") != 1 {
		t.Errorf("expected one tag stored, got %d", st.Len("tags"))
	}
}
