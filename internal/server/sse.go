// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lexia-dev/lexia/internal/provider"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// SSEEvent represents a single server-sent event.
type SSEEvent struct {
	Event string `json:"event"`
	Data  string `json:"data"`
}

type streamMeta struct {
	RequestID        string   `json:"request_id"`
	Model            string   `json:"model"`
	SkippedVariables []string `json:"skipped_variables,omitempty"`
}

func (s *Server) registerSSERoute() {
	s.router.Post("/api/v1/chat/stream", s.handleChatStream)

	// The handler writes to the raw ResponseWriter, so the operation is
	// documented by hand instead of through huma.Register.
	s.api.OpenAPI().AddOperation(&huma.Operation{
		OperationID: "chat-stream",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat/stream",
		Summary:     "Stream a chat reply via SSE",
		Description: "Same body as /api/v1/chat. Set Accept: text/event-stream for SSE, otherwise receives a JSON array of {event, data} objects. The first event is meta, carrying request_id and skipped_variables.",
		Tags:        []string{"chat"},
		RequestBody: &huma.RequestBody{
			Required: true,
			Content: map[string]*huma.MediaType{
				"application/json": {
					Schema: &huma.Schema{
						Type:     "object",
						Required: []string{"message"},
						Properties: map[string]*huma.Schema{
							"message":                {Type: "string", Description: "Current user message"},
							"conversation_history":   {Type: "array", Items: &huma.Schema{Type: "object"}},
							"system_message":         {Type: "string"},
							"project_system_message": {Type: "string"},
							"variables":              {Type: "array", Items: &huma.Schema{Type: "object"}},
							"model":                  {Type: "string"},
						},
					},
				},
			},
		},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Streaming response (SSE or JSON depending on Accept header)",
				Content: map[string]*huma.MediaType{
					"text/event-stream": {Schema: &huma.Schema{Type: "string"}},
					"application/json": {
						Schema: &huma.Schema{
							Type: "object",
							Properties: map[string]*huma.Schema{
								"events": {Type: "array", Items: &huma.Schema{Type: "object"}},
							},
						},
					},
				},
			},
			"400": {Description: "Malformed request body"},
			"401": {Description: "No OpenAI API key available"},
		},
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var body ChatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.services.logger.Debug("decoding chat stream body", "error", err)
		se := s.apiError(lexiaerr.New(lexiaerr.CodeServerRequestInvalid, "invalid request body"))
		writeError(w, se.GetStatus(), se.Error())
		return
	}

	stream, err := s.services.StreamChat(r.Context(), body.input())
	if err != nil {
		se := s.apiError(err)
		writeError(w, se.GetStatus(), se.Error())
		return
	}

	meta, _ := json.Marshal(streamMeta{
		RequestID:        stream.RequestID,
		Model:            stream.Model,
		SkippedVariables: stream.Skipped,
	})
	first := SSEEvent{Event: "meta", Data: string(meta)}

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		writeSSE(w, first, stream.Events)
		return
	}
	writeJSON(w, first, stream.Events)
}

func toSSE(ev provider.ChatEvent) SSEEvent {
	var payload any
	switch ev.Type {
	case provider.EventTypeTextDelta:
		payload = map[string]string{"text": ev.Text}
	case provider.EventTypeUsage:
		payload = ev.Usage
	case provider.EventTypeError:
		payload = map[string]string{"error": ev.Error}
	default:
		payload = struct{}{}
	}
	data, _ := json.Marshal(payload)
	return SSEEvent{Event: string(ev.Type), Data: string(data)}
}

func writeSSE(w http.ResponseWriter, first SSEEvent, events <-chan provider.ChatEvent) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// httptest.ResponseRecorder is not a Flusher; events are still written.
	flusher, _ := w.(http.Flusher)

	emit := func(event SSEEvent) bool {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Event, event.Data); err != nil {
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	ok := emit(first)
	for ev := range events {
		if ok {
			ok = emit(toSSE(ev))
		}
	}
}

type jsonEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func writeJSON(w http.ResponseWriter, first SSEEvent, events <-chan provider.ChatEvent) {
	collected := []jsonEvent{{Event: first.Event, Data: json.RawMessage(first.Data)}}
	for ev := range events {
		e := toSSE(ev)
		collected = append(collected, jsonEvent{Event: e.Event, Data: json.RawMessage(e.Data)})
	}

	w.Header().Set("Content-Type", "application/json")
	resp := struct {
		Events []jsonEvent `json:"events"`
	}{Events: collected}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		writeError(w, http.StatusInternalServerError, "encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
