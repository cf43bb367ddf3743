// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/lexia-dev/lexia/internal/provider"
	"github.com/lexia-dev/lexia/internal/variables"
	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "build-messages",
		Method:      http.MethodPost,
		Path:        "/api/v1/messages",
		Summary:     "Assemble the conversation that would be sent upstream",
		Tags:        []string{"chat"},
	}, s.handleMessages)

	huma.Register(s.api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/chat",
		Summary:     "Apply variables and send a message to OpenAI",
		Tags:        []string{"chat"},
	}, s.handleChat)
}

// MessagesBody is the request body shared by the message and chat endpoints.
type MessagesBody struct {
	Message              string             `json:"message" doc:"Current user message"`
	ConversationHistory  []provider.Message `json:"conversation_history,omitempty" doc:"Prior turns; the last entry is taken to be the current message and dropped"`
	SystemMessage        string             `json:"system_message,omitempty" doc:"Custom system prompt"`
	ProjectSystemMessage string             `json:"project_system_message,omitempty" doc:"Project system prompt, wins over system_message"`
}

func (b MessagesBody) input() MessagesInput {
	return MessagesInput{
		Message:              b.Message,
		History:              b.ConversationHistory,
		SystemMessage:        b.SystemMessage,
		ProjectSystemMessage: b.ProjectSystemMessage,
	}
}

type messagesInput struct {
	Body MessagesBody
}

type messagesOutput struct {
	Body struct {
		SystemPrompt string             `json:"system_prompt" doc:"Selected system prompt"`
		Messages     []provider.Message `json:"messages" doc:"Assembled conversation"`
	}
}

// ChatBody is the request body of the chat endpoints.
type ChatBody struct {
	MessagesBody
	Variables VariableList `json:"variables,omitempty" doc:"Name/value pairs applied before the call; OPENAI_API_KEY selects the key"`
	Model     string       `json:"model,omitempty" doc:"Model override"`
}

// VariableList is the request form of variables.List. Its schema accepts
// elements of any shape so that a malformed entry is skipped and reported by
// the resolver instead of rejecting the request.
type VariableList variables.List

// Schema implements huma.SchemaProvider.
func (VariableList) Schema(huma.Registry) *huma.Schema {
	return &huma.Schema{
		Type:        huma.TypeArray,
		Items:       &huma.Schema{Description: "{name, value} object; other shapes are skipped"},
		Description: "Name/value pairs applied before the call; OPENAI_API_KEY selects the key",
	}
}

func (l *VariableList) UnmarshalJSON(data []byte) error {
	return (*variables.List)(l).UnmarshalJSON(data)
}

func (b ChatBody) input() ChatInput {
	return ChatInput{
		MessagesInput: b.MessagesBody.input(),
		Variables:     variables.List(b.Variables),
		Model:         b.Model,
	}
}

type chatInput struct {
	Body ChatBody
}

// ChatResponseBody is the JSON body of a completed chat.
type ChatResponseBody struct {
	RequestID        string         `json:"request_id" doc:"Server-assigned request ID"`
	Response         string         `json:"response" doc:"Assistant reply"`
	Model            string         `json:"model" doc:"Model used"`
	Usage            provider.Usage `json:"usage" doc:"Token usage"`
	SkippedVariables []string       `json:"skipped_variables,omitempty" doc:"Variables that were not applied"`
}

type chatOutput struct {
	Body ChatResponseBody
}

func (s *Server) handleMessages(_ context.Context, input *messagesInput) (*messagesOutput, error) {
	sys, msgs := s.services.Messages(input.Body.input())

	out := &messagesOutput{}
	out.Body.SystemPrompt = sys
	out.Body.Messages = msgs
	return out, nil
}

func (s *Server) handleChat(ctx context.Context, input *chatInput) (*chatOutput, error) {
	res, err := s.services.Chat(ctx, input.Body.input())
	if err != nil {
		return nil, s.apiError(err)
	}

	return &chatOutput{Body: ChatResponseBody{
		RequestID:        res.RequestID,
		Response:         res.Response,
		Model:            res.Model,
		Usage:            res.Usage,
		SkippedVariables: res.Skipped,
	}}, nil
}

// apiError maps a coded error to its HTTP status. Internal failures are
// logged and their detail withheld from the client.
func (s *Server) apiError(err error) huma.StatusError {
	status := lexiaerr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusGatewayTimeout {
		s.services.logger.Error("request failed", "error", err, "code", lexiaerr.CodeOf(err), "fields", lexiaerr.FieldsOf(err))
		return huma.Error500InternalServerError("internal error")
	}
	s.services.logger.Warn("request rejected", "error", err, "code", lexiaerr.CodeOf(err), "status", status, "fields", lexiaerr.FieldsOf(err))
	return huma.NewError(status, err.Error())
}
