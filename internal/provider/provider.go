// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

package provider

import (
	"context"
	"strings"

	lexiaerr "github.com/lexia-dev/lexia/pkg/errors"
)

// Provider submits assembled conversations to a language-model API.
type Provider interface {
	Name() string
	ListModels(ctx context.Context) ([]ModelInfo, error)
	Chat(ctx context.Context, req ChatRequest) (<-chan ChatEvent, error)
	Close() error
}

// ChatRequest is a fully assembled conversation. Messages already carry the
// system prompt as their first element when one is used.
type ChatRequest struct {
	Model    string
	Messages []Message
	Options  ChatOptions
}

// ChatOptions contains model configuration.
type ChatOptions struct {
	Temperature   float32
	MaxTokens     int
	StopSequences []string
}

// Message is one role-tagged turn, serialised as {"role": ..., "content": ...}.
type Message struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Role identifies the author of a message. Roles outside the constants below
// are carried through unchanged.
type Role string

const (
	RoleSystem    Role = "system"
	RoleDeveloper Role = "developer"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatEvent is a streaming response event.
type ChatEvent struct {
	Type  EventType
	Text  string
	Usage *Usage
	Error string
}

// EventType defines the type of chat event.
type EventType string

const (
	EventTypeTextDelta EventType = "text_delta"
	EventTypeUsage     EventType = "usage"
	EventTypeDone      EventType = "done"
	EventTypeError     EventType = "error"
)

// Usage tracks token consumption.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	CacheReadTokens int `json:"cache_read_tokens,omitempty"`
}

// ModelInfo describes a model offered by a provider.
type ModelInfo struct {
	ID               string
	Name             string
	Provider         string
	MaxContextTokens int
	MaxOutputTokens  int
}

// Reply is a drained chat stream.
type Reply struct {
	Text  string
	Usage Usage
}

// Collect drains events until the stream closes or ctx is done. An error
// event ends collection with a CodeProviderUpstreamFailure error.
func Collect(ctx context.Context, events <-chan ChatEvent) (Reply, error) {
	var (
		reply Reply
		text  strings.Builder
	)

	for {
		select {
		case <-ctx.Done():
			return reply, lexiaerr.Wrapf(ctx.Err(), lexiaerr.CodeProviderUpstreamTimeout, "waiting for completion")
		case ev, ok := <-events:
			if !ok {
				reply.Text = text.String()
				return reply, nil
			}
			switch ev.Type {
			case EventTypeTextDelta:
				text.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					reply.Usage = *ev.Usage
				}
			case EventTypeError:
				reply.Text = text.String()
				return reply, lexiaerr.New(lexiaerr.CodeProviderUpstreamFailure, ev.Error)
			case EventTypeDone:
			}
		}
	}
}
