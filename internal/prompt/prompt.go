// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Lexia Contributors

// Package prompt selects the system prompt and assembles the message list
// submitted for a chat completion.
package prompt

import (
	"github.com/lexia-dev/lexia/internal/provider"
)

// DefaultSystemPrompt is used when neither a project nor a custom system
// message is supplied.
const DefaultSystemPrompt = `You are a helpful AI assistant. You provide clear, accurate, and helpful responses.
    
Guidelines:
- Be concise but informative
- Use markdown formatting when helpful
- If you don't know something, say so
- Be friendly and professional
- Provide examples when helpful`

// SelectSystemPrompt returns the first non-empty of project, custom and
// DefaultSystemPrompt.
func SelectSystemPrompt(custom, project string) string {
	switch {
	case project != "":
		return project
	case custom != "":
		return custom
	default:
		return DefaultSystemPrompt
	}
}

// BuildMessages returns the system message, every history entry except the
// last, and a user message for current. The caller appends the current turn
// to history before calling, so the last entry is dropped whatever it holds.
// History entries are copied as-is and history is not modified.
func BuildMessages(systemPrompt string, history []provider.Message, current string) []provider.Message {
	prior := history
	if len(prior) > 0 {
		prior = prior[:len(prior)-1]
	}

	msgs := make([]provider.Message, 0, len(prior)+2)
	msgs = append(msgs, provider.SystemMessage(systemPrompt))
	msgs = append(msgs, prior...)
	msgs = append(msgs, provider.UserMessage(current))
	return msgs
}
