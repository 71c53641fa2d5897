// ABOUTME: Chat message construction for answering and question condensing
// ABOUTME: Retrieved chunks go in the system message, history as prior turns
package llm

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/harper/askdocs/internal/models"
)

const answerSystemPrompt = `You answer questions using the context excerpts below.
If the context does not contain the answer, say that you don't know rather than making one up.
Keep answers concise and refer to specifics (numbers, names, dates) from the context.`

const condenseSystemPrompt = `Given a conversation and a follow-up question, rewrite the follow-up
as a standalone question that can be understood without the conversation.
Keep the original language. Reply with the question only.`

// buildChatMessages lays out a GenerationRequest as chat messages:
// system (instructions + context), then history in order, then the question
func buildChatMessages(req models.GenerationRequest) []openai.ChatCompletionMessage {
	var sys strings.Builder
	sys.WriteString(answerSystemPrompt)
	sys.WriteString("\n\nContext:\n")
	if len(req.Chunks) == 0 {
		sys.WriteString("(no documents have been indexed)\n")
	}
	for i, chunk := range req.Chunks {
		fmt.Fprintf(&sys, "\n[%d]", i+1)
		if src := chunk.Metadata[models.MetaSource]; src != "" {
			fmt.Fprintf(&sys, " (source: %s)", src)
		}
		sys.WriteString("\n")
		sys.WriteString(chunk.Text)
		sys.WriteString("\n")
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: sys.String(),
	})
	for _, turn := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    chatRole(turn.Role),
			Content: turn.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Question,
	})
	return messages
}

// buildCondenseMessages renders the history as a transcript for the rewrite
func buildCondenseMessages(history []models.Turn, question string) []openai.ChatCompletionMessage {
	var user strings.Builder
	user.WriteString("Chat history:\n")
	for _, turn := range history {
		label := "User"
		if turn.Role == models.RoleAssistant {
			label = "Assistant"
		}
		fmt.Fprintf(&user, "%s: %s\n", label, turn.Text)
	}
	fmt.Fprintf(&user, "\nFollow-up question: %s\nStandalone question:", question)

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: condenseSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: user.String()},
	}
}

func chatRole(r models.Role) string {
	if r == models.RoleAssistant {
		return openai.ChatMessageRoleAssistant
	}
	return openai.ChatMessageRoleUser
}
