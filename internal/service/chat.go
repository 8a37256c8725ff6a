package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/medra-health/medirag/internal/domain"
	"github.com/medra-health/medirag/internal/telemetry"
)

// NoContextAnswer is returned when retrieval finds nothing to ground an
// answer on. The model is not called in that case.
const NoContextAnswer = "I could not find relevant information in the uploaded documents to answer that question."

// ChatCompleter produces one completion for an assembled prompt.
type ChatCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Retriever is the retrieval surface the chat service grounds answers on.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.RetrievedChunk, bool, error)
}

// AskResult is a grounded answer with the chunks it was grounded on.
type AskResult struct {
	Answer  string
	Sources []domain.RetrievedChunk
}

// ChatService answers questions about ingested documents by retrieving the
// most relevant chunks and asking the chat model over them.
type ChatService struct {
	retriever Retriever
	completer ChatCompleter
}

func NewChatService(retriever Retriever, completer ChatCompleter) *ChatService {
	return &ChatService{
		retriever: retriever,
		completer: completer,
	}
}

// Ask retrieves the top-k chunks for the question and asks the model to
// answer from them. When retrieval comes back empty, a fixed no-context
// answer is returned without calling the model.
func (s *ChatService) Ask(ctx context.Context, question string, k int) (*AskResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.Ask", telemetry.SpanAttributes{
		Operation: "ask",
	})
	defer span.End()

	chunks, _, err := s.retriever.Retrieve(ctx, question, k)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return &AskResult{Answer: NoContextAnswer, Sources: []domain.RetrievedChunk{}}, nil
	}

	answer, err := s.completer.Complete(ctx, buildPrompt(question, chunks))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	return &AskResult{Answer: answer, Sources: chunks}, nil
}

func buildPrompt(question string, chunks []domain.RetrievedChunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	return fmt.Sprintf(`You are an intelligent medical document assistant.
Based on the following medical documents, provide accurate and helpful answers.
If the information is not in the documents, clearly state that.

Medical Documents:
%s

User Question: %s

Answer:`, strings.Join(texts, "\n\n"), question)
}
