// Package assistant answers questions about the page the reader is on.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// Responder produces a reply to a complete prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// OpenAIResponder calls the OpenAI Responses API.
type OpenAIResponder struct {
	client  openai.Client
	model   shared.ChatModel
	limiter *rate.Limiter
	log     logger.Logger
}

// NewOpenAIResponder uses gpt-5-mini. limiter may be shared with other
// callers; nil disables client-side limiting.
func NewOpenAIResponder(apiKey string, limiter *rate.Limiter, log logger.Logger, opts ...option.RequestOption) *OpenAIResponder {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIResponder{
		client:  openai.NewClient(opts...),
		model:   shared.ChatModelGPT5Mini,
		limiter: limiter,
		log:     log.With("assistant"),
	}
}

func (r *OpenAIResponder) Respond(ctx context.Context, prompt string) (string, error) {
	return RateLimitedCall(ctx, r.limiter, EstimateTokens(prompt), r.log, func(ctx context.Context) (string, error) {
		resp, err := r.client.Responses.New(ctx, responses.ResponseNewParams{
			Model: r.model,
			Input: responses.ResponseNewParamsInputUnion{
				OfInputItemList: responses.ResponseInputParam{
					responses.ResponseInputItemParamOfMessage(
						responses.ResponseInputMessageContentListParam{
							responses.ResponseInputContentParamOfInputText(prompt),
						},
						"user",
					),
				},
			},
		})
		if err != nil {
			return "", fmt.Errorf("failed to get response: %w", err)
		}
		return resp.OutputText(), nil
	})
}

// Chatter is the backend's own chat endpoint.
type Chatter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// BackendResponder routes prompts to the document service instead of a
// model provider.
type BackendResponder struct {
	chat    Chatter
	limiter *rate.Limiter
	log     logger.Logger
}

func NewBackendResponder(chat Chatter, limiter *rate.Limiter, log logger.Logger) *BackendResponder {
	return &BackendResponder{chat: chat, limiter: limiter, log: log.With("assistant")}
}

func (r *BackendResponder) Respond(ctx context.Context, prompt string) (string, error) {
	return RateLimitedCall(ctx, r.limiter, EstimateTokens(prompt), r.log, func(ctx context.Context) (string, error) {
		return r.chat.Chat(ctx, prompt)
	})
}

// Turn is one exchange.
type Turn struct {
	Page     int    `json:"page"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Assistant holds the most recently pushed content window and the
// conversation so far. Observe is meant to be registered as a window
// subscriber.
type Assistant struct {
	responder Responder
	log       logger.Logger
	title     string

	mu      sync.Mutex
	window  models.ContentWindow
	history []Turn
}

func New(responder Responder, title string, log logger.Logger) *Assistant {
	return &Assistant{responder: responder, title: title, log: log.With("assistant")}
}

// Observe records the latest window.
func (a *Assistant) Observe(w models.ContentWindow) {
	a.mu.Lock()
	a.window = w
	a.mu.Unlock()
}

func (a *Assistant) Window() models.ContentWindow {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.window
}

// Ask sends question together with the current window.
func (a *Assistant) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("empty question")
	}
	w := a.Window()
	prompt := BuildPrompt(a.title, w, question)

	a.log.Debug("Asking about page %d (%d chars)", w.Page, len(prompt))
	answer, err := a.responder.Respond(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to ask assistant: %w", err)
	}

	a.mu.Lock()
	a.history = append(a.history, Turn{Page: w.Page, Question: question, Answer: answer})
	a.mu.Unlock()
	return answer, nil
}

func (a *Assistant) History() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Turn(nil), a.history...)
}

// BuildPrompt frames the question with the current page and its neighbours.
// Neighbours equal to the current page (at document edges) are omitted.
func BuildPrompt(title string, w models.ContentWindow, question string) string {
	var b strings.Builder
	b.WriteString("You are helping a reader understand an academic paper")
	if title != "" {
		fmt.Fprintf(&b, " titled %q", title)
	}
	b.WriteString(". Answer using the excerpts below; say so if they do not contain the answer.\n\n")

	if w.Previous != "" && w.Previous != w.Current {
		fmt.Fprintf(&b, "[previous page]\n%s\n\n", w.Previous)
	}
	if w.Page > 0 {
		fmt.Fprintf(&b, "[current page, %d]\n%s\n\n", w.Page, w.Current)
	} else {
		fmt.Fprintf(&b, "[current page]\n%s\n\n", w.Current)
	}
	if w.Next != "" && w.Next != w.Current {
		fmt.Fprintf(&b, "[next page]\n%s\n\n", w.Next)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
