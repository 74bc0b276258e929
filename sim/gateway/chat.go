package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	openaisdk "github.com/openai/openai-go"

	contractx "github.com/openvend/vendsim/sim/contract"
)

const chatSystemPrompt = "You are a helpful assistant embedded in a vending machine dashboard. Answer questions about the machine, its inventory, and its economy."

const (
	speakerSystem    = "System"
	speakerUser      = "User"
	speakerAssistant = "Assistant"
)

// ChatRequest is one human prompt against a persistent chat thread.
type ChatRequest struct {
	ChatID           string `json:"chat_id"`
	UserID           string `json:"user_id,omitempty"`
	Model            string `json:"model"`
	Prompt           string `json:"prompt"`
	WebSearchEnabled bool   `json:"web_search_enabled,omitempty"`
}

// ChatService runs the human-facing chat path. Unlike the simulation turns
// there is no safe synthetic reply here, so every failure propagates.
type ChatService struct {
	gw    *Gateway
	store contractx.ChatStore
	now   func() time.Time
}

func NewChatService(gw *Gateway, store contractx.ChatStore) *ChatService {
	return &ChatService{gw: gw, store: store, now: time.Now}
}

// Send streams the assistant reply for req, forwarding each fragment to
// onDelta as it arrives, and persists the user prompt and the assembled
// assistant reply. Returns the full reply text.
func (s *ChatService) Send(ctx context.Context, req ChatRequest, onDelta func(fragment string) error) (string, error) {
	if strings.TrimSpace(req.ChatID) == "" {
		return "", fmt.Errorf("%w: chat id is required", contractx.ErrValidation)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is required", contractx.ErrValidation)
	}

	client, err := s.gw.clientFor(ctx, req.UserID)
	if err != nil {
		return "", err
	}

	history, err := s.history(ctx, req)
	if err != nil {
		return "", err
	}

	messages := append(history, openaisdk.UserMessage(req.Prompt))
	if err := s.persist(ctx, req, speakerUser, req.Prompt); err != nil {
		return "", err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = s.gw.cfg.Model
	}
	// The :online suffix routes the request through web search.
	if req.WebSearchEnabled && !strings.HasSuffix(model, ":online") {
		model += ":online"
	}

	stream := &Stream{inner: client.Chat.Completions.NewStreaming(ctx, s.gw.params(messages, model))}
	defer stream.Close()

	var reply strings.Builder
	for stream.Next() {
		fragment := stream.Current()
		reply.WriteString(fragment)
		if onDelta != nil {
			if err := onDelta(fragment); err != nil {
				return reply.String(), err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return reply.String(), fmt.Errorf("%w: %v", contractx.ErrGateway, err)
	}

	if err := s.persist(ctx, req, speakerAssistant, reply.String()); err != nil {
		return reply.String(), err
	}
	return reply.String(), nil
}

// history loads the thread oldest first, seeding a system message on the
// first exchange.
func (s *ChatService) history(ctx context.Context, req ChatRequest) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	stored, err := s.store.ChatMessages(ctx, req.ChatID)
	if err != nil {
		return nil, fmt.Errorf("load chat history: %w", err)
	}

	if len(stored) == 0 {
		if err := s.persist(ctx, req, speakerSystem, chatSystemPrompt); err != nil {
			return nil, err
		}
		return []openaisdk.ChatCompletionMessageParamUnion{openaisdk.SystemMessage(chatSystemPrompt)}, nil
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(stored))
	for _, msg := range stored {
		switch msg.Speaker {
		case speakerSystem:
			messages = append(messages, openaisdk.SystemMessage(msg.Content))
		case speakerAssistant:
			messages = append(messages, openaisdk.AssistantMessage(msg.Content))
		default:
			messages = append(messages, openaisdk.UserMessage(msg.Content))
		}
	}
	return messages, nil
}

func (s *ChatService) persist(ctx context.Context, req ChatRequest, speaker, content string) error {
	err := s.store.AppendChatMessage(ctx, contractx.ChatMessage{
		ChatID:     req.ChatID,
		ProviderID: req.Model,
		Speaker:    speaker,
		Content:    content,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("persist chat message: %w", err)
	}
	return nil
}
