package gateway

import (
	"context"
	"errors"
	"strings"
	"testing"

	contractx "github.com/openvend/vendsim/sim/contract"
	inmemx "github.com/openvend/vendsim/store/inmem"
)

func TestChatSendStreamsAndPersists(t *testing.T) {
	t.Parallel()

	srv := streamingServer(t, []string{"Machine ", "holds ", "12 colas."})
	store := inmemx.New()
	chat := NewChatService(New(testConfig(srv.URL), "secret", nil), store)

	var fragments []string
	reply, err := chat.Send(context.Background(), ChatRequest{
		ChatID: "chat-1",
		Model:  "test-model",
		Prompt: "How many colas are left?",
	}, func(fragment string) error {
		fragments = append(fragments, fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply != "Machine holds 12 colas." {
		t.Fatalf("reply = %q, want assembled stream", reply)
	}
	if strings.Join(fragments, "") != reply {
		t.Fatalf("fragments %q do not assemble into reply %q", fragments, reply)
	}

	msgs, err := store.ChatMessages(context.Background(), "chat-1")
	if err != nil {
		t.Fatalf("ChatMessages: %v", err)
	}
	wantSpeakers := []string{speakerSystem, speakerUser, speakerAssistant}
	if len(msgs) != len(wantSpeakers) {
		t.Fatalf("got %d persisted messages, want %d", len(msgs), len(wantSpeakers))
	}
	for i, speaker := range wantSpeakers {
		if msgs[i].Speaker != speaker {
			t.Fatalf("message[%d].Speaker = %q, want %q", i, msgs[i].Speaker, speaker)
		}
	}
	if msgs[1].Content != "How many colas are left?" {
		t.Fatalf("persisted prompt = %q", msgs[1].Content)
	}
	if msgs[2].Content != reply {
		t.Fatalf("persisted reply = %q, want %q", msgs[2].Content, reply)
	}
}

func TestChatSendSeedsSystemMessageOnce(t *testing.T) {
	t.Parallel()

	srv := streamingServer(t, []string{"ok"})
	store := inmemx.New()
	chat := NewChatService(New(testConfig(srv.URL), "secret", nil), store)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := chat.Send(ctx, ChatRequest{ChatID: "chat-1", Prompt: "hi"}, nil); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	msgs, _ := store.ChatMessages(ctx, "chat-1")
	var systemCount int
	for _, msg := range msgs {
		if msg.Speaker == speakerSystem {
			systemCount++
		}
	}
	if systemCount != 1 {
		t.Fatalf("system messages = %d, want exactly 1", systemCount)
	}
}

func TestChatSendValidation(t *testing.T) {
	t.Parallel()

	chat := NewChatService(New(testConfig("http://localhost:0"), "secret", nil), inmemx.New())
	ctx := context.Background()

	if _, err := chat.Send(ctx, ChatRequest{Prompt: "hi"}, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("missing chat id: err = %v, want ErrValidation", err)
	}
	if _, err := chat.Send(ctx, ChatRequest{ChatID: "chat-1", Prompt: "  "}, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("blank prompt: err = %v, want ErrValidation", err)
	}
}

func TestChatSendPropagatesMissingKey(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://localhost:0")
	cfg.APIKey = ""
	chat := NewChatService(New(cfg, "secret", nil), inmemx.New())

	if _, err := chat.Send(context.Background(), ChatRequest{ChatID: "chat-1", Prompt: "hi"}, nil); !errors.Is(err, contractx.ErrNoAPIKey) {
		t.Fatalf("err = %v, want ErrNoAPIKey", err)
	}
}
