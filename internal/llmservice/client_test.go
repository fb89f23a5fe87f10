package llmservice

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	reply    string
	err      error
	noChoice bool
	messages []llms.MessageContent
	opts     llms.CallOptions
	deadline bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	if f.noChoice {
		return &llms.ContentResponse{}, nil
	}
	if f.opts.StreamingFunc != nil {
		for _, part := range strings.SplitAfter(f.reply, " ") {
			if err := f.opts.StreamingFunc(ctx, []byte(part)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestCompleteSendsSystemAndUser(t *testing.T) {
	fm := &fakeModel{reply: "<think>checking the manual</think>\nThe engine makes 128 hp."}
	c := NewWithModel(fm, "test-model", time.Minute)

	out, err := c.Complete(context.Background(), "be precise", "How much power?", 0.3)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "The engine makes 128 hp." {
		t.Fatalf("unexpected output %q", out)
	}
	if len(fm.messages) != 2 || fm.messages[0].Role != llms.ChatMessageTypeSystem || fm.messages[1].Role != llms.ChatMessageTypeHuman {
		t.Fatalf("unexpected messages %+v", fm.messages)
	}
	if fm.opts.Temperature != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", fm.opts.Temperature)
	}
	if !fm.deadline {
		t.Fatalf("expected a deadline on the call context")
	}
}

func TestCompleteWithoutSystem(t *testing.T) {
	fm := &fakeModel{reply: "ok"}
	c := NewWithModel(fm, "test-model", 0)
	if _, err := c.Complete(context.Background(), "", "hi", 0); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if len(fm.messages) != 1 {
		t.Fatalf("expected a single message, got %d", len(fm.messages))
	}
	if fm.deadline {
		t.Fatalf("no deadline expected without timeout")
	}
}

func TestCompleteErrors(t *testing.T) {
	c := NewWithModel(&fakeModel{noChoice: true}, "m", 0)
	if _, err := c.Complete(context.Background(), "", "hi", 0); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}

	boom := errors.New("connection refused")
	c = NewWithModel(&fakeModel{err: boom}, "m", 0)
	if _, err := c.Complete(context.Background(), "", "hi", 0); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestStreamForwardsChunks(t *testing.T) {
	fm := &fakeModel{reply: "check tire pressure monthly"}
	c := NewWithModel(fm, "m", 0)

	var sb strings.Builder
	out, err := c.Stream(context.Background(), "", "tires?", 0.7, func(chunk string) error {
		sb.WriteString(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if sb.String() != fm.reply || out != fm.reply {
		t.Fatalf("streamed %q, returned %q", sb.String(), out)
	}
}

func TestStripThinking(t *testing.T) {
	in := "<think>\nmulti\nline\n</think>  answer  "
	if got := StripThinking(in); got != "answer" {
		t.Fatalf("got %q", got)
	}
}
