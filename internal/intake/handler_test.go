package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"

	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/logging"
	"reelsmith/internal/services"
)

type fakeRunner struct {
	requests []assembly.Request
	err      error
	ctxs     []context.Context
}

func (r *fakeRunner) Run(ctx context.Context, req assembly.Request) (assembly.Result, error) {
	r.requests = append(r.requests, req)
	r.ctxs = append(r.ctxs, ctx)
	if r.err != nil {
		return assembly.Result{}, r.err
	}
	return assembly.Result{RunID: "run-1", OutputID: req.OutputID}, nil
}

const validPayload = `{"output_id":"promo","sentences":[{"text":"hello there","clips":["/clips/a.mp4"]}]}`

func TestHandleMessageRunsValidRequest(t *testing.T) {
	runner := &fakeRunner{}
	h := NewHandler(runner, logging.NewNop())

	mark, err := h.HandleMessage(context.Background(), []byte("req-7"), []byte(validPayload))
	if err != nil || !mark {
		t.Fatalf("expected marked success, got mark=%v err=%v", mark, err)
	}
	if len(runner.requests) != 1 || runner.requests[0].OutputID != "promo" {
		t.Fatalf("unexpected requests %+v", runner.requests)
	}
	if id, ok := services.RequestIDFromContext(runner.ctxs[0]); !ok || id != "req-7" {
		t.Fatalf("expected request id from key, got %q", id)
	}
}

func TestHandleMessageSkipsBadPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"malformed":    `{"sentences":`,
		"no sentences": `{"output_id":"x","sentences":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			runner := &fakeRunner{}
			mark, err := NewHandler(runner, logging.NewNop()).HandleMessage(context.Background(), nil, []byte(payload))
			if err != nil || !mark {
				t.Fatalf("expected skipped message to be marked, got mark=%v err=%v", mark, err)
			}
			if len(runner.requests) != 0 {
				t.Fatal("runner should not be called")
			}
		})
	}
}

func TestHandleMessageFailedRunIsMarked(t *testing.T) {
	runner := &fakeRunner{err: services.Wrap(services.ErrExternalTool, "normalize", "ffmpeg", "", nil)}
	mark, err := NewHandler(runner, logging.NewNop()).HandleMessage(context.Background(), nil, []byte(validPayload))
	if err == nil || !mark {
		t.Fatalf("expected marked failure, got mark=%v err=%v", mark, err)
	}
}

func TestHandleMessageCanceledRunIsRedelivered(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &fakeRunner{err: context.Canceled}
	mark, err := NewHandler(runner, logging.NewNop()).HandleMessage(ctx, nil, []byte(validPayload))
	if mark || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected unmarked cancellation, got mark=%v err=%v", mark, err)
	}
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {
}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {
}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "reelsmith.requests" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 3 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type scriptedHandler struct {
	marks map[string]bool
}

func (h scriptedHandler) HandleMessage(_ context.Context, _, value []byte) (bool, error) {
	if h.marks[string(value)] {
		return true, nil
	}
	return false, context.Canceled
}

func TestConsumeClaimMarksHandledMessages(t *testing.T) {
	consumer := newConsumer(nil, "reelsmith.requests", "reelsmith",
		scriptedHandler{marks: map[string]bool{"ok-1": true, "ok-2": true}}, logging.NewNop())
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 0, Value: []byte("ok-1")}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte("retry")}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte("ok-2")}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	handler := &groupHandler{consumer: consumer, ready: make(chan struct{})}
	if err := handler.Setup(session); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := handler.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(session.marked) != 2 || session.marked[0] != 0 || session.marked[1] != 2 {
		t.Fatalf("unexpected marked offsets %v", session.marked)
	}
	select {
	case <-handler.ready:
	default:
		t.Fatal("expected ready to be closed after setup")
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(config.Kafka{}, NewHandler(&fakeRunner{}, nil), nil); err == nil {
		t.Fatal("expected error without brokers")
	}
}
