package eventbus

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

type batchDone struct {
	batch int
}

func TestPublisher_Publish_NoSubscribersWarns(t *testing.T) {
	type unrelated struct{}
	logBuffer := bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(&logBuffer)
	log.SetLevel(logrus.WarnLevel)

	publisher := NewEventPublisher(log)
	publisher.Subscribe(func(e *batchDone) {
		t.Error("should not be called")
	})
	publisher.Publish(&unrelated{})

	if output := logBuffer.String(); output == "" {
		t.Error("should have logged")
	} else if !strings.Contains(output, "eventbus.Publish: no matching subscribers") {
		t.Errorf("should have contained no matching subscribers but got: %q", output)
	}
}

func TestPublisher_Subscribe(t *testing.T) {
	publisher := NewEventPublisher(logrus.New())
	got := 0
	publisher.Subscribe(func(e *batchDone) {
		got = e.batch
	})
	publisher.Publish(&batchDone{batch: 7})
	if got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
}

func TestPublisher_Unsubscribe(t *testing.T) {
	publisher := NewEventPublisher(nil)
	handler := func(e *batchDone) {
		t.Error("should not be called after unsubscribe")
	}
	publisher.Subscribe(handler)
	if publisher.SubscribersCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", publisher.SubscribersCount())
	}
	publisher.Unsubscribe(handler)
	if publisher.SubscribersCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", publisher.SubscribersCount())
	}
	publisher.Publish(&batchDone{batch: 1})
}

func TestPublisher_PanickingHandlerDoesNotBlockOthers(t *testing.T) {
	publisher := NewEventPublisher(logrus.New())
	called := false
	publisher.Subscribe(func(e *batchDone) {
		panic("listener bug")
	})
	publisher.Subscribe(func(e *batchDone) {
		called = true
	})
	publisher.Publish(&batchDone{batch: 2})
	if !called {
		t.Error("second handler should still run")
	}
}

func TestMatchSignature(t *testing.T) {
	type a struct{}
	type b struct{}
	if !MatchSignature(func(e *a) {}, []interface{}{&a{}}) {
		t.Error("expected true")
	}
	if MatchSignature(func(e *a) {}, []interface{}{&b{}}) {
		t.Error("expected false")
	}
	if MatchSignature(func(e *a) {}, []interface{}{&a{}, &a{}}) {
		t.Error("expected false for arity mismatch")
	}
	if MatchSignature(42, []interface{}{&a{}}) {
		t.Error("expected false for non-func handler")
	}
}
