package transcript

import (
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dwizi/accessbot/internal/directory"
)

var bot = Sender{ID: "accessbot", DisplayName: "AccessBot", IsBot: true}

func fixedNow() time.Time {
	return time.Date(2026, time.March, 3, 9, 0, 0, 0, time.UTC)
}

func TestAppendThenReadPreservesOrderAndIdentity(t *testing.T) {
	log := New(fixedNow)
	const count = 25
	for index := 0; index < count; index++ {
		log.Append(Text(bot, "message"))
	}

	messages := slices.Collect(log.All())
	if len(messages) != count {
		t.Fatalf("expected %d messages, got %d", count, len(messages))
	}
	seen := map[string]bool{}
	for index, message := range messages {
		if message.Index != index {
			t.Fatalf("expected index %d, got %d", index, message.Index)
		}
		if seen[message.ID] {
			t.Fatalf("duplicate message id %s despite identical timestamps", message.ID)
		}
		seen[message.ID] = true
		if !message.CreatedAt.Equal(fixedNow()) {
			t.Fatalf("unexpected timestamp %s", message.CreatedAt)
		}
	}
}

func TestAllIsRestartableAndPrefixConsistent(t *testing.T) {
	log := New(fixedNow)
	log.Append(Text(bot, "one"))
	log.Append(Text(bot, "two"))

	first := slices.Collect(log.All())
	log.Append(Text(bot, "three"))
	second := slices.Collect(log.All())

	if len(first) != 2 || len(second) != 3 {
		t.Fatalf("unexpected lengths %d/%d", len(first), len(second))
	}
	for index := range first {
		if first[index].ID != second[index].ID || first[index].Content != second[index].Content {
			t.Fatalf("snapshot %d diverged: %+v vs %+v", index, first[index], second[index])
		}
	}

	seq := log.All()
	var stopped []Message
	for message := range seq {
		stopped = append(stopped, message)
		break
	}
	if len(stopped) != 1 {
		t.Fatalf("expected early break to stop iteration, got %d", len(stopped))
	}
}

func TestCardKindAndSince(t *testing.T) {
	log := New(fixedNow)
	log.Append(Text(bot, "hello"))
	card := log.Append(WithCard(bot, "Anomaly 1:", NewAnomalyCard(directory.AnomalyRecord{Username: "dan.j", Score: 0.92})))
	if card.Kind != KindCard {
		t.Fatalf("expected card kind, got %s", card.Kind)
	}
	anomaly, ok := card.Card.(AnomalyCard)
	if !ok {
		t.Fatalf("expected anomaly card, got %T", card.Card)
	}
	if anomaly.Tier != directory.TierHigh {
		t.Fatalf("expected high tier, got %s", anomaly.Tier)
	}

	tail := log.Since(1)
	if len(tail) != 1 || tail[0].ID != card.ID {
		t.Fatalf("unexpected tail: %+v", tail)
	}
	if got := log.Since(5); len(got) != 0 {
		t.Fatalf("expected empty tail past end, got %d", len(got))
	}
}

func TestUpdatedClosesOnAppend(t *testing.T) {
	log := New(fixedNow)
	updated := log.Updated()
	select {
	case <-updated:
		t.Fatal("expected channel to stay open before append")
	default:
	}
	log.Append(Text(bot, "ping"))
	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("expected channel to close after append")
	}
}

func TestConcurrentAppendsKeepUniqueIndices(t *testing.T) {
	log := New(nil)
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := 0; index < 50; index++ {
				log.Append(Text(bot, "x"))
			}
		}()
	}
	wg.Wait()

	index := 0
	for message := range log.All() {
		if message.Index != index {
			t.Fatalf("expected contiguous index %d, got %d", index, message.Index)
		}
		index++
	}
	if index != 400 {
		t.Fatalf("expected 400 messages, got %d", index)
	}
}

func TestMessageJSONCarriesCardKind(t *testing.T) {
	log := New(fixedNow)
	message := log.Append(WithCard(bot, "Token onboarding help for alice.w:", DefaultTokenHelp("alice.w")))
	payload, err := json.Marshal(message)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if decoded["kind"] != "card" || decoded["card_kind"] != "token-help" {
		t.Fatalf("unexpected discriminators: %v", decoded)
	}
	card, ok := decoded["card"].(map[string]any)
	if !ok {
		t.Fatalf("expected card object, got %T", decoded["card"])
	}
	steps, _ := card["steps"].([]any)
	if len(steps) != 3 {
		t.Fatalf("expected 3 token help steps, got %d", len(steps))
	}
}
