package events

import (
	"context"
	"sync"

	"github.com/unalkalkan/VoiceReader/internal/observable"
	"github.com/unalkalkan/VoiceReader/internal/reader"
	"github.com/unalkalkan/VoiceReader/pkg/types"
)

// Settings is the payload of settings events
type Settings struct {
	Voice string  `json:"voice"`
	Rate  float64 `json:"rate"`
	Pitch float64 `json:"pitch"`
}

// Forward publishes every value of v as an eventType event, transformed by
// fn, until ctx is cancelled. The current value is published first.
func Forward[T any](ctx context.Context, b *Broker, eventType string, v *observable.Value[T], fn func(T) any) {
	ch, cancel := v.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case val, ok := <-ch:
			if !ok {
				return
			}
			b.Publish(Event{Type: eventType, Data: fn(val)})
		}
	}
}

// BridgeSession forwards the session's observables to b until ctx is
// cancelled. The returned function blocks until every forwarder exited.
func BridgeSession(ctx context.Context, b *Broker, s *reader.Session) (wait func()) {
	var wg sync.WaitGroup
	start := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	settings := func() any {
		return Settings{
			Voice: s.SelectedVoice.Get(),
			Rate:  s.SpeechRate.Get(),
			Pitch: s.SpeechPitch.Get(),
		}
	}

	start(func() {
		Forward(ctx, b, TypePosition, s.Position, func(p int) any {
			return map[string]int{"position": p}
		})
	})
	start(func() {
		Forward(ctx, b, TypePlaying, s.Playing, func(p bool) any {
			return map[string]bool{"playing": p}
		})
	})
	start(func() {
		Forward(ctx, b, TypeLoading, s.Loading, func(l bool) any {
			return map[string]bool{"loading": l}
		})
	})
	start(func() {
		Forward(ctx, b, TypeDocument, s.CurrentDocument, func(*types.Document) any { return s.Summary() })
	})
	start(func() {
		Forward(ctx, b, TypeBookmarks, s.Bookmarks, func(v []types.Bookmark) any { return v })
	})
	start(func() {
		Forward(ctx, b, TypeRecentDocuments, s.RecentDocuments, func(v []types.DocumentRecord) any { return v })
	})
	start(func() {
		Forward(ctx, b, TypeSettings, s.SelectedVoice, func(string) any { return settings() })
	})
	start(func() {
		Forward(ctx, b, TypeSettings, s.SpeechRate, func(float64) any { return settings() })
	})
	start(func() {
		Forward(ctx, b, TypeSettings, s.SpeechPitch, func(float64) any { return settings() })
	})

	return wg.Wait
}
