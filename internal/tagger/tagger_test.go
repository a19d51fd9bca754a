package tagger

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/adcraft/internal/genai"
)

type mockGenerator struct {
	mu      sync.Mutex
	maxSeen []int
	fn      func(imageURL string, maxTags int) ([]string, error)
}

func (m *mockGenerator) GenerateImageTags(_ context.Context, imageURL string, maxTags int) ([]string, error) {
	m.mu.Lock()
	m.maxSeen = append(m.maxSeen, maxTags)
	m.mu.Unlock()
	return m.fn(imageURL, maxTags)
}

func TestTag_Delegates(t *testing.T) {
	gen := &mockGenerator{fn: func(u string, _ int) ([]string, error) {
		return []string{"shoe", "red"}, nil
	}}
	tg := New(gen, 0)

	set, err := tg.Tag(context.Background(), "https://acme.com/a.png", 0)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	want := ImageTagSet{ImageURL: "https://acme.com/a.png", Tags: []string{"shoe", "red"}}
	if !reflect.DeepEqual(set, want) {
		t.Errorf("Tag = %+v, want %+v", set, want)
	}
	if gen.maxSeen[0] != DefaultMaxTags {
		t.Errorf("maxTags = %d, want default %d", gen.maxSeen[0], DefaultMaxTags)
	}

	if _, err := tg.Tag(context.Background(), "u", 3); err != nil {
		t.Fatal(err)
	}
	if gen.maxSeen[1] != 3 {
		t.Errorf("maxTags = %d, want 3", gen.maxSeen[1])
	}
}

func TestTag_FetchFailureIsEmpty(t *testing.T) {
	gen := &mockGenerator{fn: func(string, int) ([]string, error) {
		return nil, fmt.Errorf("%w: status 404", genai.ErrImageFetch)
	}}

	set, err := New(gen, 10).Tag(context.Background(), "https://acme.com/gone.png", 10)
	if err != nil {
		t.Fatalf("Tag: %v", err)
	}
	if set.ImageURL != "https://acme.com/gone.png" || len(set.Tags) != 0 || set.Tags == nil {
		t.Errorf("Tag = %+v, want empty non-nil tags", set)
	}
}

func TestTagAll_OrderAndErrors(t *testing.T) {
	gen := &mockGenerator{fn: func(u string, _ int) ([]string, error) {
		return []string{strings.TrimPrefix(u, "img-")}, nil
	}}
	urls := []string{"img-0", "img-1", "img-2", "img-3", "img-4", "img-5"}

	sets, err := New(gen, 10).TagAll(context.Background(), urls)
	if err != nil {
		t.Fatalf("TagAll: %v", err)
	}
	for i, s := range sets {
		if s.ImageURL != urls[i] || s.Tags[0] != fmt.Sprint(i) {
			t.Errorf("sets[%d] = %+v", i, s)
		}
	}

	boom := errors.New("model down")
	gen.fn = func(u string, _ int) ([]string, error) {
		if u == "img-2" {
			return nil, boom
		}
		return []string{"x"}, nil
	}
	if _, err := New(gen, 10).TagAll(context.Background(), urls); !errors.Is(err, boom) {
		t.Errorf("TagAll error = %v, want %v", err, boom)
	}
}

func TestTagAll_Empty(t *testing.T) {
	sets, err := New(&mockGenerator{}, 10).TagAll(context.Background(), nil)
	if err != nil || len(sets) != 0 {
		t.Errorf("TagAll(nil) = %v, %v", sets, err)
	}
}
