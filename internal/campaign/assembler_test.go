package campaign

import (
	"errors"
	"reflect"
	"testing"

	"github.com/kalambet/adcraft/internal/storage"
	"github.com/kalambet/adcraft/internal/tagger"
)

type mockStore struct {
	text   string
	images []storage.Image
	calls  int
	err    error
}

func (m *mockStore) InsertCampaign(text string, images []storage.Image) (storage.Campaign, error) {
	m.calls++
	m.text, m.images = text, images
	if m.err != nil {
		return storage.Campaign{}, m.err
	}
	return storage.Campaign{ID: "ABC123", Text: text, Images: images}, nil
}

func img(url, tag string) storage.Image {
	return storage.Image{URL: url, Description: tag}
}

func TestMatch(t *testing.T) {
	tagged := []tagger.ImageTagSet{
		{ImageURL: "a.png", Tags: []string{"beach", "Sun"}},
		{ImageURL: "b.png", Tags: []string{"sun", "mountain"}},
		{ImageURL: "c.png", Tags: []string{"sunset"}},
	}

	tests := []struct {
		name string
		text string
		want []storage.Image
	}{
		{
			name: "case-insensitive whole words in first-seen tag order",
			text: "Catch the SUN at the Beach.",
			want: []storage.Image{img("a.png", "beach"), img("a.png", "Sun"), img("b.png", "sun")},
		},
		{
			name: "substring of a longer word does not match",
			text: "Sunsets and beaches.",
			want: []storage.Image{},
		},
		{
			name: "no matches",
			text: "Nothing relevant here.",
			want: []storage.Image{},
		},
		{
			name: "longer tag matches on its own",
			text: "Golden sunset vibes",
			want: []storage.Image{img("c.png", "sunset")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.text, tagged)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMatch_DuplicatesKept(t *testing.T) {
	tagged := []tagger.ImageTagSet{
		{ImageURL: "a.png", Tags: []string{"shoe", "red"}},
	}
	got := Match("A red shoe.", tagged)
	want := []storage.Image{img("a.png", "shoe"), img("a.png", "red")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Match = %+v, want %+v", got, want)
	}
}

func TestMatch_Idempotent(t *testing.T) {
	tagged := []tagger.ImageTagSet{{ImageURL: "a.png", Tags: []string{"beach"}}}
	first := Match("beach day", tagged)
	second := Match("beach day", tagged)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Match not idempotent: %+v vs %+v", first, second)
	}
}

func TestMatch_SpecialCharactersAndUnicode(t *testing.T) {
	tagged := []tagger.ImageTagSet{
		{ImageURL: "a.png", Tags: []string{"caf\u00e9"}},
		{ImageURL: "b.png", Tags: []string{"t-shirt"}},
		{ImageURL: "c.png", Tags: []string{"a.b"}},
		{ImageURL: "d.png", Tags: []string{""}},
	}
	// The text spells the accent as a combining mark.
	text := "Our CAFE\u0301 sells a T-Shirt. Not axb."
	got := Match(text, tagged)
	want := []storage.Image{img("a.png", "caf\u00e9"), img("b.png", "t-shirt")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Match = %+v, want %+v", got, want)
	}
}

func TestContainsWord(t *testing.T) {
	tests := []struct {
		text, word string
		want       bool
	}{
		{"sun", "sun", true},
		{"the sun.", "sun", true},
		{"sunny", "sun", false},
		{"sunny sun", "sun", true},
		{"résumé", "sum", false},
		{"über cool", "über", true},
		{"snake_case", "snake", false},
		{"x1 y", "x1", true},
	}
	for _, tt := range tests {
		if got := containsWord(tt.text, tt.word); got != tt.want {
			t.Errorf("containsWord(%q, %q) = %v, want %v", tt.text, tt.word, got, tt.want)
		}
	}
}

func TestBuildResponse(t *testing.T) {
	store := &mockStore{}
	a := New(store, nil)

	tagged := []tagger.ImageTagSet{{ImageURL: "a.png", Tags: []string{"beach"}}}
	c, err := a.BuildResponse("Beach time!", tagged)
	if err != nil {
		t.Fatalf("BuildResponse: %v", err)
	}
	if c.ID != "ABC123" || c.Text != "Beach time!" {
		t.Errorf("campaign = %+v", c)
	}
	if store.calls != 1 || store.text != "Beach time!" {
		t.Errorf("store got %d calls with %q", store.calls, store.text)
	}
	if want := []storage.Image{img("a.png", "beach")}; !reflect.DeepEqual(store.images, want) {
		t.Errorf("persisted images = %+v, want %+v", store.images, want)
	}
}

func TestBuildResponse_StoreError(t *testing.T) {
	boom := errors.New("disk full")
	a := New(&mockStore{err: boom}, nil)

	if _, err := a.BuildResponse("t", nil); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestAnswer_Passthrough(t *testing.T) {
	store := &mockStore{}
	a := New(store, nil)

	if got := a.Answer("Acme was founded in 1950."); got != "Acme was founded in 1950." {
		t.Errorf("Answer = %q", got)
	}
	if store.calls != 0 {
		t.Error("Answer persisted a campaign")
	}
}
