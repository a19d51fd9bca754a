package genai

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/adcraft/internal/extract"
	"github.com/kalambet/adcraft/internal/llm"
)

type mockCompleter struct {
	mu       sync.Mutex
	calls    int
	requests []llm.GenerationRequest
	fn       func(req llm.GenerationRequest) (string, error)
}

func (m *mockCompleter) Complete(_ context.Context, req llm.GenerationRequest) (string, error) {
	m.mu.Lock()
	m.calls++
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.fn(req)
}

func (m *mockCompleter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func replying(answer string) *mockCompleter {
	return &mockCompleter{fn: func(llm.GenerationRequest) (string, error) { return answer, nil }}
}

var acme = extract.BrandPage{
	URL:        "https://acme.com",
	TextBlocks: []string{"Acme makes shoes.", "Since 1950."},
	ImageURLs:  []string{"https://acme.com/a.png", "https://acme.com/b.png"},
}

func TestBuildContext(t *testing.T) {
	got := BuildContext([]extract.BrandPage{acme}, "Summer sale", []string{"Who founded Acme?"})
	want := "Brand URL: https://acme.com\n" +
		"URL Text: Acme makes shoes. Since 1950.\n" +
		"URL Images: https://acme.com/a.png, https://acme.com/b.png\n\n" +
		"Prompt: Summer sale\n" +
		"Questions:\n" +
		"- Who founded Acme?\n"
	if got != want {
		t.Errorf("BuildContext =\n%q\nwant\n%q", got, want)
	}

	if got := BuildContext(nil, "Hi", nil); got != "Prompt: Hi\n" {
		t.Errorf("BuildContext without brands = %q", got)
	}
}

func TestGenerateText_Request(t *testing.T) {
	m := replying("Step into summer.")
	c := New(m, Options{Model: "gpt-4o"})

	out, err := c.GenerateText(context.Background(), "Summer sale", []extract.BrandPage{acme}, nil)
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if out != "Step into summer." {
		t.Errorf("GenerateText = %q", out)
	}

	req := m.requests[0]
	if req.Model != "gpt-4o" || req.Temperature != 0.7 || req.MaxTokens != 1000 {
		t.Errorf("request params = %s/%v/%d", req.Model, req.Temperature, req.MaxTokens)
	}
	if len(req.Messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(req.Messages))
	}
	if req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Text() != "You are an AI marketing assistant." {
		t.Errorf("system message = %+v", req.Messages[0])
	}
	if !strings.HasPrefix(req.Messages[1].Text(), "Brand URL: https://acme.com\n") {
		t.Errorf("user message = %q", req.Messages[1].Text())
	}
}

func TestGenerateText_CachedByFingerprint(t *testing.T) {
	m := replying("tagline")
	c := New(m, Options{Model: "gpt-4o"})
	ctx := context.Background()
	brands := []extract.BrandPage{acme}

	for range 3 {
		if _, err := c.GenerateText(ctx, "Summer sale", brands, nil); err != nil {
			t.Fatal(err)
		}
	}
	if n := m.Calls(); n != 1 {
		t.Errorf("upstream calls = %d, want 1 for identical requests", n)
	}

	if _, err := c.GenerateText(ctx, "Winter sale", brands, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GenerateText(ctx, "Summer sale", brands, []string{"q"}); err != nil {
		t.Fatal(err)
	}
	if n := m.Calls(); n != 3 {
		t.Errorf("upstream calls = %d, want 3 after two distinct requests", n)
	}
	if c.Cache().Len() != 3 {
		t.Errorf("cache entries = %d, want 3", c.Cache().Len())
	}
}

func TestGenerateText_ErrorNotCached(t *testing.T) {
	fail := true
	m := &mockCompleter{fn: func(llm.GenerationRequest) (string, error) {
		if fail {
			return "", llm.ErrUpstream
		}
		return "ok", nil
	}}
	c := New(m, Options{Model: "gpt-4o"})

	_, err := c.GenerateText(context.Background(), "p", nil, nil)
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}

	fail = false
	out, err := c.GenerateText(context.Background(), "p", nil, nil)
	if err != nil || out != "ok" {
		t.Errorf("second call = %q, %v", out, err)
	}
	if n := m.Calls(); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestQuery_TrimsAndCaches(t *testing.T) {
	m := replying("  No.\n")
	c := New(m, Options{Model: "gpt-4o"})

	for range 2 {
		out, err := c.Query(context.Background(), "system", "message")
		if err != nil {
			t.Fatal(err)
		}
		if out != "No." {
			t.Errorf("Query = %q, want %q", out, "No.")
		}
	}
	if n := m.Calls(); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
	if got := m.requests[0].Messages[0].Text(); got != "system" {
		t.Errorf("system prompt = %q", got)
	}
}

func TestCache_ConcurrentMissesCoalesce(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	cache := NewCache(nil)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := cache.Do(context.Background(), "k", func() (string, error) {
				calls.Add(1)
				<-release
				return "v", nil
			})
			results[i] = v
		}()
	}
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fn called %d times, want 1", n)
	}
	for i, v := range results {
		if v != "v" {
			t.Errorf("results[%d] = %q", i, v)
		}
	}
	if v, ok := cache.Get("k"); !ok || v != "v" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestCache_WaiterSurvivesLeaderCancel(t *testing.T) {
	cache := NewCache(nil)
	leaderCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	leaderErr := make(chan error, 1)

	go func() {
		_, err := cache.Do(leaderCtx, "k", func() (string, error) {
			close(started)
			<-leaderCtx.Done()
			return "", leaderCtx.Err()
		})
		leaderErr <- err
	}()
	<-started

	var waiterCalls atomic.Int32
	type result struct {
		v   string
		err error
	}
	waiter := make(chan result, 1)
	go func() {
		v, err := cache.Do(context.Background(), "k", func() (string, error) {
			waiterCalls.Add(1)
			return "v", nil
		})
		waiter <- result{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	select {
	case r := <-waiter:
		if r.err != nil || r.v != "v" {
			t.Errorf("waiter = %q, %v; want v, nil", r.v, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
	if n := waiterCalls.Load(); n != 1 {
		t.Errorf("waiter fn called %d times, want 1", n)
	}
	if v, ok := cache.Get("k"); !ok || v != "v" {
		t.Errorf("Get = %q, %v", v, ok)
	}
}

func TestCache_WaiterOwnCancel(t *testing.T) {
	cache := NewCache(nil)
	release := make(chan struct{})
	started := make(chan struct{})
	go cache.Do(context.Background(), "k", func() (string, error) {
		close(started)
		<-release
		return "v", nil
	})
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Do(ctx, "k", func() (string, error) {
		t.Error("cancelled waiter ran fn")
		return "", nil
	}); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestBrandContext(t *testing.T) {
	c := New(replying(""), Options{Model: "m"})

	if c.HasContext() {
		t.Fatal("HasContext = true on a new client")
	}
	c.UpdateContext([]extract.BrandPage{acme})
	c.UpdateContext([]extract.BrandPage{{URL: "https://acme.com/about"}})

	if !c.HasContext() {
		t.Fatal("HasContext = false after UpdateContext")
	}
	got := c.GetContext()
	if len(got) != 2 || got[0].URL != acme.URL || got[1].URL != "https://acme.com/about" {
		t.Errorf("GetContext = %+v", got)
	}

	got[0].URL = "mutated"
	if c.GetContext()[0].URL != acme.URL {
		t.Error("GetContext returned shared storage")
	}

	other := New(replying(""), Options{Model: "m"})
	if other.HasContext() {
		t.Error("brand context leaked between clients")
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := range 4 {
		for y := range 4 {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestGenerateImageTags(t *testing.T) {
	data := pngBytes(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(data)
		case "/garbage.png":
			w.Write([]byte("definitely not pixels"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	m := replying(" beach, sun ,sea,, sky ")
	c := New(m, Options{Model: "gpt-4o", VisionModel: "gpt-4o-vision"})
	ctx := context.Background()

	t.Run("tags in model order", func(t *testing.T) {
		tags, err := c.GenerateImageTags(ctx, srv.URL+"/ok.png", 3)
		if err != nil {
			t.Fatalf("GenerateImageTags: %v", err)
		}
		if want := []string{"beach", "sun", "sea"}; !reflect.DeepEqual(tags, want) {
			t.Errorf("tags = %q, want %q", tags, want)
		}

		req := m.requests[len(m.requests)-1]
		if req.Model != "gpt-4o-vision" {
			t.Errorf("model = %q, want vision model", req.Model)
		}
		parts := req.Messages[1].Content
		if len(parts) != 2 {
			t.Fatalf("got %d parts, want 2", len(parts))
		}
		if !strings.Contains(parts[0].Text, "top 3 most relevant tags") {
			t.Errorf("text part = %q", parts[0].Text)
		}
		if parts[1].ImageURL == nil || !strings.HasPrefix(parts[1].ImageURL.URL, "data:image/jpeg;base64,") {
			t.Errorf("image part = %+v", parts[1])
		}
	})

	t.Run("undecodable image", func(t *testing.T) {
		before := m.Calls()
		tags, err := c.GenerateImageTags(ctx, srv.URL+"/garbage.png", 10)
		if err != nil {
			t.Fatalf("GenerateImageTags: %v", err)
		}
		if len(tags) != 0 {
			t.Errorf("tags = %q, want none", tags)
		}
		if m.Calls() != before {
			t.Error("model was called for an undecodable image")
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		_, err := c.GenerateImageTags(ctx, srv.URL+"/missing.png", 10)
		if !errors.Is(err, ErrImageFetch) {
			t.Errorf("error = %v, want ErrImageFetch", err)
		}
	})
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		answer string
		max    int
		want   []string
	}{
		{"a, b, c", 10, []string{"a", "b", "c"}},
		{"a, b, c", 2, []string{"a", "b"}},
		{"  Running Shoes ,Beach ", 10, []string{"Running Shoes", "Beach"}},
		{"", 10, []string{}},
		{"a,,b", 10, []string{"a", "b"}},
		{"a, b", 0, []string{}},
		{"a, b", -1, []string{}},
	}
	for _, tt := range tests {
		got := ParseTags(tt.answer, tt.max)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseTags(%q, %d) = %q, want %q", tt.answer, tt.max, got, tt.want)
		}
	}
}
