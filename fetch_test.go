package main

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func discardLogf(string, ...any) {}

func pngResponse(t *testing.T, w, h int, clr color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fillFrame(img, clr)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestFetchMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("user"); got != "ada@example.com" {
			t.Errorf("user query = %q", got)
		}
		w.Write([]byte(`[{"title":"Hi","body":"See you at 3"},{"title":"Build","body":"green"}]`))
	}))
	defer srv.Close()

	msgs, err := newWebhookClient().fetchMessages(srv.URL, "ada@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Title != "Hi" || msgs[1].Body != "green" {
		t.Errorf("unexpected messages: %v", msgs)
	}
}

func TestFetchMessagesNonJSONBodyIsEmptyList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	msgs, err := newWebhookClient().fetchMessages(srv.URL, "ada@example.com")
	if err != nil {
		t.Fatalf("non-JSON body should not error, got %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("want empty list, got %v", msgs)
	}
}

func TestFetchMessagesServerErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newWebhookClient().fetchMessages(srv.URL, "ada@example.com"); err == nil {
		t.Error("non-2xx status should surface as an error")
	}
}

func TestFetchRoster(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"userId":"u1","displayName":"Ada","count":3,"fromType":"user"},
			{"userId":"u2","displayName":"Workflows","count":1,"fromType":"bot"},
			{"userId":"u3","displayName":"Grace"}
		]`))
	}))
	defer srv.Close()

	entries, err := newWebhookClient().fetchRoster(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries", len(entries))
	}
	if !entries[1].IsBot() {
		t.Error("fromType bot not recognized")
	}
	if entries[2].FromType != "user" || entries[2].Count != 0 {
		t.Errorf("missing fields should default, got %+v", entries[2])
	}
}

func TestFetchRosterBadBodyIsInvalidData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":"object"}`))
	}))
	defer srv.Close()

	_, err := newWebhookClient().fetchRoster(srv.URL)
	if err == nil {
		t.Fatal("non-array body should error")
	}
	if !errors.Is(err, errInvalidData) {
		t.Errorf("want errInvalidData, got %v", err)
	}
}

func TestFetchAvatarNormalizesSize(t *testing.T) {
	body := pngResponse(t, 300, 200, color.RGBA{10, 20, 30, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	img, err := newWebhookClient().fetchAvatar(srv.URL, "userId", "u1")
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != KEY_SIZE || img.Bounds().Dy() != KEY_SIZE {
		t.Errorf("avatar bounds = %v, want %dx%d", img.Bounds(), KEY_SIZE, KEY_SIZE)
	}
}

func TestResolveUserFallsBackToInitialsOn404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	source := newAvatarSource(newAvatarCache(), newWebhookClient(), discardLogf)
	img := source.resolveUser(UserEntry{UserID: "u1", DisplayName: "Ada Lovelace", Count: 2}, srv.URL)
	if img == nil {
		t.Fatal("fallback should still yield an image")
	}

	want := renderInitials("Ada Lovelace", "")
	// corner pixel shows the pastel background; the badge sits center-low
	if img.RGBAAt(2, 2) != want.RGBAAt(2, 2) {
		t.Error("404 fallback did not use the initials background")
	}
}

func TestResolveUserFetchesOncePerKey(t *testing.T) {
	var hits int32
	body := pngResponse(t, KEY_SIZE, KEY_SIZE, color.RGBA{50, 60, 70, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	source := newAvatarSource(newAvatarCache(), newWebhookClient(), discardLogf)
	entry := UserEntry{UserID: "u1", DisplayName: "Ada", Count: 2}

	first := source.resolveUser(entry, srv.URL)
	second := source.resolveUser(entry, srv.URL)
	if first != second {
		t.Error("repeat resolve should return the cached image")
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("webhook hit %d times, want 1", n)
	}

	// a changed count is a different key and refetches
	entry.Count = 3
	source.resolveUser(entry, srv.URL)
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Errorf("webhook hit %d times after count change, want 2", n)
	}
}

func TestResolveUserNoWebhookSynthesizesInitials(t *testing.T) {
	cache := newAvatarCache()
	source := newAvatarSource(cache, newWebhookClient(), discardLogf)

	person := source.resolveUser(UserEntry{UserID: "u1", DisplayName: "Ada Lovelace", Count: 5}, "")
	bot := source.resolveUser(UserEntry{UserID: "b1", DisplayName: "Workflows", Count: 3, FromType: "bot"}, "")
	if person == nil || bot == nil {
		t.Fatal("both entries should resolve without a webhook")
	}
	if _, ok := cache.get("u1_5"); !ok {
		t.Error("person composite not cached under u1_5")
	}
	if _, ok := cache.get("b1_3"); !ok {
		t.Error("bot composite not cached under b1_3")
	}
}

func TestResolveUserBotSkipsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("bot entries must not hit the avatar webhook")
	}))
	defer srv.Close()

	source := newAvatarSource(newAvatarCache(), newWebhookClient(), discardLogf)
	img := source.resolveUser(UserEntry{UserID: "b1", DisplayName: "Workflows", Count: 1, FromType: "bot"}, srv.URL)
	if img == nil {
		t.Fatal("bot resolve returned nil")
	}
}

func TestResolveBaseCachesUnderEmail(t *testing.T) {
	var hits int32
	body := pngResponse(t, KEY_SIZE, KEY_SIZE, color.RGBA{50, 60, 70, 255})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	cache := newAvatarCache()
	source := newAvatarSource(cache, newWebhookClient(), discardLogf)

	source.resolveBase("ada@example.com", "ada", srv.URL)
	source.resolveBase("ada@example.com", "ada", srv.URL)
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Errorf("base fetched %d times, want 1", n)
	}
	if _, ok := cache.get("ada@example.com"); !ok {
		t.Error("base image not cached under the email key")
	}
}

func TestProbeStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("fail") == "1" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := newWebhookClient()

	status, err := client.probe(srv.URL, "ada@example.com")
	if err != nil || status != http.StatusOK {
		t.Errorf("probe ok path: status %d, err %v", status, err)
	}

	status, err = client.probe(srv.URL+"?fail=1", "")
	if err != nil || status != http.StatusForbidden {
		t.Errorf("probe fail path: status %d, err %v", status, err)
	}

	if _, err := client.probe("http://127.0.0.1:1", ""); err == nil {
		t.Error("unreachable host should error")
	}
}
