package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPublishDigest(t *testing.T) {
	t.Parallel()

	var gotPath, gotChat, gotText string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotChat = r.PostForm.Get("chat_id")
		gotText = r.PostForm.Get("text")
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithAPIBase(srv.URL + "/")
	if err := n.PublishDigest(context.Background(), "daily report 2026-10-15"); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if gotPath != "/bottoken/sendMessage" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotChat != "42" || gotText != "daily report 2026-10-15" {
		t.Fatalf("unexpected form chat=%q text=%q", gotChat, gotText)
	}
}

func TestPublishDigestTruncatesAndReportsStatus(t *testing.T) {
	t.Parallel()

	var gotLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		gotLen = len(r.PostForm.Get("text"))
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithAPIBase(srv.URL)
	err := n.PublishDigest(context.Background(), strings.Repeat("x", maxMessageLen+100))
	if err == nil {
		t.Fatalf("expected status error")
	}
	if gotLen != maxMessageLen {
		t.Fatalf("text not truncated: %d", gotLen)
	}
}

func TestPublishDigestTruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm.Get("text")
	}))
	defer srv.Close()

	n := NewNotifier("token", "42").WithAPIBase(srv.URL)
	digest := "Last error: " + strings.Repeat("ошибка ", maxMessageLen)
	if err := n.PublishDigest(context.Background(), digest); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("truncated text is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxMessageLen {
		t.Fatalf("expected %d characters, got %d", maxMessageLen, n)
	}
	if !strings.HasPrefix(digest, got) {
		t.Fatalf("truncated text is not a prefix of the digest")
	}
}

func TestPublishDigestMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "").PublishDigest(context.Background(), "x"); err == nil {
		t.Fatalf("expected error")
	}
}
