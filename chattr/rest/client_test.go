package rest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/message/c1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("page = %q", r.URL.Query().Get("page"))
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
			t.Errorf("auth = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"messages": [
				{"_id": "m2", "chat": "c1", "content": "later",
				 "sender": {"_id": "u2", "name": "bob"},
				 "createdAt": "2025-03-10T12:05:00Z"},
				{"_id": "m1", "chat": "c1", "content": "hi",
				 "sender": {"_id": "u1", "name": "alice"},
				 "attachments": [{"public_id": "p1", "url": "https://cdn/x.png"}],
				 "createdAt": "2025-03-10T12:00:00Z"}
			],
			"totalPages": 3
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	c.SetToken("tok-1")
	resp, err := c.GetMessages(context.Background(), "c1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if resp.TotalPages != 3 || len(resp.Messages) != 2 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Messages[1].Attachments[0].URL != "https://cdn/x.png" {
		t.Fatalf("attachment not decoded: %+v", resp.Messages[1])
	}
}

func TestChatDetailsPopulated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/c1" || r.URL.Query().Get("populate") != "true" {
			t.Errorf("url = %q", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chat": {"_id": "c1", "name": "team", "groupChat": true,
			"members": [{"_id": "u1", "name": "alice"}, {"_id": "u2", "name": "bob"}]}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	chat, err := c.ChatDetails(context.Background(), "c1", true)
	if err != nil {
		t.Fatal(err)
	}
	if !chat.GroupChat || len(chat.Members) != 2 || chat.Members[1].ID != "u2" {
		t.Fatalf("chat = %+v", chat)
	}
}

func TestMyChats(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/my" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chats": [{"_id": "c1", "name": "bob"}, {"_id": "c2", "name": "team", "groupChat": true}]}`))
	}))
	defer srv.Close()

	chats, err := NewClient(srv.URL).MyChats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(chats) != 2 || chats[1].Name != "team" {
		t.Fatalf("chats = %+v", chats)
	}
}

func TestErrorResponseSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "chat not found"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetMessages(context.Background(), "nope", 1)
	if err == nil || !strings.Contains(err.Error(), "chat not found") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("status missing from error: %v", err)
	}
}

func TestSendAttachmentsLimits(t *testing.T) {
	c := NewClient("http://unused")
	if _, err := c.SendAttachments(context.Background(), "c1", nil); err == nil {
		t.Fatalf("expected error for zero files")
	}
	files := make([]UploadFile, 6)
	for i := range files {
		files[i] = UploadFile{Name: "f", Reader: strings.NewReader("x")}
	}
	if _, err := c.SendAttachments(context.Background(), "c1", files); err == nil {
		t.Fatalf("expected error for six files")
	}
}

func TestSendAttachmentsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("chatId"); got != "c1" {
			t.Errorf("chatId = %q", got)
		}
		if n := len(r.MultipartForm.File["files"]); n != 2 {
			t.Errorf("files = %d, want 2", n)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message": "Attachments sent"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.SendAttachments(context.Background(), "c1", []UploadFile{
		{Name: "a.png", Reader: strings.NewReader("png-bytes")},
		{Name: "b.pdf", Reader: strings.NewReader("pdf-bytes")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Message != "Attachments sent" {
		t.Fatalf("resp = %+v", resp)
	}
}
