package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/parleychat/parley/internal/chat"
)

func TestListConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversations" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("kind"); got != "direct" {
			t.Errorf("kind = %q, want direct", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("auth = %q, want Bearer tok", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]conversationDTO{
			{ID: "c1", Kind: "direct", UpdatedAt: 5000,
				LastMessage: &summaryDTO{Body: "hey", SenderID: "u2", SentAt: 5000}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	convs, err := c.ListConversations(context.Background(), chat.KindDirect)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 1 || convs[0].ID != "c1" {
		t.Fatalf("convs = %+v, want one c1", convs)
	}
	if convs[0].LastMessage == nil || convs[0].LastMessage.Body != "hey" {
		t.Errorf("LastMessage = %+v", convs[0].LastMessage)
	}
}

func TestFetchMessagePageOrdersAndInfersHasMore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("pageSize"); got != "3" {
			t.Errorf("pageSize = %q, want 3", got)
		}
		w.Header().Set("Content-Type", "application/json")
		// Server answers newest-first; client must normalize ascending.
		_ = json.NewEncoder(w).Encode([]messageDTO{
			{ID: "m3", ConversationID: "c1", Body: "three", CreatedAt: 3000},
			{ID: "m2", ConversationID: "c1", Body: "two", CreatedAt: 2000},
			{ID: "m1", ConversationID: "c1", Body: "one", CreatedAt: 1000},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	page, err := c.FetchMessagePage(context.Background(), "c1", 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !page.HasMore {
		t.Error("HasMore = false, want true for a full page")
	}
	want := []string{"m1", "m2", "m3"}
	for i, id := range want {
		if page.Messages[i].ID != id {
			t.Errorf("messages[%d].ID = %q, want %q", i, page.Messages[i].ID, id)
		}
	}
	if page.Messages[0].State != chat.StateConfirmed {
		t.Errorf("state = %q, want confirmed", page.Messages[0].State)
	}
}

func TestFetchMessagePagePartialPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]messageDTO{
			{ID: "m1", ConversationID: "c1", Body: "one", CreatedAt: 1000},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	page, err := c.FetchMessagePage(context.Background(), "c1", 2, 20)
	if err != nil {
		t.Fatal(err)
	}
	if page.HasMore {
		t.Error("HasMore = true, want false for a short page")
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Body != "hi" {
			t.Errorf("body = %q, want hi", req.Body)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(messageDTO{
			ID: "m100", ConversationID: "c1", Body: req.Body, CreatedAt: 9000,
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	msg, err := c.SendMessage(context.Background(), "c1", "hi")
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "m100" || msg.State != chat.StateConfirmed {
		t.Errorf("msg = %+v, want id=m100 confirmed", msg)
	}
}

func TestErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.MarkRead(context.Background(), "c1")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
}

func TestCreateConversation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createConversationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Kind != "group" || len(req.ParticipantIDs) != 2 {
			t.Errorf("req = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(conversationDTO{ID: "g1", Kind: req.Kind, Name: req.Name})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	conv, err := c.CreateConversation(context.Background(), chat.KindGroup, "Team", []string{"u1", "u2"})
	if err != nil {
		t.Fatal(err)
	}
	if conv.ID != "g1" || conv.Kind != chat.KindGroup {
		t.Errorf("conv = %+v", conv)
	}
}
