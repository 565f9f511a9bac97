package roster

import (
	"testing"

	"github.com/parleychat/parley/internal/chat"
)

func ids(l *List) []string {
	var out []string
	for _, c := range l.Items() {
		out = append(out, c.ID)
	}
	return out
}

func assertOrder(t *testing.T, l *List, want ...string) {
	t.Helper()
	got := ids(l)
	if len(got) != len(want) {
		t.Fatalf("got %d conversations %v, want %v", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	// The invariant itself: descending UpdatedAt.
	items := l.Items()
	for i := 1; i < len(items); i++ {
		if items[i-1].UpdatedAt < items[i].UpdatedAt {
			t.Fatalf("ordering invariant violated at %d: %d < %d", i, items[i-1].UpdatedAt, items[i].UpdatedAt)
		}
	}
}

func TestTouchReorders(t *testing.T) {
	l := New()
	l.Replace([]chat.Conversation{
		{ID: "a", UpdatedAt: 3000},
		{ID: "b", UpdatedAt: 2000},
		{ID: "c", UpdatedAt: 1000},
	})
	assertOrder(t, l, "a", "b", "c")

	if !l.Touch("c", chat.Summary{Body: "hi", SentAt: 4000}) {
		t.Fatal("Touch returned false for known conversation")
	}
	assertOrder(t, l, "c", "a", "b")

	got := l.Get("c")
	if got.LastMessage == nil || got.LastMessage.Body != "hi" {
		t.Errorf("summary = %+v, want body=hi", got.LastMessage)
	}
}

func TestTouchIgnoresOutOfOrderTimestamp(t *testing.T) {
	l := New()
	l.Replace([]chat.Conversation{
		{ID: "a", UpdatedAt: 3000, LastMessage: &chat.Summary{Body: "new", SentAt: 3000}},
		{ID: "b", UpdatedAt: 2000},
	})

	// A late-delivered event with an older timestamp must not demote "a"
	// or overwrite its summary.
	l.Touch("a", chat.Summary{Body: "stale", SentAt: 1500})
	assertOrder(t, l, "a", "b")
	if got := l.Get("a"); got.UpdatedAt != 3000 || got.LastMessage.Body != "new" {
		t.Errorf("conversation a = %+v, want untouched", got)
	}
}

func TestTouchUnknownConversation(t *testing.T) {
	l := New()
	if l.Touch("ghost", chat.Summary{SentAt: 100}) {
		t.Error("Touch returned true for unknown conversation")
	}
}

func TestReplaceKeepsNewerHeldEntry(t *testing.T) {
	l := New()
	l.Replace([]chat.Conversation{
		{ID: "a", UpdatedAt: 1000},
	})
	// A live event advanced "a" past what the (slower) list fetch knows.
	l.Touch("a", chat.Summary{Body: "live", SentAt: 5000})

	l.Replace([]chat.Conversation{
		{ID: "a", UpdatedAt: 2000, LastMessage: &chat.Summary{Body: "listed", SentAt: 2000}},
		{ID: "b", UpdatedAt: 3000},
	})
	assertOrder(t, l, "a", "b")
	if got := l.Get("a"); got.UpdatedAt != 5000 || got.LastMessage.Body != "live" {
		t.Errorf("conversation a = %+v, want live summary preserved", got)
	}
}

func TestUnreadCounter(t *testing.T) {
	l := New()
	l.Replace([]chat.Conversation{{ID: "a", UpdatedAt: 1000}})

	l.IncrementUnread("a")
	l.IncrementUnread("a")
	if got := l.Get("a").Unread; got != 2 {
		t.Errorf("Unread = %d, want 2", got)
	}
	l.ClearUnread("a")
	if got := l.Get("a").Unread; got != 0 {
		t.Errorf("Unread = %d, want 0", got)
	}
}

func TestDisplayDirect(t *testing.T) {
	c := &chat.Conversation{
		Kind: chat.KindDirect,
		Participants: []chat.Participant{
			{ID: "viewer", Name: "Me", AvatarURL: "me.png"},
			{ID: "u2", Name: "Ana", AvatarURL: "ana.png"},
		},
	}
	d := DisplayFor(c, "viewer")
	if d.Name != "Ana" || d.AvatarURL != "ana.png" {
		t.Errorf("display = %+v, want other participant", d)
	}
}

func TestDisplayGroupFallbacks(t *testing.T) {
	named := &chat.Conversation{Kind: chat.KindGroup, Name: "Plans", AvatarURL: "g.png"}
	if d := DisplayFor(named, "viewer"); d.Name != "Plans" || d.AvatarURL != "g.png" {
		t.Errorf("display = %+v", d)
	}

	anon := &chat.Conversation{Kind: chat.KindGroup}
	d := DisplayFor(anon, "viewer")
	if d.Name != labelGroup || d.Icon != iconGroup {
		t.Errorf("display = %+v, want generic label and icon", d)
	}
}

func TestDisplayFixedKinds(t *testing.T) {
	cases := []struct {
		kind  chat.Kind
		label string
		icon  string
	}{
		{chat.KindTeam, labelTeam, iconTeam},
		{chat.KindTeamStaff, labelTeamStaff, iconTeamStaff},
		{chat.KindBroadcast, labelBroadcast, iconBroadcast},
	}
	for _, tc := range cases {
		d := DisplayFor(&chat.Conversation{Kind: tc.kind}, "viewer")
		if d.Name != tc.label || d.Icon != tc.icon {
			t.Errorf("%s display = %+v, want %q/%q", tc.kind, d, tc.label, tc.icon)
		}
		// Explicit names win over the kind label.
		d = DisplayFor(&chat.Conversation{Kind: tc.kind, Name: "Named"}, "viewer")
		if d.Name != "Named" {
			t.Errorf("%s named display = %+v", tc.kind, d)
		}
	}
}
