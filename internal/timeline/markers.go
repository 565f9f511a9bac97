package timeline

import (
	"time"

	"github.com/parleychat/parley/internal/chat"
)

// Annotation is a derived marker the presentation layer renders before
// the message it names. Annotations are recomputed per render pass,
// never stored on messages.
type Annotation struct {
	Identity    string // identity of the message the marker precedes
	NewDay      bool
	Day         string // YYYY-MM-DD, local time
	FirstUnread bool
}

// Annotate scans the ordered messages once and produces the date
// boundaries plus the "new messages" divider. The divider precedes the
// first message from someone else that the viewer has not read.
func Annotate(msgs []chat.Message, viewerID string) []Annotation {
	var out []Annotation
	prevDay := ""
	unreadMarked := false

	for _, m := range msgs {
		var a Annotation

		day := time.UnixMilli(m.CreatedAt).Local().Format("2006-01-02")
		if day != prevDay {
			a.NewDay = true
			a.Day = day
			prevDay = day
		}

		if !unreadMarked && !m.ReadByViewer && m.SenderID != viewerID && m.State == chat.StateConfirmed {
			a.FirstUnread = true
			unreadMarked = true
		}

		if a.NewDay || a.FirstUnread {
			a.Identity = m.Identity()
			out = append(out, a)
		}
	}
	return out
}
