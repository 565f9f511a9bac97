package roster

import "github.com/parleychat/parley/internal/chat"

// Fallback labels and icon classes per conversation kind.
const (
	labelGroup     = "Group chat"
	labelTeam      = "Team"
	labelTeamStaff = "Team & staff"
	labelBroadcast = "Broadcast"

	iconGroup     = "icon-group"
	iconTeam      = "icon-team"
	iconTeamStaff = "icon-team-staff"
	iconBroadcast = "icon-broadcast"
)

// Display is the render-ready identity of a conversation list entry.
type Display struct {
	Name      string
	AvatarURL string // empty when Icon applies
	Icon      string // fixed icon class for non-direct, non-group kinds
}

// DisplayFor derives the list presentation of a conversation for the
// given viewer. Pure function of its inputs; called on every render of
// every list item, so it must not touch I/O or mutate anything.
func DisplayFor(c *chat.Conversation, viewerID string) Display {
	switch c.Kind {
	case chat.KindDirect:
		for _, p := range c.Participants {
			if p.ID != viewerID {
				return Display{Name: p.Name, AvatarURL: p.AvatarURL}
			}
		}
		// Degenerate direct conversation with only the viewer.
		return Display{Name: c.Name, Icon: iconGroup}
	case chat.KindGroup:
		d := Display{Name: c.Name, AvatarURL: c.AvatarURL}
		if d.Name == "" {
			d.Name = labelGroup
		}
		if d.AvatarURL == "" {
			d.Icon = iconGroup
		}
		return d
	case chat.KindTeam:
		return fixedDisplay(c.Name, labelTeam, iconTeam)
	case chat.KindTeamStaff:
		return fixedDisplay(c.Name, labelTeamStaff, iconTeamStaff)
	case chat.KindBroadcast:
		return fixedDisplay(c.Name, labelBroadcast, iconBroadcast)
	default:
		return Display{Name: c.Name, Icon: iconGroup}
	}
}

func fixedDisplay(name, fallback, icon string) Display {
	if name == "" {
		name = fallback
	}
	return Display{Name: name, Icon: icon}
}
