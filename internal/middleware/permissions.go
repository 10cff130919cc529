package middleware

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/internal/config"
	"github.com/keshon/jukebox/pkg/cmd"
)

var PermissionNames = map[int64]string{
	discordgo.PermissionAdministrator:    "Administrator",
	discordgo.PermissionManageGuild:      "Manage Server",
	discordgo.PermissionManageChannels:   "Manage Channels",
	discordgo.PermissionManageMessages:   "Manage Messages",
	discordgo.PermissionVoiceConnect:     "Connect to Voice Channel",
	discordgo.PermissionVoiceSpeak:       "Speak",
	discordgo.PermissionVoiceMoveMembers: "Move Members",
	discordgo.PermissionVoiceMuteMembers: "Mute Members",
}

// WithUserPermissionCheck requires at least one of the command's
// UserPermissions. Administrators and the developer always pass.
func WithUserPermissionCheck() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			v, ok := inv.Data.(*command.SlashInteractionContext)
			if !ok {
				return c.Run(ctx, inv)
			}
			meta, ok := command.Meta(c)
			if !ok || len(meta.UserPermissions()) == 0 {
				return c.Run(ctx, inv)
			}
			m := v.Event.Member
			if v.Event.GuildID == "" || m == nil || m.User == nil {
				return c.Run(ctx, inv)
			}
			if config.IsDeveloper(v.Config, m.User.ID) {
				return c.Run(ctx, inv)
			}

			memberPerms, err := v.Session.UserChannelPermissions(m.User.ID, v.Event.ChannelID)
			if err != nil {
				return fmt.Errorf("failed to get user permissions: %w", err)
			}
			if hasAnyPermission(memberPerms, meta.UserPermissions()) {
				return c.Run(ctx, inv)
			}
			return reply(v.Session, v.Event, missingPermissionsMessage(meta.UserPermissions()))
		})
	}
}

func hasAnyPermission(have int64, required []int64) bool {
	if have&discordgo.PermissionAdministrator != 0 {
		return true
	}
	for _, p := range required {
		if have&p != 0 {
			return true
		}
	}
	return false
}

func missingPermissionsMessage(required []int64) string {
	allowed := make([]string, 0, len(required))
	for _, p := range required {
		name := PermissionNames[p]
		if name == "" {
			name = fmt.Sprintf("0x%x", p)
		}
		allowed = append(allowed, name)
	}
	return fmt.Sprintf(
		"You need at least one of the following permissions to run this command:\n`%s`",
		strings.Join(allowed, "`, `"),
	)
}
