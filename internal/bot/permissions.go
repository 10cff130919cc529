package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/config"
)

// IsAdministrator reports whether a member owns the guild, holds an
// administrator role, or is the configured developer.
func IsAdministrator(s *discordgo.Session, member *discordgo.Member, cfg *config.Config) bool {
	if member == nil || member.User == nil {
		return false
	}
	if config.IsDeveloper(cfg, member.User.ID) {
		return true
	}

	guild, err := s.State.Guild(member.GuildID)
	if err != nil || guild == nil {
		guild, err = s.Guild(member.GuildID)
		if err != nil || guild == nil {
			return false
		}
	}

	if member.User.ID == guild.OwnerID {
		return true
	}
	for _, roleID := range member.Roles {
		if role, _ := s.State.Role(guild.ID, roleID); role != nil {
			if role.Permissions&discordgo.PermissionAdministrator != 0 {
				return true
			}
		}
	}
	return false
}

// InteractionUser returns the user behind an interaction whether it came from
// a guild (Member) or a DM (User).
func InteractionUser(e *discordgo.InteractionCreate) *discordgo.User {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User
	}
	if e.User != nil {
		return e.User
	}
	return &discordgo.User{ID: "unknown", Username: "Unknown"}
}

// DisplayName is the name shown for the interaction's user: the server
// nickname, then the global display name, then the username.
func DisplayName(e *discordgo.InteractionCreate) string {
	if e.Member != nil && e.Member.Nick != "" {
		return e.Member.Nick
	}
	u := InteractionUser(e)
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
