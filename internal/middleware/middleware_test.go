package middleware

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/keshon/jukebox/internal/command"
	"github.com/keshon/jukebox/pkg/cmd"
	"github.com/rs/zerolog"
)

type stubCommand struct {
	runs  int
	perms []int64
}

func (p *stubCommand) Name() string             { return "music" }
func (p *stubCommand) Description() string      { return "stub" }
func (p *stubCommand) Group() string            { return "music" }
func (p *stubCommand) Category() string         { return "🎵 Music" }
func (p *stubCommand) UserPermissions() []int64 { return p.perms }
func (p *stubCommand) Run(context.Context, any) error {
	p.runs++
	return nil
}

func captureReplies(t *testing.T) *[]string {
	t.Helper()
	var got []string
	orig := reply
	reply = func(_ *discordgo.Session, _ *discordgo.InteractionCreate, msg string) error {
		got = append(got, msg)
		return nil
	}
	t.Cleanup(func() { reply = orig })
	return &got
}

func slashCtx(guildID, userID string) *command.SlashInteractionContext {
	return &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			GuildID: guildID,
			Member:  &discordgo.Member{User: &discordgo.User{ID: userID, Username: userID}},
		}},
	}
}

func run(t *testing.T, c cmd.Command, data any) {
	t.Helper()
	if err := c.Run(context.Background(), &cmd.Invocation{Data: data}); err != nil {
		t.Fatal(err)
	}
}

func TestGuildOnly(t *testing.T) {
	replies := captureReplies(t)
	p := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithGuildOnly())

	run(t, c, slashCtx("", "ann"))
	if p.runs != 0 || len(*replies) != 1 {
		t.Errorf("DM invocation: runs %d replies %v", p.runs, *replies)
	}

	run(t, c, slashCtx("g1", "ann"))
	if p.runs != 1 {
		t.Errorf("guild invocation did not run")
	}
}

func TestCooldown(t *testing.T) {
	replies := captureReplies(t)
	p := &stubCommand{}
	lim := command.NewLimiter(1 << 40)
	exempt := func(v *command.SlashInteractionContext) bool { return v.Event.Member.User.ID == "admin" }
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithCooldown(lim, exempt))

	run(t, c, slashCtx("g1", "ann"))
	run(t, c, slashCtx("g1", "ann"))
	if p.runs != 1 || len(*replies) != 1 || !strings.Contains((*replies)[0], "too fast") {
		t.Errorf("cooldown: runs %d replies %v", p.runs, *replies)
	}

	run(t, c, slashCtx("g1", "admin"))
	run(t, c, slashCtx("g1", "admin"))
	if p.runs != 3 {
		t.Errorf("exempt caller was limited: runs %d", p.runs)
	}
}

func TestPermissionCheckSkipsCommandsWithoutRequirements(t *testing.T) {
	captureReplies(t)
	p := &stubCommand{}
	c := cmd.Apply(&command.DiscordAdapter{Cmd: p}, WithUserPermissionCheck(), WithCommandLogger(zerolog.Nop()))

	// No session is needed when nothing is required and storage is unset.
	run(t, c, slashCtx("g1", "ann"))
	if p.runs != 1 {
		t.Errorf("runs: %d", p.runs)
	}
}

func TestHasAnyPermission(t *testing.T) {
	required := []int64{discordgo.PermissionManageGuild, discordgo.PermissionManageChannels}
	if !hasAnyPermission(discordgo.PermissionManageChannels, required) {
		t.Error("one of the permissions should suffice")
	}
	if !hasAnyPermission(discordgo.PermissionAdministrator, required) {
		t.Error("administrator passes every check")
	}
	if hasAnyPermission(discordgo.PermissionVoiceSpeak, required) {
		t.Error("unrelated permission accepted")
	}
	msg := missingPermissionsMessage(required)
	if !strings.Contains(msg, "Manage Server`, `Manage Channels") {
		t.Errorf("message: %q", msg)
	}
}
