package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/onnwee/guild-tender/permission"
	"github.com/onnwee/guild-tender/platform"
	"github.com/onnwee/guild-tender/telemetry"
)

const allowUsage = "I need \n(1) `true` to give permission or `false` to remove it, \n(2) a command name (without the prefix) and \n(3) a role name or username for this command. Roles have precedence over users with the same name."

// handleAllow mutates a command's allow lists. The target name is the joined
// remainder of the arguments, so role and user names containing spaces work.
// A role with the given name wins over a user with the same name.
func (b *Bot) handleAllow(ctx context.Context, msg platform.Message, args []string) error {
	if !b.Perms.IsAuthorized(msg.Author, "allow") {
		telemetry.CommandsDenied.Inc()
		return nil
	}
	if len(args) < 3 || (args[0] != "true" && args[0] != "false") {
		return b.reply(ctx, msg, allowUsage)
	}
	give := args[0] == "true"
	command := args[1]
	name := strings.Join(args[2:], " ")

	verb := "can now"
	if !give {
		verb = "can no longer"
	}

	role, err := b.Session.RoleByName(ctx, name)
	if err != nil {
		return fmt.Errorf("resolve role %q: %w", name, err)
	}
	if role != nil {
		if err := b.Perms.Grant(command, permission.TargetRole, role.ID, give); err != nil {
			return err
		}
		return b.reply(ctx, msg, fmt.Sprintf("The role '%s' %s execute the command `%s`.", role.Name, verb, command))
	}

	member, err := b.Session.MemberByName(ctx, name)
	if err != nil {
		return fmt.Errorf("resolve member %q: %w", name, err)
	}
	if member == nil {
		return b.reply(ctx, msg, fmt.Sprintf("Found neither a user nor a role with the name '%s' on this server.", name))
	}
	if err := b.Perms.Grant(command, permission.TargetUser, member.ID, give); err != nil {
		return err
	}
	return b.reply(ctx, msg, fmt.Sprintf("The user '%s' %s execute the command `%s`.", member.DisplayName, verb, command))
}
