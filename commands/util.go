package commands

import (
	"fmt"
	"sort"
	"time"
	"unicode"
	"unicode/utf8"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

// DurationArg matches durations like 1h30m, 2d or a plain number of minutes
type DurationArg struct {
	Min, Max time.Duration
}

var _ dcmd.ArgType = (*DurationArg)(nil)

func (d *DurationArg) CheckCompatibility(def *dcmd.ArgDef, part string) dcmd.CompatibilityResult {
	if len(part) < 1 {
		return dcmd.Incompatible
	}

	// the first character has to be a number
	r, _ := utf8.DecodeRuneInString(part)
	if !unicode.IsNumber(r) {
		return dcmd.Incompatible
	}

	dur, err := common.ParseDuration(part)
	if err != nil {
		return dcmd.Incompatible
	}

	if (d.Min != 0 && d.Min > dur) || (d.Max != 0 && d.Max < dur) {
		return dcmd.CompatibilityPoor
	}

	return dcmd.CompatibilityGood
}

func (d *DurationArg) ParseFromMessage(def *dcmd.ArgDef, part string, data *dcmd.Data) (interface{}, error) {
	dur, err := common.ParseDuration(part)
	if err != nil {
		return nil, dcmd.NewSimpleUserError(err.Error())
	}

	name := "duration"
	if def != nil {
		name = def.Name
	}

	if (d.Min != 0 && d.Min > dur) || (d.Max != 0 && d.Max < dur) {
		return nil, &DurationOutOfRangeError{ArgName: name, Got: dur, Max: d.Max, Min: d.Min}
	}

	return dur, nil
}

func (d *DurationArg) HelpName() string {
	return "Duration"
}

type DurationOutOfRangeError struct {
	Min, Max time.Duration
	Got      time.Duration
	ArgName  string
}

func (o *DurationOutOfRangeError) Error() string {
	preStr := "too big"
	if o.Got < o.Min {
		preStr = "too small"
	}

	switch {
	case o.Min == 0:
		return fmt.Sprintf("%s is %s, has to be smaller than %s", o.ArgName, preStr, common.HumanizeDuration(common.DurationPrecisionMinutes, o.Max))
	case o.Max == 0:
		return fmt.Sprintf("%s is %s, has to be bigger than %s", o.ArgName, preStr, common.HumanizeDuration(common.DurationPrecisionMinutes, o.Min))
	default:
		return fmt.Sprintf("%s is %s (has to be within `%s` and `%s`)", o.ArgName, preStr, common.HumanizeDuration(common.DurationPrecisionMinutes, o.Min), common.HumanizeDuration(common.DurationPrecisionMinutes, o.Max))
	}
}

func (o *DurationOutOfRangeError) IsUserError() bool {
	return true
}

// PublicError is an error whose message is shown to the user
type PublicError string

func (p PublicError) Error() string {
	return string(p)
}

func NewPublicError(a ...interface{}) PublicError {
	return PublicError(fmt.Sprint(a...))
}

func NewPublicErrorF(f string, a ...interface{}) PublicError {
	return PublicError(fmt.Sprintf(f, a...))
}

func IsPublicError(err error) bool {
	var p PublicError
	return errors.As(err, &p)
}

var permissionNames = map[int64]string{
	discordgo.PermissionAdministrator:       "Administrator",
	discordgo.PermissionManageServer:        "ManageServer",
	discordgo.PermissionManageRoles:         "ManageRoles",
	discordgo.PermissionManageChannels:      "ManageChannels",
	discordgo.PermissionManageMessages:      "ManageMessages",
	discordgo.PermissionManageNicknames:     "ManageNicknames",
	discordgo.PermissionKickMembers:         "KickMembers",
	discordgo.PermissionBanMembers:          "BanMembers",
	discordgo.PermissionSendMessages:        "SendMessages",
	discordgo.PermissionViewChannel:         "ReadMessages",
	discordgo.PermissionEmbedLinks:          "EmbedLinks",
	discordgo.PermissionAddReactions:        "AddReactions",
	discordgo.PermissionReadMessageHistory:  "ReadMessageHistory",
	discordgo.PermissionModerateMembers:     "ModerateMembers",
	discordgo.PermissionMentionEveryone:     "MentionEveryone",
	discordgo.PermissionChangeNickname:      "ChangeNickname",
	discordgo.PermissionManageWebhooks:      "ManageWebhooks",
	discordgo.PermissionViewAuditLogs:       "ViewAuditLogs",
	discordgo.PermissionCreateInstantInvite: "CreateInstantInvite",
}

// HumanizePermissions returns the names of the permissions in perms, sorted
func HumanizePermissions(perms int64) []string {
	res := make([]string, 0, 2)
	for bit, name := range permissionNames {
		if perms&bit == bit {
			res = append(res, name)
		}
	}

	sort.Strings(res)
	return res
}

func CmdNotFound(search string) string {
	return fmt.Sprintf("Couldn't find command '%s'", search)
}

// ensureEmbedLimits cuts the fields of the embed down to what discord accepts
func ensureEmbedLimits(embed *discordgo.MessageEmbed) {
	if utf8.RuneCountInString(embed.Title) > 256 {
		embed.Title = common.CutStringShort(embed.Title, 256)
	}

	if utf8.RuneCountInString(embed.Description) > 4096 {
		embed.Description = common.CutStringShort(embed.Description, 4096)
	}

	if len(embed.Fields) > 25 {
		embed.Fields = embed.Fields[:25]
	}

	for _, f := range embed.Fields {
		if utf8.RuneCountInString(f.Name) > 256 {
			f.Name = common.CutStringShort(f.Name, 256)
		}
		if utf8.RuneCountInString(f.Value) > 1024 {
			f.Value = common.CutStringShort(f.Value, 1024)
		}
	}
}
