package reminders

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

const (
	MaxReminders = 25

	MaxReminderOffset            = time.Hour * 24 * 366
	MaxReminderOffsetExceededMsg = "Can be max 1 year from now..."

	MinRepeatInterval = time.Hour
)

var cmds = []*commands.YuzuCommand{
	{
		CmdCategory:  commands.CategoryTool,
		Name:         "Remindme",
		Description:  "Schedules a reminder, example: 'remindme 1h30min are you still alive?' or 'remindme tomorrow at 5pm feed the cat'",
		Aliases:      []string{"remind", "reminder"},
		RequiredArgs: 2,
		Arguments: []*dcmd.ArgDef{
			{Name: "Time", Type: dcmd.String},
			{Name: "Message", Type: dcmd.String},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "channel", Help: "Channel to remind you in", Type: dcmd.Channel},
			{Name: "repeat", Help: "Repeat the reminder at this interval", Type: &commands.DurationArg{Min: MinRepeatInterval, Max: MaxReminderOffset}},
		},
		RunFunc: cmdFuncRemindme,
	},
	{
		CmdCategory: commands.CategoryTool,
		Name:        "Reminders",
		Description: "Lists your active reminders in the server, use in DM to see all your reminders",
		RunInDM:     true,
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			// if used in a server only show the reminders in that server
			inServerSuffix := ""
			if data.GuildID != "" {
				inServerSuffix = " in this server"
			}

			currentReminders, err := GetUserReminders(data.Author.ID, data.GuildID)
			if err != nil {
				return nil, err
			}

			if len(currentReminders) == 0 {
				return fmt.Sprintf("You have no reminders%s. Create reminders with the `remindme` command", inServerSuffix), nil
			}

			out := fmt.Sprintf("Your reminders%s:\n", inServerSuffix)
			out += DisplayReminders(currentReminders, ModeDisplayUserReminders)
			out += "\nRemove a reminder with `delreminder/rmreminder (id)` where id is the first number for each reminder above.\nTo clear all reminders, use `delreminder` with the `-a` switch."
			return out, nil
		},
	},
	{
		CmdCategory:         commands.CategoryTool,
		Name:                "CReminders",
		Aliases:             []string{"channelreminders"},
		Description:         "Lists reminders in channel",
		RequireDiscordPerms: []int64{discordgo.PermissionManageChannels},
		RunFunc: func(data *dcmd.Data) (interface{}, error) {
			currentReminders, err := GetChannelReminders(data.GuildID, data.ChannelID)
			if err != nil {
				return nil, err
			}

			if len(currentReminders) == 0 {
				return "There are no reminders in this channel.", nil
			}

			out := "Reminders in this channel:\n"
			out += DisplayReminders(currentReminders, ModeDisplayChannelReminders)
			out += "\nRemove a reminder with `delreminder/rmreminder (id)` where id is the first number for each reminder above"
			return out, nil
		},
	},
	{
		CmdCategory: commands.CategoryTool,
		Name:        "DelReminder",
		Aliases:     []string{"rmreminder"},
		Description: "Deletes a reminder. You can delete reminders from other users provided you are running this command in the same guild the reminder was created in and have the Manage Channel permission in the channel the reminder was created in.",
		RunInDM:     true,
		Arguments: []*dcmd.ArgDef{
			{Name: "ID", Type: dcmd.Int},
		},
		ArgSwitches: []*dcmd.ArgDef{
			{Name: "a", Help: "All"},
		},
		RunFunc: cmdFuncDelReminder,
	},
}

func cmdFuncRemindme(data *dcmd.Data) (interface{}, error) {
	if data.Author.Bot {
		return nil, commands.NewPublicError("Cannot create reminders for bots")
	}

	currentReminders, err := GetUserReminders(data.Author.ID, "")
	if err != nil {
		return nil, err
	}
	if len(currentReminders) >= MaxReminders {
		return fmt.Sprintf("You can have a maximum of %d active reminders; list all your reminders with the `reminders` command in DM, doing it in a server will only show reminders set in the server", MaxReminders), nil
	}

	now := time.Now()
	when, message, err := parseReminderTime(data.Args[0].Str(), data.Args[1].Str(), now)
	if err != nil {
		return nil, commands.NewPublicError(err.Error())
	}

	offsetFromNow := when.Sub(now)
	if offsetFromNow <= 0 {
		return "That time has already passed", nil
	}
	if offsetFromNow > MaxReminderOffset {
		return MaxReminderOffsetExceededMsg, nil
	}
	if message == "" {
		return "What should I remind you of?", nil
	}

	channelID := data.ChannelID
	if c := data.Switch("channel"); c != nil && c.Value != nil {
		channel := c.Channel()
		ok, err := bot.AdminOrPerm(data.Session, discordgo.PermissionSendMessages|discordgo.PermissionViewChannel, data.Author.ID, channel.ID)
		if err != nil {
			return "Failed checking permissions, please try again", err
		}
		if !ok {
			return fmt.Sprintf("You do not have permissions to send messages in <#%s>", channel.ID), nil
		}
		channelID = channel.ID
	}

	var repeat time.Duration
	if r := data.Switch("repeat"); r != nil && r.Value != nil {
		repeat = r.Value.(time.Duration)
	}

	reminder, err := NewReminder(data.Author.ID, data.GuildID, channelID, message, when, repeat)
	if err != nil {
		return nil, err
	}
	scheduleNew(reminder)

	durString := common.HumanizeDuration(common.DurationPrecisionSeconds, offsetFromNow)
	out := fmt.Sprintf("Set a reminder in %s from now (<t:%d:f>)", durString, when.Unix())
	if repeat > 0 {
		out += fmt.Sprintf(", repeating every %s", common.HumanizeDuration(common.DurationPrecisionMinutes, repeat))
	}
	return out + "\nView reminders with the `reminders` command", nil
}

func cmdFuncDelReminder(data *dcmd.Data) (interface{}, error) {
	if data.Switch("a").Bool() {
		currentReminders, err := GetUserReminders(data.Author.ID, "")
		if err != nil {
			return "Error clearing reminders", err
		}

		if len(currentReminders) == 0 {
			return "No reminders to clear", nil
		}

		for _, r := range currentReminders {
			cancelTimer(r.ID)
			if err := DeleteReminder(r); err != nil {
				return "Error clearing reminders", err
			}
		}
		return fmt.Sprintf("Cleared %d reminders", len(currentReminders)), nil
	}

	if len(data.Args) == 0 || data.Args[0].Value == nil {
		return "No reminder ID provided", nil
	}

	reminder, err := FindReminder(data.Args[0].Int64())
	if err != nil {
		return "Error retrieving reminder", err
	}
	if reminder == nil {
		return "No reminder by that ID found", nil
	}

	if reminder.UserID != data.Author.ID {
		if reminder.GuildID == "" || reminder.GuildID != data.GuildID {
			return "You can only delete reminders that are not your own in the guild the reminder was originally created", nil
		}

		ok, err := bot.AdminOrPerm(data.Session, discordgo.PermissionManageChannels, data.Author.ID, reminder.ChannelID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return "You need manage channel permission in the channel the reminder is in to delete reminders that are not your own", nil
		}
	}

	cancelTimer(reminder.ID)
	if err := DeleteReminder(reminder); err != nil {
		return nil, err
	}

	return fmt.Sprintf("Deleted reminder **#%d**: '%s'", reminder.ID, CutReminderShort(reminder.Message)), nil
}

type DisplayRemindersMode int

const (
	ModeDisplayChannelReminders DisplayRemindersMode = iota
	ModeDisplayUserReminders
)

func DisplayReminders(reminders []*Reminder, mode DisplayRemindersMode) string {
	var out strings.Builder
	for _, r := range reminders {
		t := r.Time()
		timeFromNow := common.HumanizeDuration(common.DurationPrecisionMinutes, time.Until(t))
		tStr := t.UTC().Format(time.RFC822)

		switch mode {
		case ModeDisplayChannelReminders:
			fmt.Fprintf(&out, "**%d**: <@%s>: '%s' - %s from now (%s)", r.ID, r.UserID, CutReminderShort(r.Message), timeFromNow, tStr)
		case ModeDisplayUserReminders:
			fmt.Fprintf(&out, "**%d**: <#%s>: '%s' - %s from now (%s)", r.ID, r.ChannelID, CutReminderShort(r.Message), timeFromNow, tStr)
		}

		if r.Repeat > 0 {
			out.WriteString(" (repeats every " + common.HumanizeDuration(common.DurationPrecisionMinutes, r.Repeat) + ")")
		}
		out.WriteString("\n")
	}
	return out.String()
}
