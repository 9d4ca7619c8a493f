package commands

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"github.com/yuzubot/yuzu/common"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

var (
	CategoryGeneral = &dcmd.Category{
		Name:        "General",
		Description: "General & informational commands",
		HelpEmoji:   "ℹ️",
		EmbedColor:  0xe53939,
	}
	CategoryTool = &dcmd.Category{
		Name:        "Tools & Utilities",
		Description: "Server management and other tools",
		HelpEmoji:   "🔨",
		EmbedColor:  0xeaed40,
	}
	CategoryModeration = &dcmd.Category{
		Name:        "Moderation",
		Description: "Moderation commands",
		HelpEmoji:   "👮",
		EmbedColor:  0xdb0606,
	}
	CategoryFun = &dcmd.Category{
		Name:        "Fun",
		Description: "Roleplay actions and other commands meant for entertainment",
		HelpEmoji:   "🎉",
		EmbedColor:  0x5ae26c,
	}
	CategoryRoleMenu = &dcmd.Category{
		Name:        "Role Menus",
		Description: "Reaction role menus",
		HelpEmoji:   "🎭",
		EmbedColor:  0x9b59b6,
	}
)

// YuzuCommand is the command type every plugin uses. It adds permission checks,
// cooldowns, a timeout and error humanization on top of a plain dcmd command.
type YuzuCommand struct {
	Name            string   // Name of command, what its called from
	Aliases         []string // Aliases which it can also be called from
	Description     string   // Description shown in non targetted help
	LongDescription string   // Longer description when this command was targetted

	Arguments      []*dcmd.ArgDef // data.Args will always be the same size as this slice, although the values may be nil
	RequiredArgs   int            // Ignored if combos is specified
	ArgumentCombos [][]int
	ArgSwitches    []*dcmd.ArgDef

	Cooldown           int // Seconds before the same user can use it again
	GuildScopeCooldown int // Seconds before anyone on the server can use it again
	CmdCategory        *dcmd.Category

	RunInDM      bool
	HideFromHelp bool

	// The user needs one of these permission sets, Administrator passes all of them
	RequireDiscordPerms      []int64
	RequiredDiscordPermsHelp string

	// Restricts the command to the bot owner
	OwnerOnly bool

	Middlewares []dcmd.MiddleWareFunc

	// RunFunc is called after the arguments were parsed.
	// The reply can be a string, an embed, a slice of embeds or a dcmd.Response.
	RunFunc dcmd.RunFunc

	Plugin common.Plugin
}

var (
	_ dcmd.Cmd                 = (*YuzuCommand)(nil)
	_ dcmd.CmdWithCategory     = (*YuzuCommand)(nil)
	_ dcmd.CmdWithDescriptions = (*YuzuCommand)(nil)
	_ dcmd.CmdWithArgDefs      = (*YuzuCommand)(nil)
	_ dcmd.CmdWithSwitches     = (*YuzuCommand)(nil)
)

func (yc *YuzuCommand) Category() *dcmd.Category {
	return yc.CmdCategory
}

func (yc *YuzuCommand) Descriptions(data *dcmd.Data) (short, long string) {
	if yc.LongDescription == "" {
		return yc.Description, yc.Description
	}
	return yc.Description, yc.Description + "\n" + yc.LongDescription
}

func (yc *YuzuCommand) ArgDefs(data *dcmd.Data) (args []*dcmd.ArgDef, required int, combos [][]int) {
	return yc.Arguments, yc.RequiredArgs, yc.ArgumentCombos
}

func (yc *YuzuCommand) Switches() []*dcmd.ArgDef {
	return yc.ArgSwitches
}

var metricsExecutedCommands = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yuzu_commands_total",
	Help: "Commands the bot executed",
}, []string{"name"})

func (yc *YuzuCommand) Run(data *dcmd.Data) (interface{}, error) {
	if !yc.RunInDM && data.Source == dcmd.TriggerSourceDM {
		return nil, nil
	}

	logger := yc.Logger(data)
	cmdFullName := yc.FindNameFromContainerChain(data.ContainerChain)

	started := time.Now()
	defer func() {
		raw := ""
		if data.Message != nil {
			raw = data.Message.Content
		}
		logger.Infof("Handled Command [%4dms] %s", int(time.Since(started).Seconds()*1000), raw)
	}()

	metricsExecutedCommands.With(prometheus.Labels{"name": cmdFullName}).Inc()

	timeout := common.ConfCmdTimeout.GetDuration()
	runCtx, cancelExec := context.WithTimeout(data.Context(), timeout)
	defer cancelExec()

	r, cmdErr := yc.RunFunc(data.WithContext(runCtx))
	if cmdErr != nil && (errors.Is(cmdErr, context.Canceled) || errors.Is(cmdErr, context.DeadlineExceeded)) {
		r = "Took longer than " + timeout.String() + " to handle the command, cancelled it."
	}

	if (r == nil || r == "") && cmdErr != nil {
		r = yc.humanizeError(cmdErr)
	}

	if cmdErr == nil {
		err := yc.SetCooldowns(data.ContainerChain, data.Author.ID, data.GuildID)
		if err != nil {
			logger.WithError(err).Error("Failed setting cooldown")
		}
	}

	// user errors are not logged as actual errors
	if cmdErr != nil && (dcmd.IsUserError(cmdErr) || IsPublicError(cmdErr)) {
		cmdErr = nil
	}

	return r, cmdErr
}

func (yc *YuzuCommand) humanizeError(err error) string {
	var public PublicError
	if errors.As(err, &public) {
		return "The command returned an error: " + public.Error()
	}

	if dcmd.IsUserError(err) {
		return "Unable to run the command: " + errors.Cause(err).Error()
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Message != "" {
		if restErr.Response != nil && restErr.Response.StatusCode == 403 {
			return "The bot permissions has been incorrectly set up on this server for it to run this command: " + restErr.Message.Message
		}

		return "The bot was not able to perform the action, discord responded with: " + restErr.Message.Message
	}

	return "Something went wrong when running this command, either discord or the bot may be having issues."
}

const (
	ReasonError            = "An error occurred"
	ReasonUserMissingPerms = "You are missing one or more permissions to run this command"
	ReasonOwnerOnly        = "This command can only be used by the bot owner"
	ReasonCooldown         = "This command is on cooldown"
)

// MemberPermissions resolves the permissions of the invoker in the channel the command was used in
var MemberPermissions = func(data *dcmd.Data) (int64, error) {
	return data.Session.State.UserChannelPermissions(data.Author.ID, data.ChannelID)
}

// checkCanExecuteCommand returns a non empty response if the invoker is not allowed to run the command right now
func (yc *YuzuCommand) checkCanExecuteCommand(data *dcmd.Data) (resp string, err error) {
	if yc.OwnerOnly && !common.IsOwner(data.Author.ID) {
		return ReasonOwnerOnly, nil
	}

	if data.Source == dcmd.TriggerSourceGuild && len(yc.RequireDiscordPerms) > 0 {
		perms, err := MemberPermissions(data)
		if err != nil {
			return ReasonError, errors.WithMessage(err, "member permissions")
		}

		foundMatch := false
		for _, permSet := range yc.RequireDiscordPerms {
			if perms&discordgo.PermissionAdministrator != 0 || perms&permSet == permSet {
				foundMatch = true
				break
			}
		}

		if !foundMatch {
			return ReasonUserMissingPerms + " (" + yc.humanizedRequiredPerms() + ")", nil
		}
	}

	cdLeft, err := yc.LongestCooldownLeft(data.ContainerChain, data.Author.ID, data.GuildID)
	if err != nil {
		// pretend the cooldown is off
		yc.Logger(data).WithError(err).Error("Failed checking command cooldown")
	}

	if cdLeft > 0 {
		return ReasonCooldown + ", " + common.HumanizeDuration(common.DurationPrecisionSeconds, cdLeft) + " left", nil
	}

	return "", nil
}

func (yc *YuzuCommand) humanizedRequiredPerms() string {
	if yc.RequiredDiscordPermsHelp != "" {
		return yc.RequiredDiscordPermsHelp
	}

	sets := make([]string, 0, len(yc.RequireDiscordPerms))
	for _, permSet := range yc.RequireDiscordPerms {
		sets = append(sets, "`"+strings.Join(HumanizePermissions(permSet), "+")+"`")
	}

	return strings.Join(sets, " or ")
}

// YuzuCommandMiddleware stops the command with a response if the invoker can't run it
func YuzuCommandMiddleware(inner dcmd.RunFunc) dcmd.RunFunc {
	return func(data *dcmd.Data) (interface{}, error) {
		yc, ok := data.Cmd.Command.(*YuzuCommand)
		if !ok {
			return inner(data)
		}

		resp, err := yc.checkCanExecuteCommand(data)
		if err != nil {
			yc.Logger(data).WithError(err).Error("An error occurred while checking if we could run command")
		}

		if resp != "" {
			return resp, nil
		}

		return inner(data)
	}
}

func (yc *YuzuCommand) Logger(data *dcmd.Data) *logrus.Entry {
	var cc []*dcmd.Container
	if data != nil {
		cc = data.ContainerChain
	}

	l := logger.WithField("cmd", yc.FindNameFromContainerChain(cc))
	if data == nil {
		return l
	}

	if data.Author != nil {
		l = l.WithField("user_n", data.Author.Username).WithField("user_id", data.Author.ID)
	}

	l = l.WithField("channel", data.ChannelID)
	if data.GuildID != "" {
		l = l.WithField("guild", data.GuildID)
	}

	return l
}

func (yc *YuzuCommand) GetTrigger() *dcmd.Trigger {
	trigger := dcmd.NewTrigger(yc.Name, yc.Aliases...).SetEnableInDM(yc.RunInDM)
	trigger = trigger.SetHideFromHelp(yc.HideFromHelp)
	if len(yc.Middlewares) > 0 {
		trigger = trigger.SetMiddlewares(yc.Middlewares...)
	}
	return trigger
}

// FindNameFromContainerChain returns the full name of the command, e.g "rr create"
func (yc *YuzuCommand) FindNameFromContainerChain(cc []*dcmd.Container) string {
	name := ""
	for _, v := range cc {
		if len(v.Names) < 1 {
			continue
		}

		if name != "" {
			name += " "
		}

		name += v.Names[0]
	}

	if name != "" {
		name += " "
	}

	return name + yc.Name
}
