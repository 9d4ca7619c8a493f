package rolecommands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
	"github.com/yuzubot/yuzu/bot"
	"github.com/yuzubot/yuzu/common"
)

const panelTimeout = time.Minute * 2

const (
	questionEmoji = "React on this message with the emoji for the next role, say `finish` when you're done"
	questionMode  = "Which mode should the menu use?\n" +
		"`normal`: react to get a role, unreact to lose it\n" +
		"`unique`: one role of the menu at a time\n" +
		"`verify`: roles stay when the reaction is removed\n" +
		"Say `skip` to keep `%s`"
)

// panel is one run of the interactive setup or edit chain, it works on its own copy of the menu
type panel struct {
	s         Session
	prompter  *bot.Prompter
	guild     *discordgo.Guild
	botMember *discordgo.Member
	menu      *Menu
}

func isPanelEnd(err error) bool {
	return errors.Is(err, bot.ErrPromptCancelled) || errors.Is(err, bot.ErrPromptTimeout) || errors.Is(err, context.Canceled)
}

func (p *panel) askTitle(ctx context.Context, question string) error {
	reply, err := p.prompter.Ask(ctx, question)
	if err != nil {
		return err
	}

	if reply.Keyword != bot.KeywordNone || reply.Text == "" {
		if p.menu.Title == "" {
			p.menu.Title = DefaultTitle
		}
		return nil
	}

	p.menu.Title = common.CutStringShort(reply.Text, 256)
	return nil
}

func (p *panel) askMode(ctx context.Context) error {
	question := fmt.Sprintf(questionMode, p.menu.Mode)
	for {
		reply, err := p.prompter.Ask(ctx, question)
		if err != nil {
			return err
		}

		if reply.Keyword != bot.KeywordNone {
			return nil
		}

		if mode, ok := ParseMode(reply.Text); ok {
			p.menu.Mode = mode
			return nil
		}
		question = "That's not a mode, pick `normal`, `unique` or `verify`"
	}
}

// askOption runs the emoji and role steps for one option, done is set if the user said finish instead
func (p *panel) askOption(ctx context.Context, notice string) (opt *Option, done bool, err error) {
	question := notice + questionEmoji
	for {
		reaction, reply, err := p.prompter.AskReaction(ctx, question)
		if err != nil {
			return nil, false, err
		}

		if reply != nil {
			if reply.Keyword == bot.KeywordFinish {
				return nil, true, nil
			}
			question = questionEmoji
			continue
		}

		emoji := reaction.Emoji
		if p.menu.FindOption(&emoji) != nil {
			question = "That emoji is already used in this menu, react with another one"
			continue
		}

		role, keyword, err := p.askRole(ctx, &emoji)
		if err != nil {
			return nil, false, err
		}

		switch keyword {
		case bot.KeywordFinish:
			return nil, true, nil
		case bot.KeywordSkip:
			question = questionEmoji
			continue
		}

		return &Option{Emoji: emoji.APIName(), EmojiName: emoji.MessageFormat(), RoleID: role.ID}, false, nil
	}
}

func (p *panel) askRole(ctx context.Context, emoji *discordgo.Emoji) (*discordgo.Role, bot.Keyword, error) {
	question := fmt.Sprintf("Which role should %s give? Send its name, id or mention, or `skip` to pick another emoji", emoji.MessageFormat())
	for {
		reply, err := p.prompter.Ask(ctx, question)
		if err != nil {
			return nil, bot.KeywordNone, err
		}
		if reply.Keyword != bot.KeywordNone {
			return nil, reply.Keyword, nil
		}

		role := findRole(p.guild, reply.Text)
		switch {
		case role == nil:
			question = "Couldn't find that role, try again"
		case role.ID == p.guild.ID:
			question = "Everyone already has @everyone, pick another role"
		case role.Managed:
			question = fmt.Sprintf("**%s** is managed by an integration and can't be given out, pick another one", role.Name)
		case !bot.IsMemberAboveRole(p.guild, p.botMember, role):
			question = fmt.Sprintf("**%s** is above my highest role so I can't give it out, pick another one", role.Name)
		case p.menu.findRoleOption(role.ID) != nil:
			question = fmt.Sprintf("**%s** is already in this menu, pick another one", role.Name)
		default:
			return role, bot.KeywordNone, nil
		}
	}
}

// RunCreatePanel walks the user through a new menu and posts it in channelID
func RunCreatePanel(ctx context.Context, s Session, prompter *bot.Prompter, guild *discordgo.Guild, botMember *discordgo.Member, authorID, channelID string) (string, error) {
	p := &panel{
		s:         s,
		prompter:  prompter,
		guild:     guild,
		botMember: botMember,
		menu: &Menu{
			GuildID:   guild.ID,
			ChannelID: channelID,
			Mode:      ModeNormal,
			CreatedBy: authorID,
		},
	}

	resp, err := p.runCreate(ctx)
	if isPanelEnd(err) {
		return "Setup cancelled, no menu was created", nil
	}
	return resp, err
}

func (p *panel) runCreate(ctx context.Context) (string, error) {
	err := p.askTitle(ctx, "**Reaction role setup**, say `cancel` at any time to stop.\nWhat should the title of the menu be? Say `skip` for \""+DefaultTitle+"\"")
	if err != nil {
		return "", err
	}

	if err := p.askMode(ctx); err != nil {
		return "", err
	}

	notice := ""
	for len(p.menu.Options) < MaxOptions {
		opt, done, err := p.askOption(ctx, notice)
		if err != nil {
			return "", err
		}

		if done {
			if len(p.menu.Options) > 0 {
				break
			}
			notice = "A menu needs at least one role.\n"
			continue
		}

		p.menu.Options = append(p.menu.Options, opt)
		notice = fmt.Sprintf("Added %s (%d/%d).\n", opt.EmojiName, len(p.menu.Options), MaxOptions)
	}

	return p.post()
}

func (p *panel) post() (string, error) {
	msg, err := p.s.ChannelMessageSendEmbed(p.menu.ChannelID, p.menu.Embed())
	if err != nil {
		return "", errors.WithMessage(err, "send menu")
	}

	p.menu.MessageID = msg.ID
	p.menu.CreatedAt = time.Now()
	if err := SaveMenu(p.menu); err != nil {
		return "", err
	}

	for _, opt := range p.menu.Options {
		if err := p.s.MessageReactionAdd(p.menu.ChannelID, p.menu.MessageID, opt.Emoji); err != nil {
			logger.WithError(err).WithField("emoji", opt.Emoji).Warn("Failed adding menu reaction")
		}
	}

	return fmt.Sprintf("Done! The menu is up in <#%s>: %s", p.menu.ChannelID, menuLink(p.menu)), nil
}

// RunEditPanel lets the user change a posted menu, nothing changes unless they finish
func RunEditPanel(ctx context.Context, s Session, prompter *bot.Prompter, guild *discordgo.Guild, botMember *discordgo.Member, menu *Menu) (string, error) {
	p := &panel{
		s:         s,
		prompter:  prompter,
		guild:     guild,
		botMember: botMember,
		menu:      menu.Copy(),
	}

	resp, err := p.runEdit(ctx, menu)
	if isPanelEnd(err) {
		return "Edit cancelled, the menu wasn't changed", nil
	}
	return resp, err
}

func (p *panel) runEdit(ctx context.Context, original *Menu) (string, error) {
	notice := ""
	for {
		question := fmt.Sprintf("%s**Editing %s** (%s)\n%s\nWhat do you want to change? `add`, `remove`, `title`, `mode`, or `finish` to save",
			notice, p.menu.Title, p.menu.Mode, describeOptions(p.menu))
		notice = ""

		reply, err := p.prompter.Ask(ctx, question)
		if err != nil {
			return "", err
		}

		if reply.Keyword == bot.KeywordFinish {
			if len(p.menu.Options) == 0 {
				notice = "A menu needs at least one role, add one or say `cancel`.\n\n"
				continue
			}
			return p.saveEdit(original)
		}

		switch strings.ToLower(reply.Text) {
		case "add":
			if len(p.menu.Options) >= MaxOptions {
				notice = "The menu is full.\n\n"
				continue
			}

			opt, done, err := p.askOption(ctx, "")
			if err != nil {
				return "", err
			}
			if !done {
				p.menu.Options = append(p.menu.Options, opt)
				notice = fmt.Sprintf("Added %s.\n\n", opt.EmojiName)
			}
		case "remove":
			notice, err = p.askRemove(ctx)
		case "title":
			err = p.askTitle(ctx, "What should the new title be? Say `skip` to keep the current one")
		case "mode":
			err = p.askMode(ctx)
		default:
			notice = "I didn't get that.\n\n"
		}

		if err != nil {
			return "", err
		}
	}
}

func (p *panel) askRemove(ctx context.Context) (string, error) {
	if len(p.menu.Options) == 0 {
		return "There's nothing to remove.\n\n", nil
	}

	reply, err := p.prompter.Ask(ctx, "Send the number of the role to remove:\n"+describeOptions(p.menu))
	if err != nil {
		return "", err
	}
	if reply.Keyword != bot.KeywordNone {
		return "", nil
	}

	n, err := strconv.Atoi(reply.Text)
	if err != nil || n < 1 || n > len(p.menu.Options) {
		return "That's not one of the numbers.\n\n", nil
	}

	opt := p.menu.Options[n-1]
	p.menu.removeOption(opt)
	return fmt.Sprintf("Removed %s.\n\n", opt.EmojiName), nil
}

func (p *panel) saveEdit(original *Menu) (string, error) {
	_, err := p.s.ChannelMessageEditEmbed(p.menu.ChannelID, p.menu.MessageID, p.menu.Embed())
	if err != nil {
		if deleteErr, stale := checkStaleErr(p.menu, err); stale {
			return "The menu's message is gone, so I removed the menu", deleteErr
		}
		return "", err
	}

	if err := SaveMenu(p.menu); err != nil {
		return "", err
	}

	for _, opt := range original.Options {
		if p.menu.FindOption(apiEmoji(opt.Emoji)) == nil {
			if err := p.s.MessageReactionsRemoveEmoji(p.menu.ChannelID, p.menu.MessageID, opt.Emoji); err != nil {
				logger.WithError(err).WithField("emoji", opt.Emoji).Warn("Failed clearing menu reaction")
			}
		}
	}

	for _, opt := range p.menu.Options {
		if original.FindOption(apiEmoji(opt.Emoji)) == nil {
			if err := p.s.MessageReactionAdd(p.menu.ChannelID, p.menu.MessageID, opt.Emoji); err != nil {
				logger.WithError(err).WithField("emoji", opt.Emoji).Warn("Failed adding menu reaction")
			}
		}
	}

	return "Saved the menu: " + menuLink(p.menu), nil
}

// apiEmoji turns a stored api name back into an emoji
func apiEmoji(s string) *discordgo.Emoji {
	if i := strings.LastIndex(s, ":"); i != -1 {
		return &discordgo.Emoji{Name: s[:i], ID: s[i+1:]}
	}
	return &discordgo.Emoji{Name: s}
}
