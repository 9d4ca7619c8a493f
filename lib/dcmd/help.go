package dcmd

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HelpFormatter renders commands for the help command and the generated docs
type HelpFormatter interface {
	// One line in a listing
	ShortCmdHelp(cmd *RegisteredCommand, container *Container, data *Data) string

	// Help for a single command, including args and switches
	FullCmdHelp(cmd *RegisteredCommand, container *Container, data *Data) *discordgo.MessageEmbed
}

// SortedCommandEntry is a command together with the container it was added to
type SortedCommandEntry struct {
	Cmd       *RegisteredCommand
	Container *Container
}

// SortedCommandSet is one help page. Commands with a category are grouped by it,
// the rest by the closest container that wants its own page.
type SortedCommandSet struct {
	Commands []*SortedCommandEntry

	Category  *Category
	Container *Container
}

func (s *SortedCommandSet) Name() string {
	if s.Category != nil {
		return s.Category.Name
	}
	return s.Container.FullName(false)
}

func (s *SortedCommandSet) Color() int {
	if s.Category != nil {
		return s.Category.EmbedColor
	}
	return s.Container.HelpColor
}

func (s *SortedCommandSet) Emoji() string {
	if s.Category != nil {
		return s.Category.HelpEmoji
	}
	return s.Container.HelpTitleEmoji
}

// Title is the embed title of the page
func (s *SortedCommandSet) Title() string {
	return strings.TrimSpace(s.Emoji() + " " + s.Name() + " Help")
}

type setKey struct {
	category  *Category
	container *Container
}

// SortCommands groups the visible commands of cmdContainer and its sub containers.
// Sets come out in the order their first command was added.
func SortCommands(group *Container, cmdContainer *Container) []*SortedCommandSet {
	var sets []*SortedCommandSet
	byKey := make(map[setKey]*SortedCommandSet)

	walkHelpCommands(group, cmdContainer, func(key setKey, entry *SortedCommandEntry) {
		set, ok := byKey[key]
		if !ok {
			set = &SortedCommandSet{Category: key.category, Container: key.container}
			byKey[key] = set
			sets = append(sets, set)
		}
		set.Commands = append(set.Commands, entry)
	})

	return sets
}

func walkHelpCommands(group, c *Container, visit func(setKey, *SortedCommandEntry)) {
	for _, cmd := range c.Commands {
		if cmd.Trigger.HideFromHelp {
			continue
		}

		if sub, ok := cmd.Command.(*Container); ok {
			subGroup := group
			if sub.HelpOwnEmbed {
				subGroup = sub
			}
			walkHelpCommands(subGroup, sub, visit)
			continue
		}

		key := setKey{container: group}
		if withCat, ok := cmd.Command.(CmdWithCategory); ok && withCat.Category() != nil {
			key = setKey{category: withCat.Category()}
		}

		visit(key, &SortedCommandEntry{Cmd: cmd, Container: c})
	}
}

// GenerateHelp renders the listing of container, one embed per command set
func GenerateHelp(d *Data, container *Container, formatter HelpFormatter) []*discordgo.MessageEmbed {
	prefix := ""
	if d != nil {
		prefix = d.PrefixUsed
		if d.TriggerType == TriggerTypeMention {
			prefix += " "
		}
	}
	footer := "Use `" + prefix + "help <command>` for details on a command, or `" + prefix + "help <group>` for a group"

	var embeds []*discordgo.MessageEmbed
	for _, set := range SortCommands(container, container) {
		var desc strings.Builder
		for _, entry := range set.Commands {
			desc.WriteString(formatter.ShortCmdHelp(entry.Cmd, entry.Container, d))
		}

		embeds = append(embeds, &discordgo.MessageEmbed{
			Title:       set.Title(),
			Color:       set.Color(),
			Description: desc.String(),
			Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		})
	}

	return embeds
}

// GenerateTargettedHelp renders help for the command target names.
// If target names a group instead, the listing of that group is returned.
func GenerateTargettedHelp(target string, d *Data, container *Container, formatter HelpFormatter) []*discordgo.MessageEmbed {
	cmd, cmdContainer := container.AbsFindCommand(target)
	if cmd != nil {
		return []*discordgo.MessageEmbed{formatter.FullCmdHelp(cmd, cmdContainer, d)}
	}

	if cmdContainer != container {
		return GenerateHelp(d, cmdContainer, formatter)
	}
	return nil
}

// StdHelpFormatter formats args as `<Name:Type>` for required and `[Name:Type]` for optional ones
type StdHelpFormatter struct{}

var _ HelpFormatter = (*StdHelpFormatter)(nil)

func (s *StdHelpFormatter) FullCmdHelp(cmd *RegisteredCommand, container *Container, data *Data) *discordgo.MessageEmbed {
	var desc strings.Builder
	if usage := s.ArgDefs(cmd, data); usage != "" {
		desc.WriteString("```\n" + usage + "\n```")
	}
	if switches := s.Switches(cmd.Command); switches != "" {
		desc.WriteString("```\n" + switches + "\n```")
	}

	desc.WriteString("\n")
	desc.WriteString(Description(cmd.Command, data, true))

	return &discordgo.MessageEmbed{
		Title:       s.CmdNameString(cmd, container, false),
		Description: desc.String(),
	}
}

func (s *StdHelpFormatter) ShortCmdHelp(cmd *RegisteredCommand, container *Container, data *Data) string {
	line := "**`" + s.CmdNameString(cmd, container, false) + "`**"
	if desc := Description(cmd.Command, data, false); desc != "" {
		line += ": " + desc
	}
	return line + "\n\n"
}

// CmdNameString is the full invocation of cmd, e.g. `rr create/new`
func (s *StdHelpFormatter) CmdNameString(cmd *RegisteredCommand, container *Container, containerAliases bool) string {
	name := cmd.FormatNames(true, "/")
	if parent := container.FullName(containerAliases); parent != "" {
		name = parent + " " + name
	}
	return name
}

// Switches lists the switches of cmd, one per line
func (s *StdHelpFormatter) Switches(cmd Cmd) string {
	withSwitches, ok := cmd.(CmdWithSwitches)
	if !ok {
		return ""
	}

	var out strings.Builder
	for _, sw := range withSwitches.Switches() {
		out.WriteString("[-" + strings.ToLower(sw.Name) + " " + s.ArgDef(sw) + "]\n")
	}
	return out.String()
}

// ArgDefs is the usage line of cmd, or one line per combo if it has any
func (s *StdHelpFormatter) ArgDefs(cmd *RegisteredCommand, data *Data) string {
	withArgs, ok := cmd.Command.(CmdWithArgDefs)
	if !ok {
		return ""
	}

	name := cmd.FormatNames(false, "/")
	defs, required, combos := withArgs.ArgDefs(data)
	if len(combos) == 0 {
		return name + " " + s.ArgDefLine(defs, required)
	}

	lines := make([]string, 0, len(combos))
	for _, combo := range combos {
		comboDefs := make([]*ArgDef, 0, len(combo))
		for _, i := range combo {
			comboDefs = append(comboDefs, defs[i])
		}
		lines = append(lines, name+" "+s.ArgDefLine(comboDefs, len(comboDefs)))
	}
	return strings.Join(lines, "\n") + "\n"
}

// ArgDefLine formats the first required defs as required and the rest as optional
func (s *StdHelpFormatter) ArgDefLine(argDefs []*ArgDef, required int) string {
	parts := make([]string, len(argDefs))
	for i, def := range argDefs {
		if i < required {
			parts[i] = "<" + s.ArgDef(def) + ">"
		} else {
			parts[i] = "[" + s.ArgDef(def) + "]"
		}
	}
	return strings.Join(parts, " ")
}

func (s *StdHelpFormatter) ArgDef(arg *ArgDef) string {
	typeName := "Switch"
	if arg.Type != nil {
		typeName = arg.Type.HelpName()
	}

	str := arg.Name + ":" + typeName
	if arg.Help != "" {
		str += " - " + arg.Help
	}
	return str
}

// Description returns the long description of cmd if long is set and it has one, otherwise the short one
func Description(cmd Cmd, data *Data, long bool) string {
	withDesc, ok := cmd.(CmdWithDescriptions)
	if !ok {
		return ""
	}

	short, longDesc := withDesc.Descriptions(data)
	if long && longDesc != "" {
		return longDesc
	}
	if short != "" {
		return short
	}
	if long {
		return "No description for this command"
	}
	return longDesc
}
