package dcmd

import (
	"fmt"
	"strings"
)

// Cmd is a command or a container of commands.
// Run returns a string, an error, an embed, a slice of embeds, a *discordgo.MessageSend or a Response.
type Cmd interface {
	Run(data *Data) (interface{}, error)
}

// CmdWithDescriptions are shown with a description in help. The short one is used in listings,
// the long one when help for just this command is requested.
type CmdWithDescriptions interface {
	Descriptions(data *Data) (short, long string)
}

// CmdWithArgDefs get their args parsed by ArgParserMW before they run.
// The first required args must be present. Instead, combos can list the accepted orders as indexes into args:
//
//	combos = [][]int{{0}, {0, 1}, {1}, {1, 0}, {}}
//
// lets an optional limit (0) and an optional user (1) be given in either order.
// Combos can't tell two text args apart.
type CmdWithArgDefs interface {
	ArgDefs(data *Data) (args []*ArgDef, required int, combos [][]int)
}

// CmdWithSwitches accept flags like `-silent` or `-repeat 1h` anywhere in the message
type CmdWithSwitches interface {
	Switches() []*ArgDef
}

// CmdWithCategory are grouped under their category in help
type CmdWithCategory interface {
	Category() *Category
}

type Category struct {
	Name        string
	Description string
	HelpEmoji   string
	EmbedColor  int
}

// RegisteredCommand is a Cmd added to a container under a trigger.
// The same Cmd can be registered in several places.
type RegisteredCommand struct {
	Command Cmd
	Trigger *Trigger

	builtFullMiddlewareChain RunFunc
}

// FormatNames returns the main name, or all names joined by separator when includeAliases is set
func (r *RegisteredCommand) FormatNames(includeAliases bool, separator string) string {
	switch {
	case len(r.Trigger.Names) == 0:
		return strings.TrimPrefix(fmt.Sprintf("%T", r.Command), "*")
	case includeAliases:
		return strings.Join(r.Trigger.Names, separator)
	}
	return r.Trigger.Names[0]
}
