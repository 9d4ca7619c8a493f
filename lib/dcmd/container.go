package dcmd

import (
	"regexp"
	"strings"

	"emperror.dev/errors"
)

type MiddleWareFunc func(next RunFunc) RunFunc
type RunFunc func(data *Data) (interface{}, error)

// Container routes the first word of the input to one of its commands.
// Sub containers form command groups such as "rr create".
type Container struct {
	Names           []string
	Description     string
	LongDescription string

	IgnoreBots bool
	RunInDM    bool

	HelpTitleEmoji string
	HelpColor      int
	// HelpOwnEmbed lists the container in its own help embed instead of its parent's
	HelpOwnEmbed bool

	Commands []*RegisteredCommand
	Parent   *Container

	middlewares []MiddleWareFunc
}

var (
	_ Cmd                 = (*Container)(nil)
	_ CmdWithDescriptions = (*Container)(nil)
)

func (c *Container) Descriptions(data *Data) (string, string) {
	return c.Description, c.LongDescription
}

// Run dispatches data to the matching command. Unknown commands are ignored.
func (c *Container) Run(data *Data) (interface{}, error) {
	if c.IgnoreBots && data.Author != nil && data.Author.Bot {
		return nil, nil
	}
	if data.Source == TriggerSourceDM && !c.RunInDM {
		return nil, nil
	}

	data.ContainerChain = append(data.ContainerChain, c)

	cmd, rest := c.FindCommand(data.MessageStrippedPrefix)
	if cmd == nil || !cmd.Trigger.enabledIn(data.Source) {
		return nil, nil
	}

	data.Cmd = cmd
	data.MessageStrippedPrefix = rest

	if sub, ok := cmd.Command.(*Container); ok {
		return sub.Run(data)
	}

	run := cmd.builtFullMiddlewareChain
	if run == nil {
		run = wrapCommand(cmd, data.ContainerChain)
	}
	return run(data)
}

// FindCommand matches the first word of in against the names of the commands in this container
func (c *Container) FindCommand(in string) (*RegisteredCommand, string) {
	word, rest, _ := strings.Cut(in, " ")
	if word == "" {
		return nil, in
	}

	for _, cmd := range c.Commands {
		for _, name := range cmd.Trigger.Names {
			if strings.EqualFold(name, word) {
				return cmd, strings.TrimSpace(rest)
			}
		}
	}

	return nil, in
}

// AbsFindCommand follows sub containers down to a command. The returned container is the one
// the search ended in, also when no command was found.
func (c *Container) AbsFindCommand(in string) (*RegisteredCommand, *Container) {
	cmd, rest := c.FindCommand(in)
	if cmd == nil {
		return nil, c
	}

	if sub, ok := cmd.Command.(*Container); ok {
		return sub.AbsFindCommand(rest)
	}
	return cmd, c
}

// Sub adds an empty container named name that inherits the filtering and help settings of c
func (c *Container) Sub(name string, aliases ...string) (*Container, *Trigger) {
	sub := &Container{
		Names:          append([]string{name}, aliases...),
		IgnoreBots:     c.IgnoreBots,
		RunInDM:        c.RunInDM,
		HelpTitleEmoji: c.HelpTitleEmoji,
		HelpColor:      c.HelpColor,
		HelpOwnEmbed:   c.HelpOwnEmbed,
		Parent:         c,
	}

	trigger := NewTrigger(name, aliases...)
	c.AddCommand(sub, trigger)
	return sub, trigger
}

// AddCommand panics if a name of the command, its args or its switches is invalid
func (c *Container) AddCommand(cmd Cmd, trigger *Trigger) *RegisteredCommand {
	if err := validateCommand(cmd, trigger); err != nil {
		panic(err)
	}

	registered := &RegisteredCommand{Command: cmd, Trigger: trigger}
	c.Commands = append(c.Commands, registered)
	return registered
}

// AddMiddlewares adds mw to every command below c, outer containers run theirs first
func (c *Container) AddMiddlewares(mw ...MiddleWareFunc) {
	c.middlewares = append(c.middlewares, mw...)
}

// FullName is the space separated path of names from the root, e.g "rr create"
func (c *Container) FullName(aliases bool) string {
	var parts []string
	for cur := c; cur != nil; cur = cur.Parent {
		if len(cur.Names) == 0 {
			continue
		}

		name := cur.Names[0]
		if aliases {
			name = strings.Join(cur.Names, "/")
		}
		parts = append([]string{name}, parts...)
	}

	return strings.Join(parts, " ")
}

// BuildMiddlewareChains caches the wrapped run func of every command below c.
// Commands or middlewares added afterwards are not picked up by the cache.
func (c *Container) BuildMiddlewareChains(parents []*Container) {
	chain := append(parents[:len(parents):len(parents)], c)

	for _, cmd := range c.Commands {
		if sub, ok := cmd.Command.(*Container); ok {
			sub.BuildMiddlewareChains(chain)
			continue
		}
		cmd.builtFullMiddlewareChain = wrapCommand(cmd, chain)
	}
}

func wrapCommand(cmd *RegisteredCommand, chain []*Container) RunFunc {
	run := applyMiddlewares(cmd.Command.Run, cmd.Trigger.Middlewares)
	for i := len(chain) - 1; i >= 0; i-- {
		run = applyMiddlewares(run, chain[i].middlewares)
	}
	return run
}

func applyMiddlewares(run RunFunc, mw []MiddleWareFunc) RunFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		run = mw[i](run)
	}
	return run
}

var nameRe = regexp.MustCompile(`^[\w-]{1,32}$`)

func validateCommand(cmd Cmd, trigger *Trigger) error {
	if len(trigger.Names) == 0 {
		return errors.New("dcmd: command without a name")
	}
	if !nameRe.MatchString(trigger.Names[0]) {
		return errors.Errorf("dcmd: invalid command name %q", trigger.Names[0])
	}

	if withArgs, ok := cmd.(CmdWithArgDefs); ok {
		defs, _, _ := withArgs.ArgDefs(nil)
		for _, def := range defs {
			if !nameRe.MatchString(def.Name) {
				return errors.Errorf("dcmd: %s: invalid arg name %q", trigger.Names[0], def.Name)
			}
		}
	}

	if withSwitches, ok := cmd.(CmdWithSwitches); ok {
		for _, def := range withSwitches.Switches() {
			if !nameRe.MatchString(def.Name) {
				return errors.Errorf("dcmd: %s: invalid switch name %q", trigger.Names[0], def.Name)
			}
		}
	}

	return nil
}
