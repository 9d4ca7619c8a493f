package dcmd

// Trigger holds the names a command answers to and where it can run
type Trigger struct {
	// The first name is the main one, the rest are aliases
	Names       []string
	Middlewares []MiddleWareFunc

	HideFromHelp bool

	EnableInDM            bool
	EnableInGuildChannels bool
}

// NewTrigger returns a trigger enabled in both DMs and guild channels
func NewTrigger(name string, aliases ...string) *Trigger {
	return &Trigger{
		Names:                 append([]string{name}, aliases...),
		EnableInDM:            true,
		EnableInGuildChannels: true,
	}
}

func (t *Trigger) SetHideFromHelp(hide bool) *Trigger {
	t.HideFromHelp = hide
	return t
}

func (t *Trigger) SetEnableInDM(enable bool) *Trigger {
	t.EnableInDM = enable
	return t
}

func (t *Trigger) enabledIn(source TriggerSource) bool {
	switch source {
	case TriggerSourceDM:
		return t.EnableInDM
	case TriggerSourceGuild:
		return t.EnableInGuildChannels
	}
	return true
}

// SetMiddlewares appends mw, they run after the container middlewares in the given order
func (t *Trigger) SetMiddlewares(mw ...MiddleWareFunc) *Trigger {
	t.Middlewares = append(t.Middlewares, mw...)
	return t
}
