package dcmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// ArgDef represents a argument definition, either a switch or plain arg
type ArgDef struct {
	Name    string
	Type    ArgType
	Help    string
	Default interface{}
}

func (def *ArgDef) NewParsedDef() *ParsedArg {
	return &ParsedArg{
		Def:   def,
		Value: def.Default,
	}
}

type ParsedArg struct {
	Def   *ArgDef
	Value interface{}
	Raw   *RawArg
}

// Str returns text values as is and formats ints, anything else is ""
func (p *ParsedArg) Str() string {
	switch t := p.Value.(type) {
	case string:
		return t
	case int, int32, int64:
		return strconv.FormatInt(p.Int64(), 10)
	}
	return ""
}

func (p *ParsedArg) Int() int {
	return int(p.Int64())
}

func (p *ParsedArg) Int64() int64 {
	switch t := p.Value.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	}
	return 0
}

// Bool is true for true, positive ints and non empty text. Switches without a type are bools.
func (p *ParsedArg) Bool() bool {
	switch t := p.Value.(type) {
	case bool:
		return t
	case string:
		return t != ""
	}
	return p.Int64() > 0
}

func (p *ParsedArg) Member() *discordgo.Member {
	m, _ := p.Value.(*discordgo.Member)
	return m
}

// User returns the user of a member arg
func (p *ParsedArg) User() *discordgo.User {
	switch t := p.Value.(type) {
	case *discordgo.Member:
		return t.User
	case *discordgo.User:
		return t
	}

	return nil
}

func (p *ParsedArg) Channel() *discordgo.Channel {
	c, _ := p.Value.(*discordgo.Channel)
	return c
}

func (p *ParsedArg) Role() *discordgo.Role {
	r, _ := p.Value.(*discordgo.Role)
	return r
}

// NewParsedArgs creates a new ParsedArg slice from defs passed, also filling default values
func NewParsedArgs(defs []*ArgDef) []*ParsedArg {
	out := make([]*ParsedArg, len(defs))

	for k := range out {
		out[k] = defs[k].NewParsedDef()
	}

	return out
}

// ArgType is the interface argument types has to implement
type ArgType interface {
	// CheckCompatibility reports the degree to which the input matches the type.
	CheckCompatibility(def *ArgDef, part string) CompatibilityResult

	ParseFromMessage(def *ArgDef, part string, data *Data) (val interface{}, err error)

	// Name as shown in help
	HelpName() string
}

// CompatibilityResult indicates the degree to which a value matches a type.
type CompatibilityResult int

const (
	// Incompatible means the value does not match the type at all, such as "abc" for an integer.
	Incompatible CompatibilityResult = iota

	// CompatibilityPoor means the value has the right shape but violates a constraint,
	// such as 11 for an integer limited to [0, 10].
	CompatibilityPoor

	// CompatibilityGood means the value matches the type well.
	CompatibilityGood
)

func (c CompatibilityResult) String() string {
	switch c {
	case Incompatible:
		return "incompatible"
	case CompatibilityPoor:
		return "poor compatibility"
	case CompatibilityGood:
		return "good compatibility"
	default:
		return fmt.Sprintf("CompatibilityResult(%d)", c)
	}
}

const (
	minSnowflakeLength = 17
	maxSnowflakeLength = 20
)

// DetermineSnowflakeCompatibility returns CompatibilityGood if s could be a discord snowflake,
// CompatibilityPoor if it's a number of the wrong length and Incompatible otherwise.
func DetermineSnowflakeCompatibility(s string) CompatibilityResult {
	if _, err := strconv.ParseUint(s, 10, 64); err != nil {
		return Incompatible
	}

	if len(s) < minSnowflakeLength || len(s) > maxSnowflakeLength {
		return CompatibilityPoor
	}
	return CompatibilityGood
}

// StripMention returns the id inside a mention with the given prefix, e.g "<@" or "<#".
// The second return value is false if part is not such a mention.
func StripMention(part, prefix string) (string, bool) {
	if !strings.HasPrefix(part, prefix) || !strings.HasSuffix(part, ">") || len(part) <= len(prefix)+1 {
		return "", false
	}

	id := part[len(prefix) : len(part)-1]
	if prefix == "<@" {
		id = strings.TrimPrefix(id, "!")
	}

	if _, err := strconv.ParseUint(id, 10, 64); err != nil {
		return "", false
	}

	return id, true
}

var (
	Int     = &IntArg{}
	String  = &StringArg{}
	Member  = &MemberArg{}
	UserID  = &UserIDArg{}
	Channel = &ChannelArg{}
	Role    = &RoleArg{}
)

// IntArg matches and parses integer arguments.
// If min and max are not equal the value has to be within them.
type IntArg struct {
	Min, Max int64
}

var _ ArgType = (*IntArg)(nil)

func (i *IntArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	v, err := strconv.ParseInt(part, 10, 64)
	if err != nil {
		return Incompatible
	}
	if i.Min == i.Max || i.Min <= v && v <= i.Max {
		return CompatibilityGood
	}
	return CompatibilityPoor
}

func (i *IntArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	v, err := strconv.ParseInt(part, 10, 64)
	if err != nil {
		return nil, &InvalidInt{part}
	}

	if i.Max != i.Min && (i.Max < v || i.Min > v) {
		name := "argument"
		if def != nil {
			name = def.Name
		}
		return nil, &OutOfRangeError{ArgName: name, Got: v, Min: i.Min, Max: i.Max}
	}

	return v, nil
}

func (i *IntArg) HelpName() string {
	if i.Min != i.Max {
		return fmt.Sprintf("Whole number (%d-%d)", i.Min, i.Max)
	}
	return "Whole number"
}

// StringArg matches anything
type StringArg struct{}

var _ ArgType = (*StringArg)(nil)

func (s *StringArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	return CompatibilityGood
}

func (s *StringArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	return part, nil
}

func (s *StringArg) HelpName() string {
	return "Text"
}

// UserIDArg matches a mention or a plain id, the user does not have to be a part of the server
type UserIDArg struct{}

var _ ArgType = (*UserIDArg)(nil)

func (u *UserIDArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	if id, ok := StripMention(part, "<@"); ok {
		return DetermineSnowflakeCompatibility(id)
	}

	return DetermineSnowflakeCompatibility(part)
}

func (u *UserIDArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	if id, ok := StripMention(part, "<@"); ok {
		return id, nil
	}

	if _, err := strconv.ParseUint(part, 10, 64); err == nil {
		return part, nil
	}

	return nil, &ImproperMention{part}
}

func (u *UserIDArg) HelpName() string {
	return "Mention/ID"
}

// MemberArg matches a member of the current server by mention, id or name
type MemberArg struct{}

var _ ArgType = (*MemberArg)(nil)

func (m *MemberArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	if id, ok := StripMention(part, "<@"); ok {
		return DetermineSnowflakeCompatibility(id)
	}

	if DetermineSnowflakeCompatibility(part) == CompatibilityGood {
		return CompatibilityGood
	}

	// a name search
	return CompatibilityPoor
}

func (m *MemberArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	if data == nil || data.GuildID == "" {
		return nil, NewSimpleUserError("Members can only be looked up in servers")
	}

	id, ok := StripMention(part, "<@")
	if !ok {
		if _, err := strconv.ParseUint(part, 10, 64); err == nil {
			id = part
		}
	}

	if id == "" {
		return FindMemberByName(data.State(), data.GuildID, part)
	}

	if state := data.State(); state != nil {
		if member, err := state.Member(data.GuildID, id); err == nil {
			return member, nil
		}
	}

	if data.Session != nil && data.Session.Client != nil {
		member, err := data.Session.GuildMember(data.GuildID, id)
		if err == nil {
			member.GuildID = data.GuildID
			return member, nil
		}
	}

	return nil, &UserNotFound{part}
}

func (m *MemberArg) HelpName() string {
	return "User"
}

const maxNameCandidates = 5

// FindMemberByName looks a member of guildID up in state. A single case insensitive match on username,
// global name or nickname wins. Otherwise the error lists up to maxNameCandidates usernames to pick from.
func FindMemberByName(state *discordgo.State, guildID, name string) (*discordgo.Member, error) {
	if state == nil {
		return nil, &UserNotFound{name}
	}

	g, err := state.Guild(guildID)
	if err != nil {
		return nil, &UserNotFound{name}
	}

	state.RLock()
	defer state.RUnlock()

	needle := strings.ToLower(name)
	var exact, partial []*discordgo.Member
	for _, m := range g.Members {
		if m == nil || m.User == nil || m.User.Username == "" {
			continue
		}

		switch {
		case strings.EqualFold(m.User.Username, name), strings.EqualFold(m.User.GlobalName, name), strings.EqualFold(m.Nick, name):
			exact = append(exact, m)
		case strings.Contains(strings.ToLower(m.User.Username), needle):
			partial = append(partial, m)
		}
	}

	switch {
	case len(exact) == 1:
		return exact[0], nil
	case len(exact) > 1:
		return nil, NewSimpleUserError("Too many users with that name: ", usernameList(exact), ". Use a mention or ID instead.")
	case len(partial) > 0:
		return nil, NewSimpleUserError("Did you mean one of these? ", usernameList(partial), ". Use a narrower search, a mention or ID.")
	}
	return nil, &UserNotFound{name}
}

func usernameList(members []*discordgo.Member) string {
	if len(members) > maxNameCandidates {
		members = members[:maxNameCandidates]
	}

	names := make([]string, len(members))
	for i, m := range members {
		names[i] = "`" + m.User.Username + "`"
	}
	return strings.Join(names, ", ")
}

// ChannelArg matches a channel mention or id in the current server
type ChannelArg struct{}

var _ ArgType = (*ChannelArg)(nil)

func (ca *ChannelArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	if id, ok := StripMention(part, "<#"); ok {
		return DetermineSnowflakeCompatibility(id)
	}

	return DetermineSnowflakeCompatibility(part)
}

func (ca *ChannelArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	id, ok := StripMention(part, "<#")
	if !ok {
		id = part
	}

	state := data.State()
	if state == nil {
		return nil, &ChannelNotFound{part}
	}

	c, err := state.Channel(id)
	if err != nil || c.GuildID != data.GuildID {
		return nil, &ChannelNotFound{part}
	}

	return c, nil
}

func (ca *ChannelArg) HelpName() string {
	return "Channel"
}

// RoleArg matches a role by mention, id or case insensitive name
type RoleArg struct{}

var _ ArgType = (*RoleArg)(nil)

func (r *RoleArg) CheckCompatibility(def *ArgDef, part string) CompatibilityResult {
	if id, ok := StripMention(part, "<@&"); ok {
		return DetermineSnowflakeCompatibility(id)
	}

	if DetermineSnowflakeCompatibility(part) == CompatibilityGood {
		return CompatibilityGood
	}

	return CompatibilityPoor
}

func (r *RoleArg) ParseFromMessage(def *ArgDef, part string, data *Data) (interface{}, error) {
	g := data.Guild()
	if g == nil {
		return nil, &RoleNotFound{part}
	}

	id, ok := StripMention(part, "<@&")
	if !ok {
		id = part
	}

	state := data.State()
	state.RLock()
	defer state.RUnlock()

	var named *discordgo.Role
	for _, role := range g.Roles {
		if role.ID == id {
			return role, nil
		}
		if named == nil && strings.EqualFold(role.Name, part) {
			named = role
		}
	}

	if named == nil {
		return nil, &RoleNotFound{part}
	}
	return named, nil
}

func (r *RoleArg) HelpName() string {
	return "Role"
}
