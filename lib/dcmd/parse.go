package dcmd

import (
	"fmt"
	"strings"
)

var (
	ErrNoComboFound       = NewSimpleUserError("No matching combo found")
	ErrNotEnoughArguments = NewSimpleUserError("Not enough arguments passed")
)

// RawArg is one word of the input. Container is the quote rune it was wrapped in, or 0.
type RawArg struct {
	Str       string
	Container rune
}

// typed returns the arg the way it was written, quotes included
func (r *RawArg) typed() string {
	if r.Container == 0 {
		return r.Str
	}
	q := string(r.Container)
	return q + r.Str + q
}

// ArgParserMW parses args and switches before the command runs.
// Bad input becomes a reply to the user instead of an error.
func ArgParserMW(inner RunFunc) RunFunc {
	return func(data *Data) (interface{}, error) {
		if err := ParseCmdArgs(data); err != nil {
			if IsUserError(err) {
				return "Invalid arguments provided: " + err.Error(), nil
			}
			return nil, err
		}

		return inner(data)
	}
}

// ParseCmdArgs fills data.Switches and data.Args from data.MessageStrippedPrefix.
// Switches are taken out first so they can appear anywhere in the message.
func ParseCmdArgs(data *Data) error {
	withArgs, hasArgs := data.Cmd.Command.(CmdWithArgDefs)
	withSwitches, hasSwitches := data.Cmd.Command.(CmdWithSwitches)
	if !hasArgs && !hasSwitches {
		return nil
	}

	raw := SplitArgs(data.MessageStrippedPrefix)

	if hasSwitches {
		var err error
		raw, err = ParseSwitches(withSwitches.Switches(), data, raw)
		if err != nil {
			return err
		}
	}

	if !hasArgs {
		return nil
	}

	defs, required, combos := withArgs.ArgDefs(data)
	if len(defs) == 0 {
		return nil
	}
	return ParseArgDefs(defs, required, combos, data, raw)
}

// ParseArgDefs parses raw into data.Args. The last arg of the chosen combo takes the rest of the input.
func ParseArgDefs(defs []*ArgDef, required int, combos [][]int, data *Data, raw []*RawArg) error {
	combo, ok := FindCombo(defs, combos, raw)
	if !ok {
		return ErrNoComboFound
	}

	args := NewParsedArgs(defs)
	for pos, defIndex := range combo {
		if pos >= len(raw) {
			if pos >= required && len(combos) == 0 {
				break
			}
			return ErrNotEnoughArguments
		}

		part := raw[pos].Str
		if pos == len(combo)-1 {
			part = joinRest(raw[pos:])
		}

		def := defs[defIndex]
		val, err := def.Type.ParseFromMessage(def, part, data)
		if err != nil {
			return err
		}
		args[defIndex].Value = val
	}

	data.Args = args
	return nil
}

func joinRest(rest []*RawArg) string {
	if len(rest) == 1 {
		return rest[0].Str
	}

	words := make([]string, len(rest))
	for i, r := range rest {
		words[i] = r.typed()
	}
	return strings.Join(words, " ")
}

// ParseSwitches fills data.Switches and returns the args that were not switches.
// Unquoted `-name` words matching a def are switches. Switches with a type take the next word as value.
func ParseSwitches(defs []*ArgDef, data *Data, raw []*RawArg) ([]*RawArg, error) {
	byName := make(map[string]*ArgDef, len(defs))
	parsed := make(map[string]*ParsedArg, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
		parsed[def.Name] = &ParsedArg{Def: def, Value: def.Default}
	}

	rest := make([]*RawArg, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		def := switchDef(byName, raw[i])
		if def == nil {
			rest = append(rest, raw[i])
			continue
		}

		sw := parsed[def.Name]
		sw.Raw = raw[i]
		if def.Type == nil {
			sw.Value = true
			continue
		}

		if i == len(raw)-1 {
			return nil, NewSimpleUserError("No value provided for switch -", def.Name)
		}
		i++

		val, err := def.Type.ParseFromMessage(def, raw[i].Str, data)
		if err != nil {
			return nil, err
		}
		sw.Value = val
	}

	data.Switches = parsed
	return rest, nil
}

func switchDef(defs map[string]*ArgDef, arg *RawArg) *ArgDef {
	if arg.Container != 0 || !strings.HasPrefix(arg.Str, "-") {
		return nil
	}
	return defs[arg.Str[1:]]
}

// SplitArgs splits the input on spaces. "double quotes" and `code ticks` group words,
// a backslash escapes a space or quote and `\\` is a literal backslash.
func SplitArgs(in string) []*RawArg {
	var s argScanner
	for _, r := range in {
		s.feed(r)
	}
	return s.finish()
}

type argScanner struct {
	out     []*RawArg
	buf     strings.Builder
	quote   rune
	escaped bool
}

func isQuote(r rune) bool {
	return r == '"' || r == '`'
}

func (s *argScanner) emit(quote rune) {
	s.out = append(s.out, &RawArg{Str: s.buf.String(), Container: quote})
	s.buf.Reset()
}

func (s *argScanner) feed(r rune) {
	if r == '\\' {
		if s.escaped {
			s.buf.WriteByte('\\')
		}
		s.escaped = !s.escaped
		return
	}

	escaped := s.escaped
	s.escaped = false

	switch {
	case r == ' ':
		if s.buf.Len() == 0 {
			return
		}
		if s.quote == 0 && !escaped {
			s.emit(0)
		} else {
			s.buf.WriteByte(' ')
		}

	case s.quote != 0 && r == s.quote:
		if escaped {
			s.buf.WriteRune(r)
			return
		}
		s.emit(s.quote)
		s.quote = 0

	case s.quote == 0 && s.buf.Len() == 0 && isQuote(r):
		if escaped {
			s.buf.WriteRune(r)
			return
		}
		s.quote = r

	default:
		// unknown escapes are kept as typed
		if escaped {
			s.buf.WriteByte('\\')
		}
		s.buf.WriteRune(r)
	}
}

// finish flushes the last word, an unterminated quote keeps its opening rune
func (s *argScanner) finish() []*RawArg {
	if s.buf.Len() > 0 {
		last := s.buf.String()
		if s.quote != 0 {
			last = string(s.quote) + last
		}
		s.out = append(s.out, &RawArg{Str: last})
	}
	return s.out
}

// FindCombo picks the combo with the most good matches, ties go to the most poor matches
// and then to the first listed. Without combos every def is used in order.
func FindCombo(defs []*ArgDef, combos [][]int, args []*RawArg) ([]int, bool) {
	if len(combos) == 0 {
		all := make([]int, len(defs))
		for i := range all {
			all[i] = i
		}
		return all, true
	}

	var best []int
	bestGood, bestPoor := -1, -1
	for _, combo := range combos {
		good, poor, ok := scoreCombo(combo, defs, args)
		if !ok {
			continue
		}
		if good > bestGood || (good == bestGood && poor > bestPoor) {
			best, bestGood, bestPoor = combo, good, poor
		}
	}

	return best, bestGood >= 0
}

func scoreCombo(combo []int, defs []*ArgDef, args []*RawArg) (good, poor int, ok bool) {
	if len(combo) > len(args) {
		return 0, 0, false
	}

	for i, defIndex := range combo {
		def := defs[defIndex]
		switch compat := def.Type.CheckCompatibility(def, args[i].Str); compat {
		case CompatibilityGood:
			good++
		case CompatibilityPoor:
			poor++
		case Incompatible:
			return 0, 0, false
		default:
			panic(fmt.Sprintf("dcmd: unexpected compatibility %s while picking a combo", compat))
		}
	}
	return good, poor, true
}
