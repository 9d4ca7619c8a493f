package run

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/yuzubot/yuzu/commands"
	"github.com/yuzubot/yuzu/common/config"
	"github.com/yuzubot/yuzu/lib/dcmd"
)

const commandDocsLegend = "## Legend\n\n" +
	"`<required arg>` `[optional arg]`\n\n" +
	"Text arguments with spaces need quotes (\"arg here\") or code ticks (`arg here`) unless they are the last argument.\n\n" +
	"For example with remindme, if the time is several words: `-remindme \"next friday\" water the plants`\n\n"

// GenCommandsDocs writes markdown docs of every registered command to stdout
func GenCommandsDocs() {
	writeCommandDocs(os.Stdout, commands.CommandSystem.Root)
}

func writeCommandDocs(w io.Writer, root *dcmd.Container) {
	io.WriteString(w, commandDocsLegend)

	formatter := &dcmd.StdHelpFormatter{}
	data := &dcmd.Data{}

	for _, set := range dcmd.SortCommands(root, root) {
		fmt.Fprintf(w, "## %s\n\n", set.Title())

		for _, entry := range set.Commands {
			names := entry.Cmd.Trigger.Names

			fmt.Fprintf(w, "### %s\n\n", strings.TrimSpace(entry.Container.FullName(false)+" "+names[0]))
			if len(names) > 1 {
				fmt.Fprintf(w, "**Aliases:** %s\n\n", strings.Join(names[1:], "/"))
			}

			fmt.Fprintf(w, "%s\n\n", dcmd.Description(entry.Cmd.Command, data, true))
			fmt.Fprintf(w, "**Usage:**\n```\n%s\n```\n", formatter.ArgDefs(entry.Cmd, data))
			if switches := formatter.Switches(entry.Cmd.Command); switches != "" {
				fmt.Fprintf(w, "```\n%s\n```\n", switches)
			}
			io.WriteString(w, "\n")
		}
	}
}

// GenConfigDocs writes the config options and their environment names to stdout
func GenConfigDocs() {
	writeConfigDocs(os.Stdout, config.Singleton.Options)
}

func writeConfigDocs(w io.Writer, options map[string]*config.ConfigOption) {
	names := make([]string, 0, len(options))
	for name := range options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		opt := options[name]

		line := "**" + opt.Description + "**"
		if kind, def := describeDefault(opt.DefaultValue); kind != "" {
			line += " (" + kind
			if def != "" {
				line += ", default: " + def
			}
			line += ")"
		}

		fmt.Fprintf(w, "%s\n%s\n\n", line, config.EnvName(opt.Name))
	}
}

func describeDefault(v interface{}) (kind, def string) {
	switch t := v.(type) {
	case string:
		return "string", t
	case bool:
		return "true/false", fmt.Sprint(t)
	case time.Duration:
		return "duration", t.String()
	case int, int64, uint, uint64, float64:
		return "number", fmt.Sprint(t)
	}
	return "", ""
}
