package moderation

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

const (
	expungePageSize = 10
	expungeTimeout  = time.Second * 60
)

// expunge walks a moderator through a user's warnings, nothing is removed until they finish
type expunge struct {
	prompter *bot.Prompter
	guildID  string
	target   *discordgo.User

	warnings []*Warning
	marked   map[int64]bool
	page     int
}

// RunExpunge runs the expunge prompt chain and returns the final message for the moderator
func RunExpunge(ctx context.Context, prompter *bot.Prompter, guildID string, target *discordgo.User, maxAgeDays int) (string, error) {
	warnings, err := GetWarnings(guildID, target.ID, maxAgeDays)
	if err != nil {
		return "", err
	}

	if len(warnings) == 0 {
		return userName(target) + " has no warnings", nil
	}

	e := &expunge{
		prompter: prompter,
		guildID:  guildID,
		target:   target,
		warnings: warnings,
		marked:   make(map[int64]bool),
	}

	return e.run(ctx)
}

func (e *expunge) pages() int {
	return (len(e.warnings) + expungePageSize - 1) / expungePageSize
}

func (e *expunge) render(notice string) string {
	var b strings.Builder
	if notice != "" {
		b.WriteString(notice + "\n\n")
	}

	fmt.Fprintf(&b, "**Warnings of %s** (page %d/%d)\n", userName(e.target), e.page+1, e.pages())

	start := e.page * expungePageSize
	end := start + expungePageSize
	if end > len(e.warnings) {
		end = len(e.warnings)
	}

	for i, w := range e.warnings[start:end] {
		line := fmt.Sprintf("`%d` %s: %s (by %s)", start+i+1, w.CreatedAt.UTC().Format("2006-01-02"),
			common.CutStringShort(w.Reason, 200), w.AuthorName)
		if e.marked[w.ID] {
			line = "~~" + line + "~~"
		}
		b.WriteString(line + "\n")
	}

	b.WriteString("\nReply with a number to remove that warning, `all` to remove every warning, `skip` for the next page, `finish` to save or `cancel` to stop without changes.")
	return b.String()
}

func (e *expunge) run(ctx context.Context) (string, error) {
	notice := ""
	for {
		reply, err := e.prompter.Ask(ctx, e.render(notice))
		if err != nil {
			if errors.Is(err, bot.ErrPromptCancelled) || errors.Is(err, bot.ErrPromptTimeout) {
				return "Cancelled, no warnings were removed", nil
			}
			return "", err
		}

		switch reply.Keyword {
		case bot.KeywordSkip:
			e.page = (e.page + 1) % e.pages()
			notice = ""
			continue
		case bot.KeywordFinish:
			return e.finish()
		}

		if strings.EqualFold(reply.Text, "all") {
			for _, w := range e.warnings {
				e.marked[w.ID] = true
			}
			notice = fmt.Sprintf("Marked all %d warnings, say `finish` to remove them", len(e.warnings))
			continue
		}

		n, err := strconv.Atoi(strings.TrimPrefix(reply.Text, "#"))
		if err != nil || n < 1 || n > len(e.warnings) {
			notice = fmt.Sprintf("That's not a warning number, pick one between 1 and %d", len(e.warnings))
			continue
		}

		w := e.warnings[n-1]
		e.marked[w.ID] = true
		e.page = (n - 1) / expungePageSize
		notice = fmt.Sprintf("Marked warning `%d` for removal", n)
	}
}

func (e *expunge) finish() (string, error) {
	if len(e.marked) == 0 {
		return "No warnings were removed", nil
	}

	ids := make([]int64, 0, len(e.marked))
	for id := range e.marked {
		ids = append(ids, id)
	}

	removed, err := DeleteWarnings(e.guildID, e.target.ID, ids)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("Removed %d warning(s) from %s", removed, userName(e.target)), nil
}
