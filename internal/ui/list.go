package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/capsule/internal/journal"
)

var _ list.Item = entryItem{}

// entryItem wraps the visible form of a [journal.Entry] to implement [list.Item].
type entryItem struct {
	entry  journal.Entry
	sealed bool
}

func newEntryItem(e *journal.Entry, now time.Time) entryItem {
	return entryItem{entry: e.Visible(now), sealed: e.IsSealed(now)}
}

func (i entryItem) FilterValue() string { return i.entry.Title }

func (i entryItem) Title() string {
	title := i.entry.Title
	if strings.TrimSpace(title) == "" {
		title = "(untitled)"
	}
	if i.sealed {
		return styles.sealed.Render("sealed · " + title)
	}
	return title
}

func (i entryItem) Description() string {
	desc := i.entry.CreatedAt.Local().Format("Jan 2, 2006")
	if i.entry.Mood != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.entry.Mood)
	}
	body := i.entry
	body.Title = ""
	if summary := body.Summary(60); summary != "" {
		desc = fmt.Sprintf("%s • %s", desc, summary)
	}
	return desc
}
