package terminal

import (
	"fmt"
	"io"
	"sync"

	"github.com/suPer8Hu/ragview/internal/chat"
	"github.com/suPer8Hu/ragview/internal/controller"
)

// Console is the terminal Surface. Status lines are printed as they come;
// the history list is kept for the /history command.
type Console struct {
	mu      sync.Mutex
	w       io.Writer
	entries []chat.Entry
	rows    int
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ShowLoading(msg string) {
	c.printf("... %s\n", msg)
}

func (c *Console) HideLoading() {}

func (c *Console) ShowStatus(n controller.Notice) {
	c.printf("[%s] %s\n", n.Kind, n.Text)
}

func (c *Console) HideStatus() {}

func (c *Console) ShowFeedback(visible bool) {
	if visible {
		c.printf("(rate this answer with /like or /dislike)\n")
	}
}

func (c *Console) ClearInput(controller.Field) {}

func (c *Console) ResizeInput(rows int) {
	c.mu.Lock()
	c.rows = rows
	c.mu.Unlock()
}

func (c *Console) RenderHistory(entries []chat.Entry) {
	c.mu.Lock()
	c.entries = append([]chat.Entry(nil), entries...)
	c.mu.Unlock()
}

// PrintHistory lists conversations newest first; the active one is starred.
func (c *Console) PrintHistory() {
	c.mu.Lock()
	entries := c.entries
	c.mu.Unlock()

	if len(entries) == 0 {
		c.printf("No past chats.\n")
		return
	}
	for _, e := range entries {
		mark := " "
		if e.Selected {
			mark = "*"
		}
		c.printf("%s %s  %s  %s\n", mark, e.ID, e.When(), e.Title)
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}
