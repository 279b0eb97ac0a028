package transcript

import (
	"fmt"
	"io"
	"strings"

	"github.com/suPer8Hu/ragview/internal/chat"
	"golang.org/x/net/html"
)

// Terminal prints bubbles to a writer, one block per message.
type Terminal struct {
	w io.Writer
	// Clear is written on Reset, e.g. an ANSI clear-screen sequence.
	Clear string
}

func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) Append(sender chat.Sender, content string) {
	label := "AI"
	if sender == chat.SenderUser {
		label = "You"
	}
	text := PlainText(content)
	lines := strings.Split(text, "\n")
	fmt.Fprintf(t.w, "%-4s %s\n", label+":", lines[0])
	for _, l := range lines[1:] {
		fmt.Fprintf(t.w, "     %s\n", l)
	}
}

func (t *Terminal) Reset() {
	if t.Clear != "" {
		fmt.Fprint(t.w, t.Clear)
		return
	}
	fmt.Fprintln(t.w, strings.Repeat("-", 40))
}

// PlainText flattens an HTML fragment. Block elements become line breaks and
// links keep their target.
func PlainText(fragment string) string {
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	var href string
	linkStart := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(collapseBlankLines(b.String()))
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "br":
				b.WriteByte('\n')
			case "li":
				b.WriteString("\n- ")
			case "a":
				href = ""
				linkStart = b.Len()
				for hasAttr {
					var k, v []byte
					k, v, hasAttr = z.TagAttr()
					if string(k) == "href" {
						href = string(v)
					}
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "p", "div", "ul", "ol", "pre", "h1", "h2", "h3", "h4":
				b.WriteByte('\n')
			case "a":
				// the target is shown unless the link text already is the URL
				if href != "" && !strings.Contains(b.String()[linkStart:], href) {
					fmt.Fprintf(&b, " <%s>", href)
				}
				href = ""
			}
		}
	}
}

func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	prevBlank := false
	for _, l := range lines {
		l = strings.TrimRight(l, " \t")
		blank := strings.TrimSpace(l) == ""
		if blank && prevBlank {
			continue
		}
		out = append(out, l)
		prevBlank = blank
	}
	return strings.Join(out, "\n")
}
