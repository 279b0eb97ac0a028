package transcript

import "github.com/suPer8Hu/ragview/internal/chat"

// Renderer displays message bubbles. Append must not redraw earlier bubbles.
type Renderer interface {
	Append(sender chat.Sender, content string)
	// Reset clears the visible transcript.
	Reset()
}

// Replay renders a stored transcript after a Reset, e.g. when a conversation is loaded.
func Replay(r Renderer, msgs []chat.Message) {
	r.Reset()
	for _, m := range msgs {
		r.Append(m.Sender, m.Content)
	}
}
