package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/ragview/internal/controller"
)

const (
	prompt     = "> "
	contPrompt = ". "
	helpText   = `Type a message and press Enter. End a line with \ to continue it.
  /url <url>      ingest a web page
  /file <path>    ingest a file (.pdf, .docx, .json, .txt)
  /new            start a new chat
  /history        list past chats
  /load <id>      open a past chat
  /clear          delete all past chats
  /like /dislike  rate the last answer
  /quit           exit
`
)

// REPL reads commands and messages line by line and drives a controller.
type REPL struct {
	Console *Console

	in  *bufio.Scanner
	out io.Writer
}

// maxLine bounds one input line; the scanner default of 64 KiB is too small
// for pasted documents.
const maxLine = 1 << 20

func NewREPL(in io.Reader, out io.Writer) *REPL {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &REPL{
		Console: NewConsole(out),
		in:      sc,
		out:     out,
	}
}

// Confirm asks a y/N question on the same input. Anything but y or yes is no.
func (r *REPL) Confirm(question string) bool {
	fmt.Fprintf(r.out, "%s [y/N] ", question)
	if !r.in.Scan() {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(r.in.Text())) {
	case "y", "yes":
		return true
	}
	return false
}

// readMessage joins continuation lines. A trailing backslash stands for a
// newline inside the message.
func (r *REPL) readMessage() (string, bool) {
	var parts []string
	fmt.Fprint(r.out, prompt)
	for r.in.Scan() {
		line := r.in.Text()
		if strings.HasSuffix(line, `\`) {
			parts = append(parts, strings.TrimSuffix(line, `\`))
			fmt.Fprint(r.out, contPrompt)
			continue
		}
		parts = append(parts, line)
		return strings.Join(parts, "\n"), true
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n"), true
	}
	return "", false
}

// Run loops until /quit, end of input or ctx is done.
func (r *REPL) Run(ctx context.Context, ctl *controller.Controller) error {
	ctl.Start()
	fmt.Fprint(r.out, "Type /help for commands.\n")
	for ctx.Err() == nil {
		line, ok := r.readMessage()
		if !ok {
			return r.in.Err()
		}
		if r.dispatch(ctx, ctl, line) {
			return nil
		}
	}
	return ctx.Err()
}

func (r *REPL) dispatch(ctx context.Context, ctl *controller.Controller, line string) (quit bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "/") {
		report(ctl.Ask(ctx, line))
		return false
	}

	cmd, arg, _ := strings.Cut(trimmed, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprint(r.out, helpText)
	case "/url":
		report(ctl.IngestURL(ctx, arg))
	case "/file":
		report(r.ingestFile(ctx, ctl, arg))
	case "/new":
		report(ctl.NewChat())
	case "/history":
		r.Console.PrintHistory()
	case "/load":
		found, err := ctl.LoadConversation(arg)
		report(err)
		if err == nil && !found {
			fmt.Fprintf(r.out, "No chat with id %q; started a new one.\n", arg)
		}
	case "/clear":
		if err := ctl.ClearHistory(ctx); errors.Is(err, controller.ErrNotConfirmed) {
			fmt.Fprintln(r.out, "Cancelled.")
		} else {
			report(err)
		}
	case "/like", "/dislike":
		if _, err := ctl.Feedback(strings.TrimPrefix(cmd, "/")); err != nil {
			report(err)
		}
	default:
		fmt.Fprintf(r.out, "Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

// ingestFile opens path and hands it to the controller. An empty path goes
// through unchanged so the controller reports the missing file.
func (r *REPL) ingestFile(ctx context.Context, ctl *controller.Controller, path string) error {
	if path == "" {
		return ctl.IngestFile(ctx, nil)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(r.out, "[error] %v\n", err)
		return nil
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		fmt.Fprintf(r.out, "[error] %v\n", err)
		return nil
	}
	return ctl.IngestFile(ctx, &controller.Upload{Name: filepath.Base(path), Size: st.Size(), Body: f})
}

// report logs flow errors the Console has not already shown.
func report(err error) {
	if err == nil {
		return
	}
	var be *controller.BackendError
	switch {
	case errors.As(err, &be),
		errors.Is(err, controller.ErrEmptyInput),
		errors.Is(err, controller.ErrNoFile):
		return
	}
	log.Debug().Err(err).Msg("command failed")
}
