package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"charm.land/lipgloss/v2"
	"golang.org/x/term"

	"github.com/bazelment/yoloswe/acprelay/projection"
)

// ErrUnknownMessage is returned when editing a message this sink never sent.
var ErrUnknownMessage = errors.New("unknown message")

var (
	messageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	editedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Italic(true)
	sessionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
)

// Terminal prints projected output to a writer. Tool and status messages go
// on their own lines; an edit reprints the message marked "(edited)".
type Terminal struct {
	out      io.Writer
	messages map[string]string
	nextID   int
	mu       sync.Mutex
	styled   bool
	midLine  bool
}

// NewTerminal returns a Terminal writing to out. Styling is enabled only
// when out is a terminal.
func NewTerminal(out io.Writer) *Terminal {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Terminal{out: out, styled: styled, messages: make(map[string]string)}
}

func (t *Terminal) style(s lipgloss.Style, text string) string {
	if !t.styled {
		return text
	}
	return s.Render(text)
}

// Send implements projection.Sender.
func (t *Terminal) Send(_ context.Context, dest projection.Destination, content string) (projection.Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := fmt.Sprintf("%d", t.nextID)
	t.messages[id] = content
	if err := t.printLine(dest, t.style(messageStyle, content)); err != nil {
		return projection.Handle{}, err
	}
	return projection.Handle{Destination: dest, MessageID: id}, nil
}

// Edit implements projection.Sender.
func (t *Terminal) Edit(_ context.Context, h projection.Handle, content string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.messages[h.MessageID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMessage, h.MessageID)
	}
	t.messages[h.MessageID] = content
	return t.printLine(h.Destination, t.style(messageStyle, content)+" "+t.style(editedStyle, "(edited)"))
}

// CanEdit implements projection.Sender.
func (t *Terminal) CanEdit(projection.Destination) bool { return true }

// WriteSegment prints assistant text as it is drained.
func (t *Terminal) WriteSegment(_ context.Context, segment string) error {
	if segment == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := io.WriteString(t.out, segment); err != nil {
		return err
	}
	t.midLine = segment[len(segment)-1] != '\n'
	return nil
}

func (t *Terminal) printLine(dest projection.Destination, text string) error {
	prefix := ""
	if t.midLine {
		prefix = "\n"
		t.midLine = false
	}
	if dest.Target != "" {
		text = t.style(sessionStyle, "["+dest.Target+"]") + " " + text
	}
	_, err := fmt.Fprintf(t.out, "%s%s\n", prefix, text)
	return err
}
