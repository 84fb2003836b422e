// Package presentation prints the reconciled sequence of a conversation to a terminal.
package presentation

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/gookit/color"
	"github.com/samber/lo"
)

const timeLayout = time.TimeOnly

var (
	selfStyle   = color.New(color.FgGreen, color.OpBold)
	otherStyle  = color.New(color.FgCyan)
	systemStyle = color.New(color.FgGray, color.OpItalic)
	statusStyle = color.New(color.BgBlack, color.FgYellow)
)

// Renderer appends new messages to out as the sequence grows. When a late
// message lands before lines already printed, the whole sequence is printed again.
type Renderer struct {
	mu       sync.Mutex
	out      io.Writer
	identity contract.IdentityProvider
	colours  bool
	printed  []chat.MessageID
}

func NewRenderer(out io.Writer, identity contract.IdentityProvider, colours bool) *Renderer {
	return &Renderer{out: out, identity: identity, colours: colours}
}

// Render is meant to be passed to Session.Subscribe.
func (r *Renderer) Render(messages []chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := lo.Map(messages, func(m chat.Message, _ int) chat.MessageID { return m.ID })
	from := len(r.printed)
	if len(ids) < from || !slices.Equal(ids[:from], r.printed) {
		if len(r.printed) > 0 {
			_, _ = fmt.Fprintln(r.out, r.paint(statusStyle, "--- conversation reordered ---"))
		}
		from = 0
	}
	for _, m := range messages[from:] {
		_, _ = fmt.Fprintln(r.out, r.Line(m))
	}
	r.printed = ids
}

// Status prints a connection transition.
func (r *Renderer) Status(state chat.ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, r.paint(statusStyle, fmt.Sprintf("*** %s ***", state)))
}

// Error prints a non-fatal problem such as a failed save.
func (r *Renderer) Error(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.out, r.paint(color.New(color.FgRed), "! "+err.Error()))
}

// Line formats one message as "[15:04:05] Sender: content".
func (r *Renderer) Line(m chat.Message) string {
	sender, style := r.sender(m)
	at := "--:--:--"
	if !m.CreatedAt.IsZero() {
		at = m.CreatedAt.Local().Format(timeLayout)
	}
	return fmt.Sprintf("[%s] %s: %s", at, r.paint(style, sender), m.Content)
}

func (r *Renderer) sender(m chat.Message) (string, color.Style) {
	if !m.HasSender() {
		return "system", systemStyle
	}
	if author, known := r.identity.Current(); known && m.AuthoredBy(author.ID) {
		return "You", selfStyle
	}
	return lo.CoalesceOrEmpty(m.SenderDisplayName, m.SenderID), otherStyle
}

func (r *Renderer) paint(style color.Style, text string) string {
	if !r.colours {
		return text
	}
	return style.Render(text)
}
