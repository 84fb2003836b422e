package presentation

import (
	"adoption-chat/contract"
	"adoption-chat/domain/chat"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Transcript writes the whole conversation as a table, one row per message.
func Transcript(out io.Writer, messages []chat.Message, identity contract.IdentityProvider) {
	r := NewRenderer(io.Discard, identity, false)

	table := NewTable(out, "Time", "Sender", "Message")
	for _, m := range messages {
		sender, _ := r.sender(m)
		at := "-"
		if !m.CreatedAt.IsZero() {
			at = m.CreatedAt.UTC().Format(time.DateTime)
		}
		table.Append([]string{at, sender, m.Content})
	}
	table.Render()
}

// NewTable returns a borderless, left aligned table.
func NewTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	return table
}
