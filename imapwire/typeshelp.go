package imapwire

import (
	"bytes"
	"fmt"
	"strings"
)

// AppendValue appends a copy of src as a new element of values,
// reusing element capacity where possible.
func AppendValue(values [][]byte, src []byte) [][]byte {
	if len(values) < cap(values) {
		values = values[:len(values)+1]
	} else {
		values = append(values, make([]byte, 0, len(src)))
	}
	values[len(values)-1] = append(values[len(values)-1][:0], src...)
	return values
}

func (item *FetchAttr) String() string {
	if item == nil {
		return "FetchAttr(nil)"
	}
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "%s", item.Type)
	if item.Peek {
		switch item.Type {
		case FetchBody:
			buf.Reset()
			buf.WriteString("BODY.PEEK")
		case FetchBinary:
			buf.Reset()
			buf.WriteString("BINARY.PEEK")
		}
	}
	if item.HasSection {
		item.appendSection(buf)
	}
	if item.HasPartial {
		fmt.Fprintf(buf, "<%d.%d>", item.Partial.Start, item.Partial.Length)
	}
	return buf.String()
}

func (item *FetchAttr) appendSection(buf *bytes.Buffer) {
	s := item.Section
	buf.WriteByte('[')
	for i, v := range s.Path {
		if i > 0 {
			buf.WriteByte('.')
		}
		fmt.Fprintf(buf, "%d", v)
	}
	if s.Name != "" {
		if len(s.Path) > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(s.Name)
	}
	if len(s.Headers) > 0 {
		buf.WriteString(" (")
		for i, h := range s.Headers {
			if i > 0 {
				buf.WriteByte(' ')
			}
			buf.Write(h)
		}
		buf.WriteByte(')')
	}
	buf.WriteByte(']')
}

func (c *Command) String() string {
	buf := new(bytes.Buffer)
	fmt.Fprintf(buf, "Command{Tag: %q, Name: %q, ", c.Tag, c.Name)
	if c.UID {
		fmt.Fprint(buf, "UID, ")
	}
	if len(c.Mailbox) > 0 {
		fmt.Fprintf(buf, "Mailbox: %q, ", string(c.Mailbox))
	}
	if c.Condstore {
		fmt.Fprintf(buf, "Condstore, ")
	}
	if c.Qresync.UIDValidity != 0 || c.Qresync.ModSeq != 0 {
		fmt.Fprintf(buf, "Qresync: {%d %d %v}, ", c.Qresync.UIDValidity, c.Qresync.ModSeq, c.Qresync.UIDs)
	}
	if c.Set.SavedResult || len(c.Set.Seqs) > 0 {
		fmt.Fprintf(buf, "Set: %s, ", c.Set)
	}
	if len(c.Rename.OldMailbox) > 0 || len(c.Rename.NewMailbox) > 0 {
		fmt.Fprintf(buf, "Rename: {%q, %q}, ", c.Rename.OldMailbox, c.Rename.NewMailbox)
	}
	if len(c.Params) > 0 {
		fmt.Fprintf(buf, "Params: %q, ", string(bytes.Join(c.Params, []byte(", "))))
	}
	if c.Auth.Username != "" {
		fmt.Fprintf(buf, "Auth: {%q}, ", c.Auth.Username)
	}
	if c.Authenticate.Mechanism != "" {
		fmt.Fprintf(buf, "Authenticate: {%s}, ", c.Authenticate.Mechanism)
	}
	if len(c.List.MailboxGlob) > 0 || len(c.List.ReferenceName) > 0 {
		fmt.Fprintf(buf, "List: {%v, %q, %q, %v}, ", c.List.SelectOptions, c.List.ReferenceName, c.List.MailboxGlob, c.List.ReturnOptions)
	}
	if len(c.Status.Items) > 0 {
		fmt.Fprintf(buf, "Status: {%v}, ", c.Status.Items)
	}
	if len(c.FetchItems) > 0 {
		fmt.Fprintf(buf, "Fetch: {")
		for i := range c.FetchItems {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteString(c.FetchItems[i].String())
		}
		buf.WriteString("}, ")
	}
	if c.ChangedSince != 0 {
		fmt.Fprintf(buf, "ChangedSince: %d, ", c.ChangedSince)
	}
	if c.Vanished {
		fmt.Fprintf(buf, "Vanished, ")
	}
	if c.Store.Mode != 0 {
		fmt.Fprintf(buf, "Store: {%s %v}, ", c.Store.Mode, c.Store.Flags)
	}
	if c.Search.Op != nil {
		fmt.Fprintf(buf, "Search: {%v %q %v}, ", c.Search.Op, c.Search.Charset, c.Search.Return)
	}
	if len(c.Metadata.Entries) > 0 {
		fmt.Fprintf(buf, "Metadata: {%v}, ", c.Metadata.Entries)
	}
	return strings.TrimSuffix(buf.String(), ", ") + "}"
}
