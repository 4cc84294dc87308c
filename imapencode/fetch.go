package imapencode

import (
	"fmt"

	"wingmail.dev/imap/imapwire"
)

// Macro attribute sets from RFC 3501 section 6.4.5.
var fetchMacros = []struct {
	name  string
	types []imapwire.FetchAttrType
}{
	{"FAST", []imapwire.FetchAttrType{
		imapwire.FetchFlags, imapwire.FetchInternalDate, imapwire.FetchRFC822Size,
	}},
	{"ALL", []imapwire.FetchAttrType{
		imapwire.FetchFlags, imapwire.FetchInternalDate, imapwire.FetchRFC822Size,
		imapwire.FetchEnvelope,
	}},
	{"FULL", []imapwire.FetchAttrType{
		imapwire.FetchFlags, imapwire.FetchInternalDate, imapwire.FetchRFC822Size,
		imapwire.FetchEnvelope, imapwire.FetchBody,
	}},
}

// fetchMacro reports the macro token standing for items, or "".
// Only plain attributes qualify: a BODY with a section is not the
// BODY of FULL.
func fetchMacro(items []imapwire.FetchAttr) string {
	for _, item := range items {
		if item.Peek || item.HasSection || item.HasPartial {
			return ""
		}
	}
macros:
	for _, macro := range fetchMacros {
		if len(items) != len(macro.types) {
			continue
		}
		for _, want := range macro.types {
			found := false
			for _, item := range items {
				if item.Type == want {
					found = true
					break
				}
			}
			if !found {
				continue macros
			}
		}
		return macro.name
	}
	return ""
}

func (e *encoder) fetch(cmd *imapwire.Command) error {
	e.raw("FETCH")
	e.sp()
	e.numSet(cmd.Set)
	e.sp()

	if len(cmd.FetchItems) == 0 {
		return fmt.Errorf("imapencode: FETCH with no items")
	}
	if macro := fetchMacro(cmd.FetchItems); macro != "" {
		e.raw(macro)
	} else if len(cmd.FetchItems) == 1 {
		if err := e.fetchItem(&cmd.FetchItems[0]); err != nil {
			return err
		}
	} else {
		e.buf.WriteByte('(')
		for i := range cmd.FetchItems {
			if i > 0 {
				e.sp()
			}
			if err := e.fetchItem(&cmd.FetchItems[i]); err != nil {
				return err
			}
		}
		e.buf.WriteByte(')')
	}

	if cmd.ChangedSince != 0 || cmd.Vanished {
		if len(e.opts.Capabilities) > 0 && !e.opts.has("CONDSTORE") {
			return fmt.Errorf("imapencode: server did not advertise CONDSTORE")
		}
		if cmd.Vanished && !cmd.UID {
			return fmt.Errorf("imapencode: VANISHED requires UID FETCH")
		}
		e.raw(" (CHANGEDSINCE ")
		e.modseq(cmd.ChangedSince)
		if cmd.Vanished {
			e.raw(" VANISHED")
		}
		e.buf.WriteByte(')')
	}
	return nil
}

func (e *encoder) fetchItem(item *imapwire.FetchAttr) error {
	switch item.Type {
	case imapwire.FetchAll, imapwire.FetchFull, imapwire.FetchFast:
		return fmt.Errorf("imapencode: macro %s is only valid as the whole item list", item.Type)
	case imapwire.FetchBinary, imapwire.FetchBinarySize:
		if len(e.opts.Capabilities) > 0 && !e.opts.has("BINARY") {
			return fmt.Errorf("imapencode: server did not advertise BINARY")
		}
	}

	name := string(item.Type)
	if item.Peek {
		switch item.Type {
		case imapwire.FetchBody:
			name = "BODY.PEEK"
		case imapwire.FetchBinary:
			name = "BINARY.PEEK"
		default:
			return fmt.Errorf("imapencode: %s has no PEEK form", item.Type)
		}
	}
	e.raw(name)

	if item.HasSection {
		switch item.Type {
		case imapwire.FetchBody, imapwire.FetchBinary, imapwire.FetchBinarySize:
		default:
			return fmt.Errorf("imapencode: %s takes no section", item.Type)
		}
		e.section(&item.Section)
	} else if item.Peek {
		return fmt.Errorf("imapencode: %s PEEK requires a section", item.Type)
	}

	if item.HasPartial {
		e.buf.WriteByte('<')
		e.number(item.Partial.Start)
		e.buf.WriteByte('.')
		e.number(item.Partial.Length)
		e.buf.WriteByte('>')
	}
	return nil
}

func (e *encoder) section(s *imapwire.SectionSpecifier) {
	e.buf.WriteByte('[')
	for i, v := range s.Path {
		if i > 0 {
			e.buf.WriteByte('.')
		}
		e.number(uint32(v))
	}
	if s.Name != "" {
		if len(s.Path) > 0 {
			e.buf.WriteByte('.')
		}
		e.raw(s.Name)
	}
	if len(s.Headers) > 0 {
		e.raw(" (")
		for i, h := range s.Headers {
			if i > 0 {
				e.sp()
			}
			e.astring(string(h))
		}
		e.buf.WriteByte(')')
	}
	e.buf.WriteByte(']')
}
