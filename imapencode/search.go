package imapencode

import (
	"fmt"

	"wingmail.dev/imap/imapwire"
)

func (e *encoder) search(cmd *imapwire.Command) error {
	e.raw("SEARCH")
	if len(cmd.Search.Return) > 0 {
		if len(e.opts.Capabilities) > 0 && !e.opts.has("ESEARCH") {
			return fmt.Errorf("imapencode: server did not advertise ESEARCH")
		}
		e.raw(" RETURN (")
		for i, opt := range cmd.Search.Return {
			if i > 0 {
				e.sp()
			}
			e.raw(opt)
		}
		e.buf.WriteByte(')')
	}
	if cmd.Search.Charset != "" {
		// Normalise the charset name so "utf8", "UTF-8", and
		// "csUTF8" all put the same bytes on the wire. A name
		// ianaindex does not know cannot be rendered canonically
		// and is refused here rather than bounced by the server.
		cs, err := imapwire.CanonicalCharset(cmd.Search.Charset)
		if err != nil {
			return err
		}
		e.raw(" CHARSET ")
		e.astring(cs)
	}
	if cmd.Search.Op == nil {
		return fmt.Errorf("imapencode: SEARCH with no program")
	}
	e.sp()
	return e.searchOp(cmd.Search.Op, true)
}

// searchOp renders one search key. At top level an AND spreads its
// children without parentheses, matching the implicit conjunction
// of the SEARCH grammar.
func (e *encoder) searchOp(op *imapwire.SearchOp, top bool) error {
	switch op.Key {
	case imapwire.SearchAnd:
		if len(op.Children) == 0 {
			e.raw("()")
			return nil
		}
		if len(op.Children) == 1 {
			// A one-key conjunction is that key.
			return e.searchOp(&op.Children[0], top)
		}
		if !top {
			e.buf.WriteByte('(')
		}
		for i := range op.Children {
			if i > 0 {
				e.sp()
			}
			if err := e.searchOp(&op.Children[i], false); err != nil {
				return err
			}
		}
		if !top {
			e.buf.WriteByte(')')
		}
		return nil

	case imapwire.SearchNot:
		if len(op.Children) != 1 {
			return fmt.Errorf("imapencode: NOT takes exactly one operand")
		}
		e.raw("NOT ")
		return e.searchOp(&op.Children[0], false)

	case imapwire.SearchOr:
		if len(op.Children) != 2 {
			return fmt.Errorf("imapencode: OR takes exactly two operands")
		}
		e.raw("OR ")
		if err := e.searchOp(&op.Children[0], false); err != nil {
			return err
		}
		e.sp()
		return e.searchOp(&op.Children[1], false)

	case imapwire.SearchSeqSet:
		e.numSet(op.Set)
		return nil

	case imapwire.SearchUID:
		e.raw("UID ")
		e.numSet(op.Set)
		return nil

	case imapwire.SearchAll, imapwire.SearchAnswered, imapwire.SearchDeleted,
		imapwire.SearchDraft, imapwire.SearchFlagged, imapwire.SearchNew,
		imapwire.SearchOld, imapwire.SearchRecent, imapwire.SearchSeen,
		imapwire.SearchUnanswered, imapwire.SearchUndeleted, imapwire.SearchUndraft,
		imapwire.SearchUnflagged, imapwire.SearchUnseen:
		e.raw(string(op.Key))
		return nil

	case imapwire.SearchBCC, imapwire.SearchBody, imapwire.SearchCC,
		imapwire.SearchFrom, imapwire.SearchSubject, imapwire.SearchText,
		imapwire.SearchTo:
		e.raw(string(op.Key))
		e.sp()
		e.astring(op.Value)
		return nil

	case imapwire.SearchKeyword, imapwire.SearchUnkeyword:
		e.raw(string(op.Key))
		e.sp()
		e.raw(op.Value)
		return nil

	case imapwire.SearchHeader:
		e.raw("HEADER ")
		e.astring(op.Entry)
		e.sp()
		e.astring(op.Value)
		return nil

	case imapwire.SearchBefore, imapwire.SearchOn, imapwire.SearchSince,
		imapwire.SearchSentBefore, imapwire.SearchSentOn, imapwire.SearchSentSince:
		e.raw(string(op.Key))
		e.sp()
		e.date(op.Date)
		return nil

	case imapwire.SearchLarger, imapwire.SearchSmaller:
		e.raw(string(op.Key))
		e.sp()
		e.number64(uint64(op.Num))
		return nil

	case imapwire.SearchOlder, imapwire.SearchYounger: // RFC 5032
		if len(e.opts.Capabilities) > 0 && !e.opts.has("WITHIN") {
			return fmt.Errorf("imapencode: server did not advertise WITHIN")
		}
		e.raw(string(op.Key))
		e.sp()
		e.number64(uint64(op.Num))
		return nil

	case imapwire.SearchModSeq: // RFC 7162
		e.raw("MODSEQ")
		if op.Entry != "" {
			e.sp()
			e.quoted(op.Entry)
			e.sp()
			e.raw(op.EntryType)
		}
		e.sp()
		e.number64(uint64(op.Num))
		return nil

	case imapwire.SearchFilter: // RFC 5466
		e.raw("FILTER ")
		e.raw(op.Value)
		return nil
	}
	return fmt.Errorf("imapencode: unknown search key %q", op.Key)
}
