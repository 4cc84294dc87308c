package imapparse

import (
	"strings"

	"wingmail.dev/imap/imapwire"
)

func (p *CommandParser) parseFetch(cmd *imapwire.Command) error {
	if err := p.scan.sp(); err != nil {
		return err
	}
	set, err := p.numSet()
	if err != nil {
		return err
	}
	cmd.Set = set
	if err := p.scan.sp(); err != nil {
		return err
	}

	paren, err := p.scan.peekIs('(')
	if err != nil {
		return err
	}
	if paren {
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return err
			}
			if done {
				break
			}
			if len(cmd.FetchItems) > 0 {
				if err := p.scan.sp(); err != nil {
					return err
				}
			}
			item, err := p.fetchItem(false)
			if err != nil {
				return err
			}
			cmd.FetchItems = append(cmd.FetchItems, item)
		}
		if len(cmd.FetchItems) == 0 {
			return p.scan.errf(ErrKindGrammarViolation, "FETCH empty items list")
		}
	} else {
		item, err := p.fetchItem(true)
		if err != nil {
			return err
		}
		switch item.Type {
		case imapwire.FetchAll:
			cmd.FetchItems = macroItems(imapwire.FetchFlags, imapwire.FetchInternalDate,
				imapwire.FetchRFC822Size, imapwire.FetchEnvelope)
		case imapwire.FetchFull:
			cmd.FetchItems = macroItems(imapwire.FetchFlags, imapwire.FetchInternalDate,
				imapwire.FetchRFC822Size, imapwire.FetchEnvelope, imapwire.FetchBody)
		case imapwire.FetchFast:
			cmd.FetchItems = macroItems(imapwire.FetchFlags, imapwire.FetchInternalDate,
				imapwire.FetchRFC822Size)
		default:
			cmd.FetchItems = append(cmd.FetchItems, item)
		}
	}

	// Optional FETCH modifiers (RFC 7162).
	end, err := p.scan.atCRLF()
	if err != nil || end {
		return err
	}
	if err := p.scan.sp(); err != nil {
		return err
	}
	if err := p.scan.expectByte('('); err != nil {
		return err
	}
	first := true
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if !first {
			if err := p.scan.sp(); err != nil {
				return err
			}
		}
		first = false
		atom, err := p.scan.atom()
		if err != nil {
			return err
		}
		switch string(atom) {
		case "CHANGEDSINCE":
			if err := p.scan.sp(); err != nil {
				return err
			}
			n, err := p.scan.number64()
			if err != nil {
				return err
			}
			cmd.ChangedSince = imapwire.ModSeq(n)
		case "VANISHED":
			if !cmd.UID {
				return p.scan.errf(ErrKindGrammarViolation, "VANISHED requires UID FETCH")
			}
			cmd.Vanished = true
		default:
			return p.scan.errf(ErrKindGrammarViolation, "FETCH unknown modifier: %s", atom)
		}
	}
}

func macroItems(types ...imapwire.FetchAttrType) []imapwire.FetchAttr {
	items := make([]imapwire.FetchAttr, len(types))
	for i, t := range types {
		items[i] = imapwire.FetchAttr{Type: t}
	}
	return items
}

// fetchItem scans a fetch-att. Macros are only legal when the item
// stands alone.
func (p *CommandParser) fetchItem(allowMacro bool) (imapwire.FetchAttr, error) {
	var item imapwire.FetchAttr

	name, err := p.Buf.TakeWhile(func(b byte) bool {
		return b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' ||
			isDigit(b) || b == '.' || b == '-'
	})
	if err != nil {
		return item, err
	}

	switch strings.ToUpper(string(name)) {
	case "ALL":
		item.Type = imapwire.FetchAll
	case "FAST":
		item.Type = imapwire.FetchFast
	case "FULL":
		item.Type = imapwire.FetchFull
	case "ENVELOPE":
		item.Type = imapwire.FetchEnvelope
	case "FLAGS":
		item.Type = imapwire.FetchFlags
	case "INTERNALDATE":
		item.Type = imapwire.FetchInternalDate
	case "RFC822":
		item.Type = imapwire.FetchRFC822
	case "RFC822.HEADER":
		item.Type = imapwire.FetchRFC822Header
	case "RFC822.SIZE":
		item.Type = imapwire.FetchRFC822Size
	case "RFC822.TEXT":
		item.Type = imapwire.FetchRFC822Text
	case "UID":
		item.Type = imapwire.FetchUID
	case "MODSEQ":
		item.Type = imapwire.FetchModSeq
	case "BODYSTRUCTURE":
		item.Type = imapwire.FetchBodyStructure
	case "BODY":
		item.Type = imapwire.FetchBody
	case "BODY.PEEK":
		item.Type = imapwire.FetchBody
		item.Peek = true
	case "BINARY":
		item.Type = imapwire.FetchBinary
	case "BINARY.PEEK":
		item.Type = imapwire.FetchBinary
		item.Peek = true
	case "BINARY.SIZE":
		item.Type = imapwire.FetchBinarySize
	case "X-GM-MSGID":
		item.Type = imapwire.FetchGmailMsgID
	case "X-GM-THRID":
		item.Type = imapwire.FetchGmailThreadID
	case "X-GM-LABELS":
		item.Type = imapwire.FetchGmailLabels
	default:
		return item, p.scan.errf(ErrKindGrammarViolation, "FETCH unknown item %q", name)
	}

	switch item.Type {
	case imapwire.FetchAll, imapwire.FetchFast, imapwire.FetchFull:
		if !allowMacro {
			return item, p.scan.errf(ErrKindGrammarViolation, "FETCH macro %s inside item list", item.Type)
		}
		return item, nil
	}

	bracket, err := p.scan.peekIs('[')
	if err != nil {
		return item, err
	}
	if bracket {
		switch item.Type {
		case imapwire.FetchBody, imapwire.FetchBinary, imapwire.FetchBinarySize:
		default:
			return item, p.scan.errf(ErrKindGrammarViolation, "FETCH item %s takes no section", item.Type)
		}
		item.HasSection = true
		if err := p.scan.sectionSpec(&item.Section); err != nil {
			return item, err
		}
	} else if item.Peek {
		return item, p.scan.errf(ErrKindGrammarViolation, "FETCH %s.PEEK requires a section", item.Type)
	}

	lt, err := p.scan.peekIs('<')
	if err != nil {
		return item, err
	}
	if lt {
		if item.Partial.Start, err = p.scan.number(); err != nil {
			return item, err
		}
		if err := p.scan.expectByte('.'); err != nil {
			return item, err
		}
		if item.Partial.Length, err = p.scan.number(); err != nil {
			return item, err
		}
		if err := p.scan.expectByte('>'); err != nil {
			return item, err
		}
		item.HasPartial = true
	}
	return item, nil
}
