package imapparse

import (
	"strings"

	"wingmail.dev/imap/imapwire"
)

func (p *CommandParser) parseSearch(cmd *imapwire.Command) error {
	if err := p.scan.sp(); err != nil {
		return err
	}

	tok, err := p.searchToken()
	if err != nil {
		return err
	}

	if tok.kind == searchTokAtom && tok.name == "RETURN" {
		// ESEARCH, RFC 4731; grammar defined in RFC 4466.
		if err := p.scan.sp(); err != nil {
			return err
		}
		if err := p.scan.expectByte('('); err != nil {
			return err
		}
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return err
			}
			if done {
				break
			}
			if len(cmd.Search.Return) > 0 {
				if err := p.scan.sp(); err != nil {
					return err
				}
			}
			opt, err := p.scan.atom()
			if err != nil {
				return err
			}
			switch v := strings.ToUpper(string(opt)); v {
			case "MIN", "MAX", "ALL", "COUNT", "SAVE":
				cmd.Search.Return = append(cmd.Search.Return, v)
			default:
				return p.scan.errf(ErrKindGrammarViolation, "unknown SEARCH RETURN value %q", opt)
			}
		}
		if len(cmd.Search.Return) == 0 {
			// RFC 4731 says RETURN () is equivalent to ALL.
			cmd.Search.Return = append(cmd.Search.Return, "ALL")
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
		if tok, err = p.searchToken(); err != nil {
			return err
		}
	}

	if tok.kind == searchTokAtom && tok.name == "CHARSET" {
		if err := p.scan.sp(); err != nil {
			return err
		}
		cs, err := p.scan.astring()
		if err != nil {
			return err
		}
		// Normalise recognised charset names so "utf8" and
		// "csUTF8" compare equal to "UTF-8". An unknown name is
		// kept verbatim: rejecting it is the server's call, via
		// NO [BADCHARSET], not a parse failure.
		name := string(cs)
		if canonical, cerr := imapwire.CanonicalCharset(name); cerr == nil {
			name = canonical
		}
		cmd.Search.Charset = name
		if err := p.scan.sp(); err != nil {
			return err
		}
		if tok, err = p.searchToken(); err != nil {
			return err
		}
	}

	root := imapwire.SearchOp{Key: imapwire.SearchAnd}
	for {
		op, err := p.parseSearchKey(tok)
		if err != nil {
			return err
		}
		root.Children = append(root.Children, *op)

		end, err := p.scan.atCRLF()
		if err != nil {
			return err
		}
		if end {
			break
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
		if tok, err = p.searchToken(); err != nil {
			return err
		}
	}

	if len(root.Children) == 1 {
		cmd.Search.Op = &root.Children[0]
	} else {
		cmd.Search.Op = &root
	}
	return nil
}

type searchTokKind int

const (
	searchTokAtom searchTokKind = iota
	searchTokList                // '('
	searchTokSet                 // sequence-set
	searchTokSaved               // '$'
)

type searchTok struct {
	kind searchTokKind
	name string             // searchTokAtom, canonical upper case
	seqs []imapwire.SeqRange // searchTokSet
}

// searchToken reads the next search-key token: a parenthesised
// list opener, a sequence-set, the saved-result marker, or a key
// atom.
func (p *CommandParser) searchToken() (searchTok, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return searchTok{}, err
	}
	switch {
	case b == '(':
		p.Buf.Advance(1)
		return searchTok{kind: searchTokList}, nil
	case b == '$':
		p.Buf.Advance(1)
		return searchTok{kind: searchTokSaved}, nil
	case isDigit(b) || b == '*':
		seqs, err := p.scan.sequences()
		if err != nil {
			return searchTok{}, err
		}
		return searchTok{kind: searchTokSet, seqs: seqs}, nil
	}
	atom, err := p.scan.atom()
	if err != nil {
		return searchTok{}, err
	}
	return searchTok{kind: searchTokAtom, name: strings.ToUpper(string(atom))}, nil
}

// parseSearchKey parses the search key beginning at tok.
func (p *CommandParser) parseSearchKey(tok searchTok) (*imapwire.SearchOp, error) {
	op := &imapwire.SearchOp{}

	switch tok.kind {
	case searchTokSet:
		op.Key = imapwire.SearchSeqSet
		op.Set = imapwire.NumSet{Seqs: tok.seqs}
		return op, nil
	case searchTokSaved:
		op.Key = imapwire.SearchSeqSet
		op.Set = imapwire.NumSet{SavedResult: true}
		return op, nil
	case searchTokList:
		// search-key *(SP search-key) ")"
		op.Key = imapwire.SearchAnd
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
			if len(op.Children) > 0 {
				if err := p.scan.sp(); err != nil {
					return nil, err
				}
			}
			child, err := p.searchToken()
			if err != nil {
				return nil, err
			}
			ch, err := p.parseSearchKey(child)
			if err != nil {
				return nil, err
			}
			op.Children = append(op.Children, *ch)
		}
		if len(op.Children) == 1 {
			return &op.Children[0], nil
		}
		return op, nil
	}

	op.Key = imapwire.SearchKey(tok.name)
	switch op.Key {
	case imapwire.SearchAll, imapwire.SearchAnswered, imapwire.SearchDeleted,
		imapwire.SearchDraft, imapwire.SearchFlagged, imapwire.SearchNew,
		imapwire.SearchOld, imapwire.SearchRecent, imapwire.SearchSeen,
		imapwire.SearchUnanswered, imapwire.SearchUndeleted, imapwire.SearchUndraft,
		imapwire.SearchUnflagged, imapwire.SearchUnseen:
		return op, nil

	case imapwire.SearchBCC, imapwire.SearchBody, imapwire.SearchCC,
		imapwire.SearchFrom, imapwire.SearchSubject, imapwire.SearchText,
		imapwire.SearchTo:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		v, err := p.scan.astring()
		if err != nil {
			return nil, err
		}
		op.Value = string(v)
		return op, nil

	case imapwire.SearchKeyword, imapwire.SearchUnkeyword:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		v, err := p.scan.flagAtom()
		if err != nil {
			return nil, err
		}
		op.Value = string(v)
		return op, nil

	case imapwire.SearchBefore, imapwire.SearchOn, imapwire.SearchSince,
		imapwire.SearchSentBefore, imapwire.SearchSentOn, imapwire.SearchSentSince:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		d, err := p.scan.date()
		if err != nil {
			return nil, err
		}
		op.Date = d
		return op, nil

	case imapwire.SearchHeader:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		name, err := p.scan.astring()
		if err != nil {
			return nil, err
		}
		op.Entry = string(name)
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		v, err := p.scan.astring()
		if err != nil {
			return nil, err
		}
		op.Value = string(v)
		return op, nil

	case imapwire.SearchLarger, imapwire.SearchSmaller,
		imapwire.SearchOlder, imapwire.SearchYounger:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		n, err := p.scan.number()
		if err != nil {
			return nil, err
		}
		op.Num = int64(n)
		return op, nil

	case imapwire.SearchNot:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		tok, err := p.searchToken()
		if err != nil {
			return nil, err
		}
		ch, err := p.parseSearchKey(tok)
		if err != nil {
			return nil, err
		}
		op.Children = append(op.Children, *ch)
		return op, nil

	case imapwire.SearchOr:
		for i := 0; i < 2; i++ {
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			tok, err := p.searchToken()
			if err != nil {
				return nil, err
			}
			ch, err := p.parseSearchKey(tok)
			if err != nil {
				return nil, err
			}
			op.Children = append(op.Children, *ch)
		}
		return op, nil

	case imapwire.SearchUID:
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		set, err := p.numSet()
		if err != nil {
			return nil, err
		}
		op.Set = set
		return op, nil

	case imapwire.SearchModSeq: // RFC 7162 section 3.1.5
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		b, err := p.Buf.PeekByte()
		if err != nil {
			return nil, err
		}
		if b == '"' {
			entry, err := p.scan.quoted()
			if err != nil {
				return nil, err
			}
			op.Entry = string(entry)
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			typ, err := p.scan.atom()
			if err != nil {
				return nil, err
			}
			op.EntryType = string(typ)
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
		}
		n, err := p.scan.number64()
		if err != nil {
			return nil, err
		}
		op.Num = int64(n)
		return op, nil

	case imapwire.SearchFilter: // RFC 5466
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		name, err := p.scan.atom()
		if err != nil {
			return nil, err
		}
		op.Value = string(name)
		return op, nil
	}

	return nil, p.scan.errf(ErrKindGrammarViolation, "SEARCH key unknown: %q", tok.name)
}
