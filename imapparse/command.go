package imapparse

import (
	"strings"

	"wingmail.dev/imap/imapwire"
)

// CommandParser parses complete client command lines. It serves
// server loops and round-trip testing of the encoder; the response
// Parser is its client-side counterpart.
type CommandParser struct {
	Buf    Buffer
	Limits Limits

	scan scanner
}

// ParseCommand parses one command, including its terminating CRLF.
// Synchronising and non-synchronising literals are both accepted;
// continuation handling is the driver's concern.
//
// ErrNeedMoreData restores the cursor for an exact retry. Any
// other error leaves the cursor mid-command; the caller discards
// the connection or drains the line.
func (p *CommandParser) ParseCommand() (*imapwire.Command, error) {
	p.scan.buf = &p.Buf
	p.scan.inlineLiteralMax = p.Limits.InlineLiteralMax
	p.Buf.Compact()
	snap := p.Buf.Snapshot()
	cmd, err := p.parseCommand()
	if err == ErrNeedMoreData {
		p.Buf.Restore(snap)
		return nil, ErrNeedMoreData
	}
	if err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *CommandParser) parseCommand() (*imapwire.Command, error) {
	cmd := &imapwire.Command{}

	tag, err := p.scan.tag()
	if err != nil {
		return nil, err
	}
	cmd.Tag = string(tag)
	if err := p.scan.sp(); err != nil {
		return nil, err
	}

	name, err := p.commandName()
	if err != nil {
		return nil, err
	}
	if name == "UID" {
		cmd.UID = true
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		if name, err = p.commandName(); err != nil {
			return nil, err
		}
		switch name {
		case "COPY", "FETCH", "STORE", "SEARCH":
			// RFC 3501 UID commands
		case "MOVE":
			// UID MOVE is part of RFC 6851
		case "EXPUNGE":
			// UID EXPUNGE is part of RFC 4315 UIDPLUS
		default:
			return nil, p.scan.errf(ErrKindGrammarViolation, "command %s does not support the UID prefix", name)
		}
	}
	cmd.Name = name

	switch name {
	case "CAPABILITY", "NOOP", "LOGOUT", "STARTTLS", "CHECK", "CLOSE",
		"UNSELECT", "IDLE", "NAMESPACE":
		// no arguments

	case "LOGIN":
		u, err := p.spAstring("LOGIN username")
		if err != nil {
			return nil, err
		}
		cmd.Auth.Username = string(u)
		pw, err := p.spAstring("LOGIN password")
		if err != nil {
			return nil, err
		}
		cmd.Auth.Password = string(pw)

	case "AUTHENTICATE":
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		mech, err := p.scan.atom()
		if err != nil {
			return nil, err
		}
		cmd.Authenticate.Mechanism = string(mech)
		end, err := p.scan.atCRLF()
		if err != nil {
			return nil, err
		}
		if !end {
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			eq, err := p.scan.peekIs('=')
			if err != nil {
				return nil, err
			}
			if eq {
				cmd.Authenticate.InitialResponse = []byte{}
			} else {
				b64, err := p.scan.atom()
				if err != nil {
					return nil, err
				}
				dec, ok := decodeBase64(b64)
				if !ok {
					return nil, p.scan.errf(ErrKindInvalidBase64, "AUTHENTICATE initial response")
				}
				cmd.Authenticate.InitialResponse = dec
			}
		}

	case "SELECT", "EXAMINE":
		if err := p.parseSelect(cmd); err != nil {
			return nil, err
		}

	case "CREATE", "DELETE", "SUBSCRIBE", "UNSUBSCRIBE", "GETQUOTAROOT", "GETQUOTA":
		mbox, err := p.spAstring(name + " mailbox")
		if err != nil {
			return nil, err
		}
		cmd.Mailbox = imapwire.MailboxName(mbox)

	case "RENAME":
		old, err := p.spAstring("RENAME existing mailbox")
		if err != nil {
			return nil, err
		}
		cmd.Rename.OldMailbox = imapwire.MailboxName(old)
		new_, err := p.spAstring("RENAME new mailbox")
		if err != nil {
			return nil, err
		}
		cmd.Rename.NewMailbox = imapwire.MailboxName(new_)

	case "LIST", "LSUB":
		if err := p.parseList(cmd); err != nil {
			return nil, err
		}

	case "STATUS":
		mbox, err := p.spAstring("STATUS mailbox")
		if err != nil {
			return nil, err
		}
		cmd.Mailbox = imapwire.MailboxName(mbox)
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		items, err := p.statusItems()
		if err != nil {
			return nil, err
		}
		cmd.Status.Items = items

	case "ENABLE":
		for {
			end, err := p.scan.atCRLF()
			if err != nil {
				return nil, err
			}
			if end {
				break
			}
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			v, err := p.scan.atom()
			if err != nil {
				return nil, err
			}
			cmd.Params = imapwire.AppendValue(cmd.Params, v)
		}
		if len(cmd.Params) == 0 {
			return nil, p.scan.errf(ErrKindGrammarViolation, "ENABLE missing required argument")
		}

	case "ID":
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		isNil, err := p.scan.nstringIsNil()
		if err != nil {
			return nil, err
		}
		if !isNil {
			if err := p.scan.expectByte('('); err != nil {
				return nil, err
			}
			for {
				done, err := p.scan.peekIs(')')
				if err != nil {
					return nil, err
				}
				if done {
					break
				}
				if len(cmd.Params) > 0 {
					if err := p.scan.sp(); err != nil {
						return nil, err
					}
				}
				isNil, err := p.scan.nstringIsNil()
				if err != nil {
					return nil, err
				}
				if isNil {
					if len(cmd.Params)%2 == 0 {
						return nil, p.scan.errf(ErrKindGrammarViolation, "ID NIL field name")
					}
					cmd.Params = append(cmd.Params, nil)
					continue
				}
				v, err := p.scan.string_()
				if err != nil {
					return nil, err
				}
				cmd.Params = imapwire.AppendValue(cmd.Params, v)
				if len(cmd.Params) > 60 {
					// RFC 2971 limits ID to 30 pairs.
					return nil, p.scan.errf(ErrKindGrammarViolation, "too many ID parameters")
				}
			}
			if len(cmd.Params)%2 == 1 {
				return nil, p.scan.errf(ErrKindGrammarViolation, "ID parameter is missing value")
			}
		}

	case "EXPUNGE":
		// EXPUNGE has no arguments; UID EXPUNGE takes a set.
		if cmd.UID {
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			set, err := p.numSet()
			if err != nil {
				return nil, err
			}
			cmd.Set = set
		}

	case "SEARCH":
		if err := p.parseSearch(cmd); err != nil {
			return nil, err
		}

	case "FETCH":
		if err := p.parseFetch(cmd); err != nil {
			return nil, err
		}

	case "STORE":
		if err := p.parseStore(cmd); err != nil {
			return nil, err
		}

	case "COPY", "MOVE":
		if err := p.scan.sp(); err != nil {
			return nil, err
		}
		set, err := p.numSet()
		if err != nil {
			return nil, err
		}
		cmd.Set = set
		mbox, err := p.spAstring(name + " mailbox")
		if err != nil {
			return nil, err
		}
		cmd.Mailbox = imapwire.MailboxName(mbox)

	case "GETMETADATA":
		if err := p.parseGetMetadata(cmd); err != nil {
			return nil, err
		}

	case "SETMETADATA":
		if err := p.parseSetMetadata(cmd); err != nil {
			return nil, err
		}

	case "GENURLAUTH":
		for {
			end, err := p.scan.atCRLF()
			if err != nil {
				return nil, err
			}
			if end {
				break
			}
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			url, err := p.scan.astring()
			if err != nil {
				return nil, err
			}
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			mech, err := p.scan.atom()
			if err != nil {
				return nil, err
			}
			cmd.URLAuth.Gen = append(cmd.URLAuth.Gen, imapwire.URLAuthRump{
				URL:       string(url),
				Mechanism: string(mech),
			})
		}
		if len(cmd.URLAuth.Gen) == 0 {
			return nil, p.scan.errf(ErrKindGrammarViolation, "GENURLAUTH missing URL")
		}

	case "URLFETCH":
		for {
			end, err := p.scan.atCRLF()
			if err != nil {
				return nil, err
			}
			if end {
				break
			}
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
			url, err := p.scan.astring()
			if err != nil {
				return nil, err
			}
			cmd.URLAuth.URLs = append(cmd.URLAuth.URLs, string(url))
		}
		if len(cmd.URLAuth.URLs) == 0 {
			return nil, p.scan.errf(ErrKindGrammarViolation, "URLFETCH missing URL")
		}

	case "RESETKEY":
		end, err := p.scan.atCRLF()
		if err != nil {
			return nil, err
		}
		if !end {
			mbox, err := p.spAstring("RESETKEY mailbox")
			if err != nil {
				return nil, err
			}
			cmd.Mailbox = imapwire.MailboxName(mbox)
			for {
				end, err := p.scan.atCRLF()
				if err != nil {
					return nil, err
				}
				if end {
					break
				}
				if err := p.scan.sp(); err != nil {
					return nil, err
				}
				mech, err := p.scan.atom()
				if err != nil {
					return nil, err
				}
				cmd.URLAuth.Mechanisms = append(cmd.URLAuth.Mechanisms, string(mech))
			}
		}

	default:
		return nil, p.scan.errf(ErrKindGrammarViolation, "unknown command: %q", name)
	}

	if err := p.scan.crlf(); err != nil {
		return nil, err
	}
	return cmd, nil
}

func (p *CommandParser) commandName() (string, error) {
	v, err := p.scan.atom()
	if err != nil {
		return "", err
	}
	return strings.ToUpper(string(v)), nil
}

func (p *CommandParser) spAstring(what string) ([]byte, error) {
	if err := p.scan.sp(); err != nil {
		return nil, err
	}
	v, err := p.scan.astring()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (p *CommandParser) numSet() (imapwire.NumSet, error) {
	dollar, err := p.scan.peekIs('$')
	if err != nil {
		return imapwire.NumSet{}, err
	}
	if dollar {
		return imapwire.NumSet{SavedResult: true}, nil
	}
	seqs, err := p.scan.sequences()
	if err != nil {
		return imapwire.NumSet{}, err
	}
	return imapwire.NumSet{Seqs: seqs}, nil
}

func (p *CommandParser) statusItems() ([]imapwire.StatusItem, error) {
	if err := p.scan.expectByte('('); err != nil {
		return nil, err
	}
	var items []imapwire.StatusItem
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return nil, err
		}
		if done {
			return items, nil
		}
		if len(items) > 0 {
			if err := p.scan.sp(); err != nil {
				return nil, err
			}
		}
		atom, err := p.scan.atom()
		if err != nil {
			return nil, err
		}
		item := imapwire.StatusItemFromName(atom)
		if item == imapwire.StatusUnknownItem {
			return nil, p.scan.errf(ErrKindGrammarViolation, "unknown STATUS item: %s", atom)
		}
		items = append(items, item)
	}
}

func (p *CommandParser) parseSelect(cmd *imapwire.Command) error {
	mbox, err := p.spAstring(cmd.Name + " mailbox")
	if err != nil {
		return err
	}
	cmd.Mailbox = imapwire.MailboxName(mbox)

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
		case "CONDSTORE":
			cmd.Condstore = true
		case "QRESYNC": // RFC 7162 section 3.2.5
			if err := p.parseQresync(cmd); err != nil {
				return err
			}
		default:
			return p.scan.errf(ErrKindGrammarViolation, "%s invalid parameter: %s", cmd.Name, atom)
		}
	}
}

func (p *CommandParser) parseQresync(cmd *imapwire.Command) error {
	if err := p.scan.sp(); err != nil {
		return err
	}
	if err := p.scan.expectByte('('); err != nil {
		return err
	}
	uidv, err := p.scan.number()
	if err != nil {
		return err
	}
	if uidv == 0 {
		return p.scan.errf(ErrKindGrammarViolation, "QRESYNC UIDVALIDITY invalid")
	}
	cmd.Qresync.UIDValidity = uidv
	if err := p.scan.sp(); err != nil {
		return err
	}
	n, err := p.scan.number64()
	if err != nil {
		return err
	}
	cmd.Qresync.ModSeq = imapwire.ModSeq(n)

	done, err := p.scan.peekIs(')')
	if err != nil || done {
		return err
	}
	if err := p.scan.sp(); err != nil {
		return err
	}
	b, err := p.Buf.PeekByte()
	if err != nil {
		return err
	}
	if b != '(' {
		if cmd.Qresync.UIDs, err = p.scan.sequences(); err != nil {
			return err
		}
		done, err = p.scan.peekIs(')')
		if err != nil || done {
			return p.checkQresyncSets(cmd, err)
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
	}
	// seq-match-data
	if err := p.scan.expectByte('('); err != nil {
		return err
	}
	if cmd.Qresync.KnownSeqNumMatch, err = p.scan.sequences(); err != nil {
		return err
	}
	if err := p.scan.sp(); err != nil {
		return err
	}
	if cmd.Qresync.KnownUIDMatch, err = p.scan.sequences(); err != nil {
		return err
	}
	if err := p.scan.expectByte(')'); err != nil {
		return err
	}
	return p.checkQresyncSets(cmd, p.scan.expectByte(')'))
}

// checkQresyncSets rejects '*' in the QRESYNC known sets; RFC 7162
// requires concrete UIDs there.
func (p *CommandParser) checkQresyncSets(cmd *imapwire.Command, err error) error {
	if err != nil {
		return err
	}
	for _, seqs := range [][]imapwire.SeqRange{
		cmd.Qresync.UIDs, cmd.Qresync.KnownSeqNumMatch, cmd.Qresync.KnownUIDMatch,
	} {
		if imapwire.SeqContains(seqs, imapwire.SeqStar) {
			return p.scan.errf(ErrKindGrammarViolation, "'*' is not allowed in QRESYNC known sets")
		}
	}
	return nil
}

func (p *CommandParser) parseList(cmd *imapwire.Command) error {
	if err := p.scan.sp(); err != nil {
		return err
	}
	if cmd.Name == "LIST" {
		paren, err := p.scan.peekIs('(')
		if err != nil {
			return err
		}
		if paren {
			// RFC 5258 list-select-opts
			for {
				done, err := p.scan.peekIs(')')
				if err != nil {
					return err
				}
				if done {
					break
				}
				if len(cmd.List.SelectOptions) > 0 {
					if err := p.scan.sp(); err != nil {
						return err
					}
				}
				opt, err := p.scan.atom()
				if err != nil {
					return err
				}
				switch string(opt) {
				case "SUBSCRIBED", "REMOTE", "RECURSIVEMATCH", "SPECIAL-USE":
					cmd.List.SelectOptions = append(cmd.List.SelectOptions, string(opt))
				default:
					return p.scan.errf(ErrKindGrammarViolation, "LIST bad selection option %q", opt)
				}
			}
			if err := p.scan.sp(); err != nil {
				return err
			}
		}
	}

	ref, err := p.scan.astring()
	if err != nil {
		return err
	}
	cmd.List.ReferenceName = ref
	if err := p.scan.sp(); err != nil {
		return err
	}
	glob, err := p.listMailbox()
	if err != nil {
		return err
	}
	cmd.List.MailboxGlob = glob

	if cmd.Name != "LIST" {
		return nil
	}
	end, err := p.scan.atCRLF()
	if err != nil || end {
		return err
	}
	if err := p.scan.sp(); err != nil {
		return err
	}
	atom, err := p.scan.atom()
	if err != nil {
		return err
	}
	if string(atom) != "RETURN" {
		return p.scan.errf(ErrKindGrammarViolation, "LIST expecting RETURN options, got %q", atom)
	}
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
			// ReturnExplicit records a bare "RETURN ()"; with
			// options present the RETURN is implied.
			cmd.List.ReturnExplicit = len(cmd.List.ReturnOptions) == 0
			return nil
		}
		if len(cmd.List.ReturnOptions) > 0 {
			if err := p.scan.sp(); err != nil {
				return err
			}
		}
		opt, err := p.scan.atom()
		if err != nil {
			return err
		}
		switch string(opt) {
		case "SUBSCRIBED", "CHILDREN", "SPECIAL-USE":
			cmd.List.ReturnOptions = append(cmd.List.ReturnOptions, string(opt))
		case "STATUS": // RFC 5819 LIST-STATUS
			cmd.List.ReturnOptions = append(cmd.List.ReturnOptions, "STATUS")
			if err := p.scan.sp(); err != nil {
				return err
			}
			items, err := p.statusItems()
			if err != nil {
				return err
			}
			cmd.List.StatusItems = items
		default:
			return p.scan.errf(ErrKindGrammarViolation, "LIST bad RETURN option %q", opt)
		}
	}
}

// listMailbox reads a list-mailbox: an astring that also allows the
// wildcards % and *.
func (p *CommandParser) listMailbox() ([]byte, error) {
	b, err := p.Buf.PeekByte()
	if err != nil {
		return nil, err
	}
	if b == '"' || b == '{' {
		return p.scan.string_()
	}
	v, err := p.Buf.TakeWhile(func(b byte) bool {
		return b == '%' || b == '*' || b == ']' || isAtomChar(b)
	})
	if err != nil {
		return nil, err
	}
	if len(v) == 0 {
		return nil, p.scan.errf(ErrKindUnexpectedByte, "invalid list-mailbox character: %q", string(b))
	}
	return append([]byte(nil), v...), nil
}

func (p *CommandParser) parseStore(cmd *imapwire.Command) error {
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
		atom, err := p.scan.atom()
		if err != nil {
			return err
		}
		if string(atom) != "UNCHANGEDSINCE" {
			return p.scan.errf(ErrKindGrammarViolation, "STORE unknown modifier: %s", atom)
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
		n, err := p.scan.number64()
		if err != nil {
			return err
		}
		cmd.Store.UnchangedSince = imapwire.ModSeq(n)
		cmd.Store.HasUnchangedSince = true
		if err := p.scan.expectByte(')'); err != nil {
			return err
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
	}

	item, err := p.Buf.TakeWhile(func(b byte) bool {
		return b == '+' || b == '-' || b == '.' ||
			b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
	})
	if err != nil {
		return err
	}
	switch strings.ToUpper(string(item)) {
	case "+FLAGS":
		cmd.Store.Mode = imapwire.StoreAdd
	case "+FLAGS.SILENT":
		cmd.Store.Mode = imapwire.StoreAdd
		cmd.Store.Silent = true
	case "-FLAGS":
		cmd.Store.Mode = imapwire.StoreRemove
	case "-FLAGS.SILENT":
		cmd.Store.Mode = imapwire.StoreRemove
		cmd.Store.Silent = true
	case "FLAGS":
		cmd.Store.Mode = imapwire.StoreReplace
	case "FLAGS.SILENT":
		cmd.Store.Mode = imapwire.StoreReplace
		cmd.Store.Silent = true
	default:
		return p.scan.errf(ErrKindGrammarViolation, "STORE invalid item name: %q", item)
	}

	if err := p.scan.sp(); err != nil {
		return err
	}
	flags, err := p.scan.flagList()
	if err != nil {
		return err
	}
	cmd.Store.Flags = flags
	return nil
}

func (p *CommandParser) parseGetMetadata(cmd *imapwire.Command) error {
	if err := p.scan.sp(); err != nil {
		return err
	}
	paren, err := p.scan.peekIs('(')
	if err != nil {
		return err
	}
	if paren {
		first := true
		for {
			done, err := p.scan.peekIs(')')
			if err != nil {
				return err
			}
			if done {
				break
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
			case "MAXSIZE":
				if err := p.scan.sp(); err != nil {
					return err
				}
				if cmd.Metadata.MaxSize, err = p.scan.number(); err != nil {
					return err
				}
			case "DEPTH":
				if err := p.scan.sp(); err != nil {
					return err
				}
				depth, err := p.scan.atom()
				if err != nil {
					return err
				}
				switch string(depth) {
				case "0", "1", "infinity":
					cmd.Metadata.HasDepth = true
					cmd.Metadata.Depth = string(depth)
				default:
					return p.scan.errf(ErrKindGrammarViolation, "GETMETADATA bad DEPTH %q", depth)
				}
			default:
				return p.scan.errf(ErrKindGrammarViolation, "GETMETADATA unknown option %q", atom)
			}
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
	}

	mbox, err := p.scan.astring()
	if err != nil {
		return err
	}
	cmd.Mailbox = imapwire.MailboxName(mbox)
	if err := p.scan.sp(); err != nil {
		return err
	}

	paren, err = p.scan.peekIs('(')
	if err != nil {
		return err
	}
	if !paren {
		entry, err := p.scan.astring()
		if err != nil {
			return err
		}
		cmd.Metadata.Entries = []string{string(entry)}
		return nil
	}
	for {
		done, err := p.scan.peekIs(')')
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if len(cmd.Metadata.Entries) > 0 {
			if err := p.scan.sp(); err != nil {
				return err
			}
		}
		entry, err := p.scan.astring()
		if err != nil {
			return err
		}
		cmd.Metadata.Entries = append(cmd.Metadata.Entries, string(entry))
	}
}

func (p *CommandParser) parseSetMetadata(cmd *imapwire.Command) error {
	mbox, err := p.spAstring("SETMETADATA mailbox")
	if err != nil {
		return err
	}
	cmd.Mailbox = imapwire.MailboxName(mbox)
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
			return nil
		}
		if len(cmd.Metadata.Entries) > 0 {
			if err := p.scan.sp(); err != nil {
				return err
			}
		}
		entry, err := p.scan.astring()
		if err != nil {
			return err
		}
		if err := p.scan.sp(); err != nil {
			return err
		}
		val, err := p.scan.nstring()
		if err != nil {
			return err
		}
		cmd.Metadata.Entries = append(cmd.Metadata.Entries, string(entry))
		cmd.Metadata.Values = append(cmd.Metadata.Values, val)
	}
}
