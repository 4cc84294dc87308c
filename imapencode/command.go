package imapencode

import (
	"fmt"

	"wingmail.dev/imap/imapwire"
)

// command renders a complete tagged command line, CRLF included.
// Commands listed mostly in the order they appear in RFC 3501
// section 6.
func (e *encoder) command(cmd *imapwire.Command) error {
	if cmd == nil {
		return fmt.Errorf("imapencode: nil command")
	}
	if err := imapwire.CheckTag(cmd.Tag); err != nil {
		return err
	}
	e.raw(cmd.Tag)
	e.sp()
	if cmd.UID {
		switch cmd.Name {
		case "COPY", "MOVE", "FETCH", "STORE", "SEARCH", "EXPUNGE":
			e.raw("UID ")
		default:
			return fmt.Errorf("imapencode: command %s does not support the UID prefix", cmd.Name)
		}
	}

	switch cmd.Name {
	case "CAPABILITY", "NOOP", "LOGOUT", "STARTTLS", "CHECK", "CLOSE", "IDLE", "NAMESPACE":
		e.raw(cmd.Name)

	case "UNSELECT": // RFC 3691
		e.raw("UNSELECT")

	case "LOGIN":
		e.raw("LOGIN")
		e.sp()
		e.astring(cmd.Auth.Username)
		e.sp()
		e.astring(cmd.Auth.Password)

	case "AUTHENTICATE":
		e.raw("AUTHENTICATE")
		e.sp()
		e.raw(cmd.Authenticate.Mechanism)
		if cmd.Authenticate.InitialResponse != nil {
			if !e.opts.SASLIR {
				return fmt.Errorf("imapencode: initial response requires SASL-IR")
			}
			e.sp()
			if len(cmd.Authenticate.InitialResponse) == 0 {
				e.raw("=")
			} else {
				e.base64(cmd.Authenticate.InitialResponse)
			}
		}

	case "SELECT", "EXAMINE":
		e.raw(cmd.Name)
		e.sp()
		e.mailbox(cmd.Mailbox)
		if err := e.selectParams(cmd); err != nil {
			return err
		}

	case "CREATE", "DELETE", "SUBSCRIBE", "UNSUBSCRIBE", "GETQUOTAROOT":
		e.raw(cmd.Name)
		e.sp()
		e.mailbox(cmd.Mailbox)

	case "GETQUOTA":
		e.raw("GETQUOTA")
		e.sp()
		e.astring(string(cmd.Mailbox))

	case "RENAME":
		e.raw("RENAME")
		e.sp()
		e.mailbox(cmd.Rename.OldMailbox)
		e.sp()
		e.mailbox(cmd.Rename.NewMailbox)

	case "LIST":
		if err := e.list(cmd); err != nil {
			return err
		}

	case "LSUB":
		e.raw("LSUB")
		e.sp()
		e.astring(string(cmd.List.ReferenceName))
		e.sp()
		e.astring(string(cmd.List.MailboxGlob))

	case "STATUS":
		e.raw("STATUS")
		e.sp()
		e.mailbox(cmd.Mailbox)
		e.sp()
		e.buf.WriteByte('(')
		for i, item := range cmd.Status.Items {
			if i > 0 {
				e.sp()
			}
			e.raw(item.String())
		}
		e.buf.WriteByte(')')

	case "ENABLE":
		if len(cmd.Params) == 0 {
			return fmt.Errorf("imapencode: ENABLE requires a capability argument")
		}
		e.raw("ENABLE")
		for _, p := range cmd.Params {
			e.sp()
			e.rawBytes(p)
		}

	case "ID":
		e.raw("ID")
		e.sp()
		if len(cmd.Params) == 0 {
			e.raw("NIL")
			break
		}
		if len(cmd.Params)%2 == 1 {
			return fmt.Errorf("imapencode: ID parameter is missing a value")
		}
		e.buf.WriteByte('(')
		for i, p := range cmd.Params {
			if i > 0 {
				e.sp()
			}
			if p == nil {
				e.raw("NIL")
			} else {
				e.string_(string(p))
			}
		}
		e.buf.WriteByte(')')

	case "EXPUNGE":
		e.raw("EXPUNGE")
		// UID EXPUNGE (RFC 4315 UIDPLUS) takes a sequence set.
		if cmd.UID {
			e.sp()
			e.numSet(cmd.Set)
		}

	case "SEARCH":
		if err := e.search(cmd); err != nil {
			return err
		}

	case "FETCH":
		if err := e.fetch(cmd); err != nil {
			return err
		}

	case "STORE":
		if err := e.store(cmd); err != nil {
			return err
		}

	case "COPY", "MOVE":
		if cmd.Name == "MOVE" && len(e.opts.Capabilities) > 0 && !e.opts.has("MOVE") {
			return fmt.Errorf("imapencode: server did not advertise MOVE")
		}
		e.raw(cmd.Name)
		e.sp()
		e.numSet(cmd.Set)
		e.sp()
		e.mailbox(cmd.Mailbox)

	case "GETMETADATA":
		e.raw("GETMETADATA")
		if cmd.Metadata.HasDepth || cmd.Metadata.MaxSize > 0 {
			e.sp()
			e.buf.WriteByte('(')
			sep := false
			if cmd.Metadata.MaxSize > 0 {
				e.raw("MAXSIZE ")
				e.number(cmd.Metadata.MaxSize)
				sep = true
			}
			if cmd.Metadata.HasDepth {
				if sep {
					e.sp()
				}
				e.raw("DEPTH ")
				e.raw(cmd.Metadata.Depth)
			}
			e.buf.WriteByte(')')
		}
		e.sp()
		e.mailbox(cmd.Mailbox)
		e.sp()
		if len(cmd.Metadata.Entries) == 1 {
			e.astring(cmd.Metadata.Entries[0])
			break
		}
		e.buf.WriteByte('(')
		for i, entry := range cmd.Metadata.Entries {
			if i > 0 {
				e.sp()
			}
			e.astring(entry)
		}
		e.buf.WriteByte(')')

	case "SETMETADATA":
		if len(cmd.Metadata.Entries) != len(cmd.Metadata.Values) {
			return fmt.Errorf("imapencode: SETMETADATA entries and values do not pair")
		}
		e.raw("SETMETADATA")
		e.sp()
		e.mailbox(cmd.Mailbox)
		e.sp()
		e.buf.WriteByte('(')
		for i, entry := range cmd.Metadata.Entries {
			if i > 0 {
				e.sp()
			}
			e.astring(entry)
			e.sp()
			e.nstring(cmd.Metadata.Values[i])
		}
		e.buf.WriteByte(')')

	case "GENURLAUTH":
		if len(cmd.URLAuth.Gen) == 0 {
			return fmt.Errorf("imapencode: GENURLAUTH requires at least one URL")
		}
		e.raw("GENURLAUTH")
		for _, rump := range cmd.URLAuth.Gen {
			e.sp()
			e.astring(rump.URL)
			e.sp()
			e.raw(rump.Mechanism)
		}

	case "URLFETCH":
		if len(cmd.URLAuth.URLs) == 0 {
			return fmt.Errorf("imapencode: URLFETCH requires at least one URL")
		}
		e.raw("URLFETCH")
		for _, url := range cmd.URLAuth.URLs {
			e.sp()
			e.astring(url)
		}

	case "RESETKEY":
		e.raw("RESETKEY")
		if len(cmd.Mailbox) > 0 {
			e.sp()
			e.mailbox(cmd.Mailbox)
			for _, mech := range cmd.URLAuth.Mechanisms {
				e.sp()
				e.raw(mech)
			}
		}

	case "APPEND":
		return fmt.Errorf("imapencode: APPEND is emitted as stream parts, not a single command")

	default:
		// Extension commands with no modelled arguments (e.g.
		// X-GM-RAW experiments) pass their name through.
		if cmd.Name == "" || !isAtom(cmd.Name) {
			return fmt.Errorf("imapencode: unsupported command: %q", cmd.Name)
		}
		e.raw(cmd.Name)
		for _, p := range cmd.Params {
			e.sp()
			e.astring(string(p))
		}
	}

	e.crlf()
	return nil
}

func (e *encoder) selectParams(cmd *imapwire.Command) error {
	if !cmd.Condstore && cmd.Qresync.UIDValidity == 0 {
		return nil
	}
	e.sp()
	e.buf.WriteByte('(')
	sep := false
	if cmd.Condstore {
		if len(e.opts.Capabilities) > 0 && !e.opts.has("CONDSTORE") {
			return fmt.Errorf("imapencode: server did not advertise CONDSTORE")
		}
		e.raw("CONDSTORE")
		sep = true
	}
	if cmd.Qresync.UIDValidity != 0 {
		if len(e.opts.Capabilities) > 0 && !e.opts.has("QRESYNC") {
			return fmt.Errorf("imapencode: server did not advertise QRESYNC")
		}
		// RFC 7162: the known sets name concrete UIDs, never '*'.
		for _, seqs := range [][]imapwire.SeqRange{
			cmd.Qresync.UIDs, cmd.Qresync.KnownSeqNumMatch, cmd.Qresync.KnownUIDMatch,
		} {
			if imapwire.SeqContains(seqs, imapwire.SeqStar) {
				return fmt.Errorf("imapencode: '*' is not allowed in QRESYNC known sets")
			}
		}
		if sep {
			e.sp()
		}
		e.raw("QRESYNC (")
		e.number(cmd.Qresync.UIDValidity)
		e.sp()
		e.modseq(cmd.Qresync.ModSeq)
		if len(cmd.Qresync.UIDs) > 0 {
			e.sp()
			e.seqs(cmd.Qresync.UIDs)
		}
		if len(cmd.Qresync.KnownSeqNumMatch) > 0 {
			e.raw(" (")
			e.seqs(cmd.Qresync.KnownSeqNumMatch)
			e.sp()
			e.seqs(cmd.Qresync.KnownUIDMatch)
			e.buf.WriteByte(')')
		}
		e.buf.WriteByte(')')
	}
	e.buf.WriteByte(')')
	return nil
}

func (e *encoder) list(cmd *imapwire.Command) error {
	e.raw("LIST")
	if len(cmd.List.SelectOptions) > 0 {
		e.sp()
		e.buf.WriteByte('(')
		for i, opt := range cmd.List.SelectOptions {
			if i > 0 {
				e.sp()
			}
			e.raw(opt)
		}
		e.buf.WriteByte(')')
	}
	e.sp()
	e.astring(string(cmd.List.ReferenceName))
	e.sp()
	e.astring(string(cmd.List.MailboxGlob))
	if len(cmd.List.ReturnOptions) > 0 || cmd.List.ReturnExplicit {
		e.raw(" RETURN (")
		for i, opt := range cmd.List.ReturnOptions {
			if i > 0 {
				e.sp()
			}
			e.raw(opt)
			if opt == "STATUS" {
				e.raw(" (")
				for j, item := range cmd.List.StatusItems {
					if j > 0 {
						e.sp()
					}
					e.raw(item.String())
				}
				e.buf.WriteByte(')')
			}
		}
		e.buf.WriteByte(')')
	}
	return nil
}

func (e *encoder) store(cmd *imapwire.Command) error {
	e.raw("STORE")
	e.sp()
	e.numSet(cmd.Set)
	if cmd.Store.HasUnchangedSince {
		if len(e.opts.Capabilities) > 0 && !e.opts.has("CONDSTORE") {
			return fmt.Errorf("imapencode: server did not advertise CONDSTORE")
		}
		e.raw(" (UNCHANGEDSINCE ")
		e.modseq(cmd.Store.UnchangedSince)
		e.buf.WriteByte(')')
	}
	e.sp()
	switch cmd.Store.Mode {
	case imapwire.StoreAdd:
		e.raw("+FLAGS")
	case imapwire.StoreRemove:
		e.raw("-FLAGS")
	case imapwire.StoreReplace:
		e.raw("FLAGS")
	default:
		return fmt.Errorf("imapencode: STORE mode not set")
	}
	if cmd.Store.Silent {
		e.raw(".SILENT")
	}
	e.sp()
	e.flags(cmd.Store.Flags)
	return nil
}
