package imapencode

import (
	"strings"
	"testing"

	"wingmail.dev/imap/imapwire"
)

type chunk struct {
	bytes string
	wait  bool
}

var quotedOpts = Options{QuotedString: true}

func searchCmd(tag string, op imapwire.SearchOp) *imapwire.Command {
	cmd := &imapwire.Command{Tag: tag, Name: "SEARCH"}
	cmd.Search.Op = &op
	return cmd
}

var encodeCommandTests = []struct {
	name   string
	cmd    *imapwire.Command
	opts   Options
	want   []chunk
	errstr string
}{
	{
		name: "login quoted",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a001", Name: "LOGIN"}
			cmd.Auth.Username = "mrc"
			cmd.Auth.Password = "secret"
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "a001 LOGIN \"mrc\" \"secret\"\r\n"}},
	},
	{
		name: "login atoms",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a001", Name: "LOGIN"}
			cmd.Auth.Username = "mrc"
			cmd.Auth.Password = "secret"
			return cmd
		}(),
		want: []chunk{{bytes: "a001 LOGIN mrc secret\r\n"}},
	},
	{
		name: "login literal password",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a001", Name: "LOGIN"}
			cmd.Auth.Username = "mrc"
			cmd.Auth.Password = "pa\xffss"
			return cmd
		}(),
		want: []chunk{
			{bytes: "a001 LOGIN mrc {5}\r\n", wait: true},
			{bytes: "pa\xffss\r\n"},
		},
	},
	{
		name: "login literal plus",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a001", Name: "LOGIN"}
			cmd.Auth.Username = "mrc"
			cmd.Auth.Password = "pa\xffss"
			return cmd
		}(),
		opts: Options{NonSyncLiteral: true},
		want: []chunk{{bytes: "a001 LOGIN mrc {5+}\r\npa\xffss\r\n"}},
	},
	{
		name: "select",
		cmd:  &imapwire.Command{Tag: "a002", Name: "SELECT", Mailbox: imapwire.MailboxName("INBOX")},
		want: []chunk{{bytes: "a002 SELECT INBOX\r\n"}},
	},
	{
		name: "select condstore",
		cmd: &imapwire.Command{
			Tag: "a002", Name: "SELECT",
			Mailbox:   imapwire.MailboxName("INBOX"),
			Condstore: true,
		},
		opts: Options{Capabilities: map[string]bool{"CONDSTORE": true}},
		want: []chunk{{bytes: "a002 SELECT INBOX (CONDSTORE)\r\n"}},
	},
	{
		name: "select condstore not advertised",
		cmd: &imapwire.Command{
			Tag: "a002", Name: "SELECT",
			Mailbox:   imapwire.MailboxName("INBOX"),
			Condstore: true,
		},
		opts:   Options{Capabilities: map[string]bool{"IMAP4REV1": true}},
		errstr: "did not advertise CONDSTORE",
	},
	{
		name: "select qresync",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A02", Name: "SELECT", Mailbox: imapwire.MailboxName("INBOX")}
			cmd.Qresync = imapwire.QresyncParam{
				UIDValidity: 67890007,
				ModSeq:      20050715194045000,
				UIDs:        []imapwire.SeqRange{{Min: 41, Max: 41}, {Min: 43, Max: 211}, {Min: 214, Max: 541}},
			}
			return cmd
		}(),
		opts: Options{Capabilities: map[string]bool{"QRESYNC": true}},
		want: []chunk{{bytes: "A02 SELECT INBOX (QRESYNC (67890007 20050715194045000 41,43:211,214:541))\r\n"}},
	},
	{
		name: "rename",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "t1", Name: "RENAME"}
			cmd.Rename.OldMailbox = imapwire.MailboxName("blurdybloop")
			cmd.Rename.NewMailbox = imapwire.MailboxName("sarasoop")
			return cmd
		}(),
		want: []chunk{{bytes: "t1 RENAME blurdybloop sarasoop\r\n"}},
	},
	{
		name: "list",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A101", Name: "LIST"}
			cmd.List.ReferenceName = []byte("")
			cmd.List.MailboxGlob = []byte("%")
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "A101 LIST \"\" \"%\"\r\n"}},
	},
	{
		name: "list extended",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A102", Name: "LIST"}
			cmd.List.SelectOptions = []string{"SUBSCRIBED", "REMOTE"}
			cmd.List.ReferenceName = []byte("")
			cmd.List.MailboxGlob = []byte("*")
			cmd.List.ReturnOptions = []string{"CHILDREN", "SPECIAL-USE"}
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "A102 LIST (SUBSCRIBED REMOTE) \"\" \"*\" RETURN (CHILDREN SPECIAL-USE)\r\n"}},
	},
	{
		name: "list explicit empty return",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A103", Name: "LIST"}
			cmd.List.ReferenceName = []byte("")
			cmd.List.MailboxGlob = []byte("*")
			cmd.List.ReturnExplicit = true
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "A103 LIST \"\" \"*\" RETURN ()\r\n"}},
	},
	{
		name: "status",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A042", Name: "STATUS", Mailbox: imapwire.MailboxName("blurdybloop")}
			cmd.Status.Items = []imapwire.StatusItem{imapwire.StatusUIDNext, imapwire.StatusMessages}
			return cmd
		}(),
		want: []chunk{{bytes: "A042 STATUS blurdybloop (UIDNEXT MESSAGES)\r\n"}},
	},
	{
		name: "fetch macro fast",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A10", Name: "FETCH"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 1, Max: 10}}}
			cmd.FetchItems = []imapwire.FetchAttr{
				{Type: imapwire.FetchFlags},
				{Type: imapwire.FetchInternalDate},
				{Type: imapwire.FetchRFC822Size},
			}
			return cmd
		}(),
		want: []chunk{{bytes: "A10 FETCH 1:10 FAST\r\n"}},
	},
	{
		name: "fetch macro all",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A10", Name: "FETCH"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 1, Max: 1}}}
			cmd.FetchItems = []imapwire.FetchAttr{
				{Type: imapwire.FetchInternalDate},
				{Type: imapwire.FetchFlags},
				{Type: imapwire.FetchEnvelope},
				{Type: imapwire.FetchRFC822Size},
			}
			return cmd
		}(),
		want: []chunk{{bytes: "A10 FETCH 1 ALL\r\n"}},
	},
	{
		name: "fetch macro full",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A10", Name: "FETCH"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 1, Max: 1}}}
			cmd.FetchItems = []imapwire.FetchAttr{
				{Type: imapwire.FetchFlags},
				{Type: imapwire.FetchInternalDate},
				{Type: imapwire.FetchRFC822Size},
				{Type: imapwire.FetchEnvelope},
				{Type: imapwire.FetchBody},
			}
			return cmd
		}(),
		want: []chunk{{bytes: "A10 FETCH 1 FULL\r\n"}},
	},
	{
		name: "fetch no macro on superset",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A10", Name: "FETCH"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 1, Max: 1}}}
			cmd.FetchItems = []imapwire.FetchAttr{
				{Type: imapwire.FetchFlags},
				{Type: imapwire.FetchInternalDate},
				{Type: imapwire.FetchRFC822Size},
				{Type: imapwire.FetchUID},
			}
			return cmd
		}(),
		want: []chunk{{bytes: "A10 FETCH 1 (FLAGS INTERNALDATE RFC822.SIZE UID)\r\n"}},
	},
	{
		name: "fetch body section partial",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A11", Name: "FETCH", UID: true}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 4827313, Max: 4828442}}}
			item := imapwire.FetchAttr{Type: imapwire.FetchBody, Peek: true, HasSection: true}
			item.Section.Path = []uint16{1, 2}
			item.Section.Name = "HEADER.FIELDS"
			item.Section.Headers = [][]byte{[]byte("DATE"), []byte("FROM")}
			item.Partial.Start = 0
			item.Partial.Length = 1024
			item.HasPartial = true
			cmd.FetchItems = []imapwire.FetchAttr{item}
			return cmd
		}(),
		want: []chunk{{bytes: "A11 UID FETCH 4827313:4828442 BODY.PEEK[1.2.HEADER.FIELDS (DATE FROM)]<0.1024>\r\n"}},
	},
	{
		name: "fetch changedsince",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "s100", Name: "FETCH", UID: true}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 1, Max: imapwire.SeqStar}}}
			cmd.FetchItems = []imapwire.FetchAttr{{Type: imapwire.FetchFlags}}
			cmd.ChangedSince = 12345
			cmd.Vanished = true
			return cmd
		}(),
		opts: Options{Capabilities: map[string]bool{"CONDSTORE": true, "QRESYNC": true}},
		want: []chunk{{bytes: "s100 UID FETCH 1:* FLAGS (CHANGEDSINCE 12345 VANISHED)\r\n"}},
	},
	{
		name: "store",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A003", Name: "STORE"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 2, Max: 4}}}
			cmd.Store = imapwire.Store{Mode: imapwire.StoreAdd, Flags: []imapwire.Flag{imapwire.FlagDeleted}}
			return cmd
		}(),
		want: []chunk{{bytes: "A003 STORE 2:4 +FLAGS (\\Deleted)\r\n"}},
	},
	{
		name: "store silent unchangedsince",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "d105", Name: "STORE"}
			cmd.Set = imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 7, Max: 7}}}
			cmd.Store = imapwire.Store{
				Mode: imapwire.StoreRemove, Silent: true,
				Flags:             []imapwire.Flag{imapwire.FlagSeen},
				UnchangedSince:    320162338,
				HasUnchangedSince: true,
			}
			return cmd
		}(),
		opts: Options{Capabilities: map[string]bool{"CONDSTORE": true}},
		want: []chunk{{bytes: "d105 STORE 7 (UNCHANGEDSINCE 320162338) -FLAGS.SILENT (\\Seen)\r\n"}},
	},
	{
		name: "uid move saved result",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "m1", Name: "MOVE", UID: true, Mailbox: imapwire.MailboxName("Archive")}
			cmd.Set = imapwire.NumSet{SavedResult: true}
			return cmd
		}(),
		opts: Options{Capabilities: map[string]bool{"MOVE": true, "SEARCHRES": true}},
		want: []chunk{{bytes: "m1 UID MOVE $ Archive\r\n"}},
	},
	{
		name: "search or",
		cmd: searchCmd("A005", imapwire.Or(
			imapwire.SearchOp{Key: imapwire.SearchSmaller, Num: 444},
			imapwire.SearchOp{Key: imapwire.SearchLarger, Num: 666},
		)),
		want: []chunk{{bytes: "A005 SEARCH OR SMALLER 444 LARGER 666\r\n"}},
	},
	{
		name: "search top level and spreads",
		cmd: searchCmd("A006", imapwire.SearchOp{Key: imapwire.SearchAnd, Children: []imapwire.SearchOp{
			{Key: imapwire.SearchDeleted},
			{Key: imapwire.SearchFrom, Value: "smith"},
		}}),
		opts: quotedOpts,
		want: []chunk{{bytes: "A006 SEARCH DELETED FROM \"smith\"\r\n"}},
	},
	{
		name: "search nested and parenthesized",
		cmd: searchCmd("A007", imapwire.Or(
			imapwire.SearchOp{Key: imapwire.SearchAnd, Children: []imapwire.SearchOp{
				{Key: imapwire.SearchSeen},
				{Key: imapwire.SearchDeleted},
			}},
			imapwire.SearchOp{Key: imapwire.SearchRecent},
		)),
		want: []chunk{{bytes: "A007 SEARCH OR (SEEN DELETED) RECENT\r\n"}},
	},
	{
		name: "search empty and",
		cmd:  searchCmd("A008", imapwire.SearchOp{Key: imapwire.SearchAnd}),
		want: []chunk{{bytes: "A008 SEARCH ()\r\n"}},
	},
	{
		name: "search not multi-key operand",
		cmd: searchCmd("A009", imapwire.Not(
			imapwire.SearchOp{Key: imapwire.SearchAnd, Children: []imapwire.SearchOp{
				{Key: imapwire.SearchAnswered},
				{Key: imapwire.SearchSeen},
			}},
		)),
		want: []chunk{{bytes: "A009 SEARCH NOT (ANSWERED SEEN)\r\n"}},
	},
	{
		name: "search charset normalised",
		cmd: func() *imapwire.Command {
			cmd := searchCmd("A012", imapwire.SearchOp{Key: imapwire.SearchText, Value: "hello"})
			cmd.Search.Charset = "utf8"
			return cmd
		}(),
		want: []chunk{{bytes: "A012 SEARCH CHARSET UTF-8 TEXT hello\r\n"}},
	},
	{
		name: "search charset alias normalised",
		cmd: func() *imapwire.Command {
			cmd := searchCmd("A013", imapwire.SearchOp{Key: imapwire.SearchAll})
			cmd.Search.Charset = "csUTF8"
			return cmd
		}(),
		want: []chunk{{bytes: "A013 SEARCH CHARSET UTF-8 ALL\r\n"}},
	},
	{
		name: "search charset unknown",
		cmd: func() *imapwire.Command {
			cmd := searchCmd("A014", imapwire.SearchOp{Key: imapwire.SearchAll})
			cmd.Search.Charset = "no-such-charset"
			return cmd
		}(),
		errstr: "unknown charset",
	},
	{
		name: "search not single-key and elides parens",
		cmd: searchCmd("A015", imapwire.SearchOp{
			Key: imapwire.SearchNot,
			Children: []imapwire.SearchOp{
				{Key: imapwire.SearchAnd, Children: []imapwire.SearchOp{
					{Key: imapwire.SearchSeen},
				}},
			},
		}),
		want: []chunk{{bytes: "A015 SEARCH NOT SEEN\r\n"}},
	},
	{
		name: "select qresync star rejected",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "A016", Name: "SELECT", Mailbox: imapwire.MailboxName("INBOX")}
			cmd.Qresync = imapwire.QresyncParam{
				UIDValidity: 67890007,
				ModSeq:      1,
				UIDs:        []imapwire.SeqRange{{Min: 41, Max: imapwire.SeqStar}},
			}
			return cmd
		}(),
		errstr: "'*' is not allowed",
	},
	{
		name: "search charset header",
		cmd: func() *imapwire.Command {
			cmd := searchCmd("A010", imapwire.SearchOp{
				Key: imapwire.SearchHeader, Entry: "Message-ID", Value: "<x@y>",
			})
			cmd.Search.Charset = "UTF-8"
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "A010 SEARCH CHARSET \"UTF-8\" HEADER \"Message-ID\" \"<x@y>\"\r\n"}},
	},
	{
		name: "search return options",
		cmd: func() *imapwire.Command {
			cmd := searchCmd("A011", imapwire.SearchOp{
				Key: imapwire.SearchUID,
				Set: imapwire.NumSet{Seqs: []imapwire.SeqRange{{Min: 100, Max: imapwire.SeqStar}}},
			})
			cmd.Search.Return = []string{"MIN", "COUNT"}
			return cmd
		}(),
		opts: Options{Capabilities: map[string]bool{"ESEARCH": true}},
		want: []chunk{{bytes: "A011 SEARCH RETURN (MIN COUNT) UID 100:*\r\n"}},
	},
	{
		name: "search modseq with entry",
		cmd: searchCmd("a", imapwire.SearchOp{
			Key: imapwire.SearchModSeq, Num: 620162338,
			Entry: `/flags/\draft`, EntryType: "all",
		}),
		want: []chunk{{bytes: "a SEARCH MODSEQ \"/flags/\\\\draft\" all 620162338\r\n"}},
	},
	{
		name: "search older younger",
		cmd: searchCmd("w1", imapwire.And(
			imapwire.SearchOp{Key: imapwire.SearchOlder, Num: 86400},
			imapwire.SearchOp{Key: imapwire.SearchYounger, Num: 600},
		)),
		want: []chunk{{bytes: "w1 SEARCH OLDER 86400 YOUNGER 600\r\n"}},
	},
	{
		name: "authenticate saslir",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a1", Name: "AUTHENTICATE"}
			cmd.Authenticate.Mechanism = "PLAIN"
			cmd.Authenticate.InitialResponse = []byte("\x00fred\x00secret")
			return cmd
		}(),
		opts: Options{SASLIR: true},
		want: []chunk{{bytes: "a1 AUTHENTICATE PLAIN AGZyZWQAc2VjcmV0\r\n"}},
	},
	{
		name: "authenticate saslir disabled",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a1", Name: "AUTHENTICATE"}
			cmd.Authenticate.Mechanism = "PLAIN"
			cmd.Authenticate.InitialResponse = []byte("x")
			return cmd
		}(),
		errstr: "requires SASL-IR",
	},
	{
		name: "authenticate deferred response",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a1", Name: "AUTHENTICATE"}
			cmd.Authenticate.Mechanism = "PLAIN"
			return cmd
		}(),
		want: []chunk{{bytes: "a1 AUTHENTICATE PLAIN\r\n"}},
	},
	{
		name: "authenticate empty initial response",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a1", Name: "AUTHENTICATE"}
			cmd.Authenticate.Mechanism = "XOAUTH2"
			cmd.Authenticate.InitialResponse = []byte{}
			return cmd
		}(),
		opts: Options{SASLIR: true},
		want: []chunk{{bytes: "a1 AUTHENTICATE XOAUTH2 =\r\n"}},
	},
	{
		name: "enable",
		cmd: &imapwire.Command{
			Tag: "t1", Name: "ENABLE",
			Params: [][]byte{[]byte("QRESYNC"), []byte("CONDSTORE")},
		},
		want: []chunk{{bytes: "t1 ENABLE QRESYNC CONDSTORE\r\n"}},
	},
	{
		name: "id",
		cmd: &imapwire.Command{
			Tag: "t1", Name: "ID",
			Params: [][]byte{[]byte("name"), []byte("wingmail")},
		},
		opts: quotedOpts,
		want: []chunk{{bytes: "t1 ID (\"name\" \"wingmail\")\r\n"}},
	},
	{
		name: "id nil",
		cmd:  &imapwire.Command{Tag: "t1", Name: "ID"},
		want: []chunk{{bytes: "t1 ID NIL\r\n"}},
	},
	{
		name: "namespace",
		cmd:  &imapwire.Command{Tag: "t1", Name: "NAMESPACE"},
		want: []chunk{{bytes: "t1 NAMESPACE\r\n"}},
	},
	{
		name: "getmetadata options",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a", Name: "GETMETADATA", Mailbox: imapwire.MailboxName("INBOX")}
			cmd.Metadata.MaxSize = 1024
			cmd.Metadata.HasDepth = true
			cmd.Metadata.Depth = "infinity"
			cmd.Metadata.Entries = []string{"/shared/comment", "/private/comment"}
			return cmd
		}(),
		want: []chunk{{bytes: "a GETMETADATA (MAXSIZE 1024 DEPTH infinity) INBOX (/shared/comment /private/comment)\r\n"}},
	},
	{
		name: "setmetadata nil value",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a", Name: "SETMETADATA", Mailbox: imapwire.MailboxName("INBOX")}
			cmd.Metadata.Entries = []string{"/private/comment"}
			cmd.Metadata.Values = []imapwire.NString{nil}
			return cmd
		}(),
		want: []chunk{{bytes: "a SETMETADATA INBOX (/private/comment NIL)\r\n"}},
	},
	{
		name: "genurlauth",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a", Name: "GENURLAUTH"}
			cmd.URLAuth.Gen = []imapwire.URLAuthRump{{
				URL:       "imap://joe@example.com/INBOX/;uid=20/;urlauth=anonymous",
				Mechanism: "INTERNAL",
			}}
			return cmd
		}(),
		opts: quotedOpts,
		want: []chunk{{bytes: "a GENURLAUTH \"imap://joe@example.com/INBOX/;uid=20/;urlauth=anonymous\" INTERNAL\r\n"}},
	},
	{
		name: "urlfetch",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a", Name: "URLFETCH"}
			cmd.URLAuth.URLs = []string{"imap://example.com/INBOX/;uid=1/;urlauth=user+joe:internal:91354a473744909de610943775f92038"}
			return cmd
		}(),
		want: []chunk{{bytes: "a URLFETCH imap://example.com/INBOX/;uid=1/;urlauth=user+joe:internal:91354a473744909de610943775f92038\r\n"}},
	},
	{
		name: "resetkey",
		cmd: func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "a", Name: "RESETKEY", Mailbox: imapwire.MailboxName("INBOX")}
			cmd.URLAuth.Mechanisms = []string{"INTERNAL"}
			return cmd
		}(),
		want: []chunk{{bytes: "a RESETKEY INBOX INTERNAL\r\n"}},
	},
	{
		name:   "bad tag",
		cmd:    &imapwire.Command{Tag: "a b", Name: "NOOP"},
		errstr: "invalid tag",
	},
	{
		name:   "append is stream parts",
		cmd:    &imapwire.Command{Tag: "a", Name: "APPEND", Mailbox: imapwire.MailboxName("Drafts")},
		errstr: "stream parts",
	},
}

func TestEncodeCommand(t *testing.T) {
	for _, test := range encodeCommandTests {
		t.Run(test.name, func(t *testing.T) {
			chunks, err := Encode(imapwire.CommandPart(test.cmd), test.opts)
			if test.errstr != "" {
				if err == nil || !strings.Contains(err.Error(), test.errstr) {
					t.Fatalf("err=%v, want substring %q", err, test.errstr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			compareChunks(t, chunks, test.want)
		})
	}
}

func compareChunks(t *testing.T, got []Chunk, want []chunk) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d chunks, want %d:\n got: %q", len(got), len(want), chunkBytes(got))
	}
	for i := range got {
		if string(got[i].Bytes) != want[i].bytes {
			t.Errorf("chunk %d = %q, want %q", i, got[i].Bytes, want[i].bytes)
		}
		if got[i].WaitForContinuation != want[i].wait {
			t.Errorf("chunk %d wait=%v, want %v", i, got[i].WaitForContinuation, want[i].wait)
		}
	}
	if len(got) > 0 && got[len(got)-1].WaitForContinuation && !want[len(got)-1].wait {
		t.Error("final chunk waits for continuation")
	}
}

func chunkBytes(chunks []Chunk) []string {
	var s []string
	for _, c := range chunks {
		s = append(s, string(c.Bytes))
	}
	return s
}

func TestEncodeAppendStream(t *testing.T) {
	enc := NewEncoder(quotedOpts)
	var all []Chunk
	parts := []imapwire.StreamPart{
		{Kind: imapwire.PartAppendStart, Tag: "A003", Mailbox: imapwire.MailboxName("Drafts")},
		{Kind: imapwire.PartBeginMessage, Options: imapwire.AppendOptions{Flags: []imapwire.Flag{imapwire.FlagSeen}}, Size: 7},
		{Kind: imapwire.PartMessageBytes, Bytes: []byte("Foo Bar")},
		{Kind: imapwire.PartEndMessage},
		{Kind: imapwire.PartAppendFinish},
	}
	for _, part := range parts {
		chunks, err := enc.Encode(part)
		if err != nil {
			t.Fatal(err)
		}
		all = append(all, chunks...)
	}
	compareChunks(t, all, []chunk{
		{bytes: "A003 APPEND \"Drafts\""},
		{bytes: " (\\Seen) {7}\r\n", wait: true},
		{bytes: "Foo Bar"},
		{bytes: "\r\n"},
	})
	// Concatenated up to the literal header, the wire bytes match
	// the canonical single-chunk form.
	if got := string(all[0].Bytes) + string(all[1].Bytes); got != "A003 APPEND \"Drafts\" (\\Seen) {7}\r\n" {
		t.Errorf("append prefix = %q", got)
	}
}

func TestEncodeAppendStreamLiteralPlus(t *testing.T) {
	enc := NewEncoder(Options{QuotedString: true, NonSyncLiteral: true})
	var buf []byte
	parts := []imapwire.StreamPart{
		{Kind: imapwire.PartAppendStart, Tag: "A003", Mailbox: imapwire.MailboxName("Drafts")},
		{Kind: imapwire.PartBeginMessage, Options: imapwire.AppendOptions{Flags: []imapwire.Flag{imapwire.FlagSeen}}, Size: 7},
		{Kind: imapwire.PartMessageBytes, Bytes: []byte("Foo Bar")},
		{Kind: imapwire.PartEndMessage},
		{Kind: imapwire.PartAppendFinish},
	}
	for _, part := range parts {
		chunks, err := enc.Encode(part)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range chunks {
			if c.WaitForContinuation {
				t.Errorf("chunk %q waits despite LITERAL+", c.Bytes)
			}
			buf = append(buf, c.Bytes...)
		}
	}
	if want := "A003 APPEND \"Drafts\" (\\Seen) {7+}\r\nFoo Bar\r\n"; string(buf) != want {
		t.Errorf("append stream = %q, want %q", buf, want)
	}
}

func TestEncodeCatenate(t *testing.T) {
	enc := NewEncoder(Options{QuotedString: true, NonSyncLiteral: true})
	var buf []byte
	parts := []imapwire.StreamPart{
		{Kind: imapwire.PartAppendStart, Tag: "A", Mailbox: imapwire.MailboxName("Sent")},
		{Kind: imapwire.PartBeginCatenate, Options: imapwire.AppendOptions{Flags: []imapwire.Flag{imapwire.FlagSeen}}},
		{Kind: imapwire.PartCatenateURL, URL: "imap://example.com/Drafts/;uid=4"},
		{Kind: imapwire.PartCatenateBegin, Size: 4},
		{Kind: imapwire.PartCatenateBytes, Bytes: []byte("\r\n--\r\n"[:4])},
		{Kind: imapwire.PartCatenateEnd},
		{Kind: imapwire.PartCatenateURL, URL: "imap://example.com/Drafts/;uid=5"},
		{Kind: imapwire.PartEndCatenate},
		{Kind: imapwire.PartAppendFinish},
	}
	for _, part := range parts {
		chunks, err := enc.Encode(part)
		if err != nil {
			t.Fatal(err)
		}
		for _, c := range chunks {
			buf = append(buf, c.Bytes...)
		}
	}
	want := "A APPEND \"Sent\" (\\Seen) CATENATE (" +
		"URL \"imap://example.com/Drafts/;uid=4\" " +
		"TEXT {4+}\r\n\r\n--" +
		" URL \"imap://example.com/Drafts/;uid=5\")\r\n"
	if string(buf) != want {
		t.Errorf("catenate stream = %q, want %q", buf, want)
	}
}

func TestEncodeIdleDone(t *testing.T) {
	chunks, err := Encode(imapwire.StreamPart{Kind: imapwire.PartIdleDone}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	compareChunks(t, chunks, []chunk{{bytes: "DONE\r\n"}})
}

func TestEncodeContinuationResponse(t *testing.T) {
	chunks, err := Encode(imapwire.StreamPart{
		Kind:  imapwire.PartContinuationResponse,
		Bytes: []byte("\x00fred\x00secret"),
	}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	compareChunks(t, chunks, []chunk{{bytes: "AGZyZWQAc2VjcmV0\r\n"}})
}

func TestLiteralChunking(t *testing.T) {
	// Every command with at least one literal-requiring string
	// splits into >= 2 chunks without LITERAL+, and exactly one
	// with it. Every non-final chunk waits.
	cmds := []*imapwire.Command{
		func() *imapwire.Command {
			cmd := &imapwire.Command{Tag: "t", Name: "LOGIN"}
			cmd.Auth.Username = "u\xff1"
			cmd.Auth.Password = "p\xff2"
			return cmd
		}(),
		{Tag: "t", Name: "CREATE", Mailbox: imapwire.MailboxName("box\xffname")},
		func() *imapwire.Command {
			cmd := searchCmd("t", imapwire.SearchOp{Key: imapwire.SearchSubject, Value: "caf\xc3\xa9 nonascii \xff"})
			return cmd
		}(),
	}
	for _, cmd := range cmds {
		t.Run(cmd.Name, func(t *testing.T) {
			chunks, err := Encode(imapwire.CommandPart(cmd), Options{})
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) < 2 {
				t.Errorf("sync encode produced %d chunks, want >= 2", len(chunks))
			}
			for i, c := range chunks {
				want := i < len(chunks)-1
				if c.WaitForContinuation != want {
					t.Errorf("chunk %d wait=%v, want %v", i, c.WaitForContinuation, want)
				}
			}

			chunks, err = Encode(imapwire.CommandPart(cmd), Options{NonSyncLiteral: true})
			if err != nil {
				t.Fatal(err)
			}
			if len(chunks) != 1 {
				t.Errorf("LITERAL+ encode produced %d chunks, want 1", len(chunks))
			}
		})
	}
}
