package imapparse

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"wingmail.dev/imap/imapwire"
)

// feedAll parses every event of input, feeding the whole input up
// front.
func feedAll(t *testing.T, p *Parser, input string) []Event {
	t.Helper()
	p.Buf.Feed([]byte(input))
	var evs []Event
	for {
		ev, err := p.Next()
		if err == ErrNeedMoreData {
			return evs
		}
		if err != nil {
			t.Fatalf("after %d events: %v", len(evs), err)
		}
		evs = append(evs, cloneEvent(ev))
	}
}

// cloneEvent copies buffer-aliasing spans so events survive the
// next parser call.
func cloneEvent(ev Event) Event {
	if ev.StreamBytes != nil {
		ev.StreamBytes = append([]byte(nil), ev.StreamBytes...)
	}
	return ev
}

func greet(t *testing.T, p *Parser) {
	t.Helper()
	p.Buf.Feed([]byte("* OK server ready\r\n"))
	ev, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventGreeting {
		t.Fatalf("first event = %v, want greeting", ev.Kind)
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		input string
		kind  imapwire.CondStateKind
		caps  []string
	}{
		{"* OK IMAP4rev1 Service Ready\r\n", imapwire.StateOK, nil},
		{"* PREAUTH welcome back\r\n", imapwire.StatePreauth, nil},
		{"* OK [CAPABILITY IMAP4rev1 IDLE LITERAL+] ready\r\n", imapwire.StateOK,
			[]string{"IMAP4rev1", "IDLE", "LITERAL+"}},
		{"* BYE overloaded\r\n", imapwire.StateBYE, nil},
	}
	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			p := &Parser{}
			p.Buf.Feed([]byte(test.input))
			ev, err := p.Next()
			if err != nil {
				t.Fatal(err)
			}
			if ev.Kind != EventGreeting {
				t.Fatalf("event = %v, want greeting", ev.Kind)
			}
			if ev.Greeting.State.Kind != test.kind {
				t.Errorf("kind = %s, want %s", ev.Greeting.State.Kind, test.kind)
			}
			if test.caps != nil {
				if ev.Greeting.State.Code == nil {
					t.Fatal("missing CAPABILITY code")
				}
				if !reflect.DeepEqual(ev.Greeting.State.Code.Caps, test.caps) {
					t.Errorf("caps = %v, want %v", ev.Greeting.State.Code.Caps, test.caps)
				}
			}
		})
	}
}

func TestLoginScenario(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	evs := feedAll(t, p, "a001 OK LOGIN completed\r\n")
	if len(evs) != 1 {
		t.Fatalf("got %d events, want 1", len(evs))
	}
	tr := evs[0].Tagged
	if evs[0].Kind != EventTagged || tr == nil {
		t.Fatalf("event = %+v, want tagged", evs[0])
	}
	if tr.Tag != "a001" || tr.State.Kind != imapwire.StateOK || tr.State.Text != "LOGIN completed" {
		t.Errorf("tagged = %+v", tr)
	}
}

func TestSelectScenario(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	evs := feedAll(t, p, "* 18 EXISTS\r\n"+
		"* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n"+
		"* 2 RECENT\r\n"+
		"* OK [UNSEEN 17] Message 17 is the first unseen message\r\n"+
		"* OK [UIDVALIDITY 3857529045] UIDs valid\r\n"+
		"a002 OK [READ-WRITE] SELECT completed\r\n")
	if len(evs) != 6 {
		t.Fatalf("got %d events, want 6", len(evs))
	}
	if r := evs[0].Untagged; r.Type != imapwire.UntaggedExists || r.Num != 18 {
		t.Errorf("event 0 = %+v", r)
	}
	wantFlags := []imapwire.Flag{
		imapwire.FlagAnswered, imapwire.FlagFlagged, imapwire.FlagDeleted,
		imapwire.FlagSeen, imapwire.FlagDraft,
	}
	if r := evs[1].Untagged; r.Type != imapwire.UntaggedFlags || !reflect.DeepEqual(r.Flags, wantFlags) {
		t.Errorf("event 1 = %+v", r)
	}
	if r := evs[2].Untagged; r.Type != imapwire.UntaggedRecent || r.Num != 2 {
		t.Errorf("event 2 = %+v", r)
	}
	if r := evs[3].Untagged; r.Cond.Code == nil || r.Cond.Code.Name != imapwire.CodeUnseen || r.Cond.Code.Num != 17 {
		t.Errorf("event 3 = %+v", r)
	}
	if r := evs[4].Untagged; r.Cond.Code == nil || r.Cond.Code.Name != imapwire.CodeUIDValidity || r.Cond.Code.Num != 3857529045 {
		t.Errorf("event 4 = %+v", r)
	}
	tr := evs[5].Tagged
	if tr.Tag != "a002" || tr.State.Code == nil || tr.State.Code.Name != imapwire.CodeReadWrite {
		t.Errorf("event 5 = %+v", tr)
	}
}

func TestContinuationRequest(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	evs := feedAll(t, p, "+ OK\r\n+\r\n+ aGVsbG8=\r\n")
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3", len(evs))
	}
	if evs[0].Continuation.Text != "OK" {
		t.Errorf("text = %q", evs[0].Continuation.Text)
	}
	if evs[1].Continuation.Text != "" {
		t.Errorf("empty continuation text = %q", evs[1].Continuation.Text)
	}
	if got := evs[2].Continuation.Base64Decoded; string(got) != "hello" {
		t.Errorf("base64 = %q, want hello", got)
	}
}

func TestUntaggedResponses(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, r *imapwire.UntaggedResponse)
	}{
		{
			name:  "capability",
			input: "* CAPABILITY IMAP4rev1 UIDPLUS MOVE\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if !reflect.DeepEqual(r.Caps, []string{"IMAP4rev1", "UIDPLUS", "MOVE"}) {
					t.Errorf("caps = %v", r.Caps)
				}
			},
		},
		{
			name:  "enabled",
			input: "* ENABLED CONDSTORE QRESYNC\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if r.Type != imapwire.UntaggedEnabled || len(r.Caps) != 2 {
					t.Errorf("resp = %+v", r)
				}
			},
		},
		{
			name:  "list",
			input: "* LIST (\\HasNoChildren \\Drafts) \"/\" \"Entw&APw-rfe\"\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if r.List.Separator != '/' {
					t.Errorf("separator = %q", r.List.Separator)
				}
				if got := r.List.Path().DisplayString(); got != "Entwürfe" {
					t.Errorf("display = %q", got)
				}
				if len(r.List.Attrs) != 2 {
					t.Errorf("attrs = %v", r.List.Attrs)
				}
			},
		},
		{
			name:  "list nil separator",
			input: "* LIST () NIL inbox\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if r.List.Separator != 0 {
					t.Errorf("separator = %q", r.List.Separator)
				}
				if !r.List.Mailbox.IsInbox() {
					t.Errorf("mailbox = %q", r.List.Mailbox)
				}
			},
		},
		{
			name:  "list extended childinfo",
			input: "* LIST (\\Marked) \"/\" Inbox (\"CHILDINFO\" (\"SUBSCRIBED\"))\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				want := []imapwire.FieldParam{{Key: "CHILDINFO", Value: `("SUBSCRIBED")`}}
				if !reflect.DeepEqual(r.List.Extended, want) {
					t.Errorf("extended = %+v", r.List.Extended)
				}
			},
		},
		{
			name:  "search",
			input: "* SEARCH 2 3 6\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if !reflect.DeepEqual(r.Search.Nums, []uint32{2, 3, 6}) {
					t.Errorf("nums = %v", r.Search.Nums)
				}
			},
		},
		{
			name:  "search empty",
			input: "* SEARCH\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if len(r.Search.Nums) != 0 {
					t.Errorf("nums = %v", r.Search.Nums)
				}
			},
		},
		{
			name:  "search modseq",
			input: "* SEARCH 599 600 (MODSEQ 917162500)\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if r.Search.ModSeq != 917162500 {
					t.Errorf("modseq = %d", r.Search.ModSeq)
				}
			},
		},
		{
			name:  "esearch",
			input: "* ESEARCH (TAG \"A282\") MIN 2 COUNT 3\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				es := r.ESearch
				if es.Tag != "A282" || !es.HasMin || es.Min != 2 || !es.HasCount || es.Count != 3 {
					t.Errorf("esearch = %+v", es)
				}
			},
		},
		{
			name:  "esearch uid all",
			input: "* ESEARCH (TAG \"A285\") UID ALL 43:45,67,100:129\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				es := r.ESearch
				if !es.UID {
					t.Error("not UID")
				}
				if got := imapwire.SeqsString(es.All); got != "43:45,67,100:129" {
					t.Errorf("all = %s", got)
				}
			},
		},
		{
			name:  "status",
			input: "* STATUS blurdybloop (MESSAGES 231 UIDNEXT 44292 HIGHESTMODSEQ 7011231777)\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				st := r.Status
				if string(st.Mailbox) != "blurdybloop" || st.Messages != 231 ||
					st.UIDNext != 44292 || st.HighestModSeq != 7011231777 {
					t.Errorf("status = %+v", st)
				}
				if !st.HasMessages || !st.HasUIDNext || st.HasUnseen {
					t.Errorf("presence flags = %+v", st)
				}
			},
		},
		{
			name:  "vanished earlier",
			input: "* VANISHED (EARLIER) 300:310,405,411\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if !r.Vanished.Earlier {
					t.Error("not earlier")
				}
				if got := imapwire.SeqsString(r.Vanished.UIDs); got != "300:310,405,411" {
					t.Errorf("uids = %s", got)
				}
			},
		},
		{
			name:  "namespace",
			input: "* NAMESPACE ((\"\" \"/\")) ((\"~\" \"/\")) NIL\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				ns := r.Namespace
				if len(ns.Personal) != 1 || ns.Personal[0].Separator != '/' {
					t.Errorf("personal = %+v", ns.Personal)
				}
				if len(ns.Other) != 1 || string(ns.Other[0].Prefix) != "~" {
					t.Errorf("other = %+v", ns.Other)
				}
				if ns.Shared != nil {
					t.Errorf("shared = %+v", ns.Shared)
				}
			},
		},
		{
			name:  "id",
			input: "* ID (\"name\" \"Dovecot\" \"version\" NIL)\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if len(r.Params) != 4 || string(r.Params[0]) != "name" || r.Params[3] != nil {
					t.Errorf("params = %q", r.Params)
				}
			},
		},
		{
			name:  "quota",
			input: "* QUOTA \"\" (STORAGE 10 512)\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if len(r.Quota.Resources) != 1 || r.Quota.Resources[0].Limit != 512 {
					t.Errorf("quota = %+v", r.Quota)
				}
			},
		},
		{
			name:  "metadata values",
			input: "* METADATA INBOX (/private/comment \"my comment\")\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if len(r.Metadata.Entries) != 1 || r.Metadata.Entries[0] != "/private/comment" {
					t.Errorf("entries = %v", r.Metadata.Entries)
				}
				if string(r.Metadata.Values[0]) != "my comment" {
					t.Errorf("values = %v", r.Metadata.Values)
				}
			},
		},
		{
			name:  "bye",
			input: "* BYE Autologout; idle for too long\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				if r.Type != imapwire.UntaggedCond || r.Cond.Kind != imapwire.StateBYE {
					t.Errorf("resp = %+v", r)
				}
			},
		},
		{
			name:  "ok permanentflags",
			input: "* OK [PERMANENTFLAGS (\\Deleted \\Seen \\*)] Limited\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				code := r.Cond.Code
				if code == nil || code.Name != imapwire.CodePermanentFlags {
					t.Fatalf("code = %+v", code)
				}
				want := []imapwire.Flag{imapwire.FlagDeleted, imapwire.FlagSeen, imapwire.FlagWildcard}
				if !reflect.DeepEqual(code.Flags, want) {
					t.Errorf("flags = %v", code.Flags)
				}
			},
		},
		{
			name:  "ok appenduid",
			input: "* OK [APPENDUID 38505 3955] APPEND completed\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				code := r.Cond.Code
				if code.UIDValidity != 38505 || imapwire.SeqsString(code.DstUIDs) != "3955" {
					t.Errorf("code = %+v", code)
				}
			},
		},
		{
			name:  "ok copyuid",
			input: "* OK [COPYUID 38505 304,319:320 3956:3958] Done\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				code := r.Cond.Code
				if imapwire.SeqsString(code.SrcUIDs) != "304,319:320" ||
					imapwire.SeqsString(code.DstUIDs) != "3956:3958" {
					t.Errorf("code = %+v", code)
				}
			},
		},
		{
			name:  "no unknown code",
			input: "* NO [UNAVAILABLE shard 3] try later\r\n",
			check: func(t *testing.T, r *imapwire.UntaggedResponse) {
				code := r.Cond.Code
				if code == nil || code.Name != "UNAVAILABLE" || code.Text != "shard 3" {
					t.Errorf("code = %+v", code)
				}
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := &Parser{}
			greet(t, p)
			evs := feedAll(t, p, test.input)
			if len(evs) != 1 {
				t.Fatalf("got %d events, want 1", len(evs))
			}
			if evs[0].Kind != EventUntagged {
				t.Fatalf("event = %v, want untagged", evs[0].Kind)
			}
			test.check(t, evs[0].Untagged)
		})
	}
}

func TestFetchEvents(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	input := "* 12 FETCH (FLAGS (\\Seen) UID 4827 MODSEQ (65402) " +
		"INTERNALDATE \"17-Jul-1996 02:44:25 -0700\" RFC822.SIZE 4286)\r\n"
	evs := feedAll(t, p, input)
	kinds := eventKinds(evs)
	want := []EventKind{
		EventFetchStart, EventFetchAttr, EventFetchAttr, EventFetchAttr,
		EventFetchAttr, EventFetchAttr, EventFetchEnd,
	}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}
	if evs[0].SeqNum != 12 {
		t.Errorf("seqnum = %d", evs[0].SeqNum)
	}
	attrs := map[imapwire.MessageAttrType]*imapwire.MessageAttr{}
	for _, ev := range evs[1:6] {
		attrs[ev.Attr.Type] = ev.Attr
	}
	if a := attrs[imapwire.AttrFlags]; a == nil || len(a.Flags) != 1 || a.Flags[0] != imapwire.FlagSeen {
		t.Errorf("flags = %+v", a)
	}
	if a := attrs[imapwire.AttrUID]; a == nil || a.Num != 4827 {
		t.Errorf("uid = %+v", a)
	}
	if a := attrs[imapwire.AttrModSeq]; a == nil || a.ModSeq != 65402 {
		t.Errorf("modseq = %+v", a)
	}
	if a := attrs[imapwire.AttrInternalDate]; a == nil || a.InternalDate.Hour() != 2 {
		t.Errorf("internaldate = %+v", a)
	}
	if a := attrs[imapwire.AttrRFC822Size]; a == nil || a.Num != 4286 {
		t.Errorf("size = %+v", a)
	}
}

func eventKinds(evs []Event) []EventKind {
	kinds := make([]EventKind, len(evs))
	for i := range evs {
		kinds[i] = evs[i].Kind
	}
	return kinds
}

func TestFetchEnvelope(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	input := "* 2 FETCH (ENVELOPE (\"Wed, 17 Jul 1996 02:23:25 -0700 (PDT)\" " +
		"\"IMAP4rev1 WG mtg summary and minutes\" " +
		"((\"Terry Gray\" NIL \"gray\" \"cac.washington.edu\")) " +
		"((\"Terry Gray\" NIL \"gray\" \"cac.washington.edu\")) " +
		"((\"Terry Gray\" NIL \"gray\" \"cac.washington.edu\")) " +
		"((NIL NIL \"imap\" \"cac.washington.edu\")) " +
		"((NIL NIL \"minutes\" \"CNRI.Reston.VA.US\") " +
		"(\"John Klensin\" NIL \"KLENSIN\" \"MIT.EDU\")) NIL NIL " +
		"\"<B27397-0100000@cac.washington.edu>\"))\r\n"
	evs := feedAll(t, p, input)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(evs), eventKinds(evs))
	}
	env := evs[1].Attr.Envelope
	if env == nil {
		t.Fatal("nil envelope")
	}
	if string(env.Subject) != "IMAP4rev1 WG mtg summary and minutes" {
		t.Errorf("subject = %s", env.Subject)
	}
	if len(env.From) != 1 || string(env.From[0].Name) != "Terry Gray" {
		t.Errorf("from = %+v", env.From)
	}
	if len(env.CC) != 2 || string(env.CC[1].Mailbox) != "KLENSIN" {
		t.Errorf("cc = %+v", env.CC)
	}
	if !env.InReplyTo.IsNil() {
		t.Errorf("in-reply-to = %v", env.InReplyTo)
	}
	if string(env.MessageID) != "<B27397-0100000@cac.washington.edu>" {
		t.Errorf("message-id = %s", env.MessageID)
	}
}

func TestFetchBodyStructure(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	input := "* 7 FETCH (BODYSTRUCTURE ((\"TEXT\" \"PLAIN\" (\"CHARSET\" \"UTF-8\") NIL NIL \"7BIT\" 1152 23 NIL NIL NIL NIL)" +
		"(\"IMAGE\" \"PNG\" (\"NAME\" \"logo.png\") \"<img1>\" NIL \"BASE64\" 4554 \"md5sum\" (\"ATTACHMENT\" (\"FILENAME\" \"logo.png\")) NIL NIL)" +
		" \"MIXED\" (\"BOUNDARY\" \"x\") NIL NIL))\r\n"
	evs := feedAll(t, p, input)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(evs), eventKinds(evs))
	}
	bs := evs[1].Attr.Body
	if bs == nil || !bs.IsMultipart() {
		t.Fatalf("body = %+v", bs)
	}
	if bs.MediaSubtype != "MIXED" || len(bs.Parts) != 2 {
		t.Errorf("multipart = %q with %d parts", bs.MediaSubtype, len(bs.Parts))
	}
	if want := []imapwire.FieldParam{{Key: "BOUNDARY", Value: "x"}}; !reflect.DeepEqual(bs.Fields.Params, want) {
		t.Errorf("multipart params = %+v", bs.Fields.Params)
	}
	text := &bs.Parts[0]
	if text.MediaType != "TEXT" || text.MediaSubtype != "PLAIN" || text.Lines != 23 || text.Fields.Octets != 1152 {
		t.Errorf("text part = %+v", text)
	}
	img := &bs.Parts[1]
	if string(img.MD5) != "md5sum" {
		t.Errorf("img md5 = %v", img.MD5)
	}
	if img.Disposition == nil || img.Disposition.Kind != "ATTACHMENT" {
		t.Errorf("img disposition = %+v", img.Disposition)
	}
	if string(img.Fields.ID) != "<img1>" {
		t.Errorf("img id = %v", img.Fields.ID)
	}
	// Part addressing.
	if got := bs.Part([]uint16{2}); got != img {
		t.Errorf("Part(2) = %+v", got)
	}
	if got := bs.Part([]uint16{3}); got != nil {
		t.Errorf("Part(3) = %+v", got)
	}
}

func TestFetchMessageRFC822Structure(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	input := "* 8 FETCH (BODYSTRUCTURE (\"MESSAGE\" \"RFC822\" NIL NIL NIL \"7BIT\" 342 " +
		"(NIL \"inner subject\" NIL NIL NIL NIL NIL NIL NIL NIL) " +
		"(\"TEXT\" \"PLAIN\" NIL NIL NIL \"7BIT\" 32 2) 8))\r\n"
	evs := feedAll(t, p, input)
	if len(evs) != 3 {
		t.Fatalf("got %d events, want 3: %v", len(evs), eventKinds(evs))
	}
	bs := evs[1].Attr.Body
	if bs.Envelope == nil || string(bs.Envelope.Subject) != "inner subject" {
		t.Errorf("inner envelope = %+v", bs.Envelope)
	}
	if bs.Inner == nil || bs.Inner.MediaType != "TEXT" {
		t.Errorf("inner structure = %+v", bs.Inner)
	}
	if bs.Lines != 8 {
		t.Errorf("lines = %d", bs.Lines)
	}
}

func TestFetchStreaming(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	const size = 10 << 20
	body := bytes.Repeat([]byte("x"), size)

	p.Buf.Feed([]byte("* 3 FETCH (UID 77 BODY[] {10485760}\r\n"))

	ev, err := p.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventFetchStart || ev.SeqNum != 3 {
		t.Fatalf("event = %+v", ev)
	}
	if ev, err = p.Next(); err != nil || ev.Kind != EventFetchAttr {
		t.Fatalf("uid attr: %v %v", ev.Kind, err)
	}
	if ev, err = p.Next(); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventFetchStreamBegin || ev.StreamSize != size {
		t.Fatalf("begin = %+v", ev)
	}
	if !ev.StreamAttr.HasSection || ev.StreamAttr.Type != imapwire.FetchBody {
		t.Errorf("stream attr = %+v", ev.StreamAttr)
	}

	// Feed the body in uneven slabs and count streamed bytes; the
	// parser's buffer must never accumulate the literal.
	var streamed int
	remaining := body
	slab := 1 << 17
	for {
		ev, err := p.Next()
		if err == ErrNeedMoreData {
			if len(remaining) == 0 {
				t.Fatal("need more data after full body")
			}
			n := slab
			if n > len(remaining) {
				n = len(remaining)
			}
			p.Buf.Feed(remaining[:n])
			remaining = remaining[n:]
			slab = slab/2 + 3
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if ev.Kind == EventFetchStreamEnd {
			break
		}
		if ev.Kind != EventFetchStreamBytes {
			t.Fatalf("event = %v", ev.Kind)
		}
		streamed += len(ev.StreamBytes)
		if high := p.Buf.Buffered(); high > slab+1024 {
			t.Fatalf("parser buffered %d bytes during streaming", high)
		}
	}
	if streamed != size {
		t.Fatalf("streamed %d bytes, want %d", streamed, size)
	}

	p.Buf.Feed([]byte(")\r\n"))
	ev, err = p.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ev.Kind != EventFetchEnd {
		t.Fatalf("event = %v, want fetch-end", ev.Kind)
	}
}

func TestFetchStreamingQuotedAndNil(t *testing.T) {
	p := &Parser{}
	greet(t, p)
	evs := feedAll(t, p, "* 4 FETCH (BODY[HEADER] \"X: y\" BODY[1] NIL)\r\n")
	want := []EventKind{
		EventFetchStart,
		EventFetchStreamBegin, EventFetchStreamBytes, EventFetchStreamEnd,
		EventFetchStreamBegin, EventFetchStreamEnd,
		EventFetchEnd,
	}
	if got := eventKinds(evs); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if string(evs[2].StreamBytes) != "X: y" {
		t.Errorf("bytes = %q", evs[2].StreamBytes)
	}
	if evs[4].StreamSize != 0 {
		t.Errorf("nil body size = %d", evs[4].StreamSize)
	}
	if got := evs[4].StreamAttr.Section.Path; !reflect.DeepEqual(got, []uint16{1}) {
		t.Errorf("section path = %v", got)
	}
}

func TestNeedMoreDataResume(t *testing.T) {
	// Feeding one byte at a time exercises every resumable
	// under-run path.
	input := "* OK greeting\r\n" +
		"* 18 EXISTS\r\n" +
		"* LIST (\\Noselect) \"/\" {3}\r\nfoo\r\n" +
		"+ go ahead\r\n" +
		"a1 NO [TRYCREATE] no such mailbox\r\n"
	p := &Parser{}
	var evs []Event
	for i := 0; i < len(input); i++ {
		p.Buf.Feed([]byte{input[i]})
		for {
			ev, err := p.Next()
			if err == ErrNeedMoreData {
				break
			}
			if err != nil {
				t.Fatalf("byte %d: %v", i, err)
			}
			evs = append(evs, cloneEvent(ev))
		}
	}
	want := []EventKind{EventGreeting, EventUntagged, EventUntagged, EventContinuation, EventTagged}
	if got := eventKinds(evs); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if got := string(evs[2].Untagged.List.Mailbox); got != "foo" {
		t.Errorf("literal mailbox = %q", got)
	}
	if evs[4].Tagged.State.Code.Name != imapwire.CodeTryCreate {
		t.Errorf("code = %+v", evs[4].Tagged.State.Code)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ParseErrorKind
	}{
		{"bad untagged", "* WAT 3\r\n", ErrKindGrammarViolation},
		{"overflow", "* 99999999999 EXISTS\r\n", ErrKindIntegerOverflow},
		{"bad date", "* 1 FETCH (INTERNALDATE \"17-Bad-1996 02:44:25 -0700\")\r\n", ErrKindInvalidDate},
		{"bad day bound", "* 1 FETCH (INTERNALDATE \"40-Jul-1996 02:44:25 -0700\")\r\n", ErrKindInvalidDate},
		{"bare lf ok crlf broken", "* OK x\rY\r\n", ErrKindUnexpectedByte},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := &Parser{}
			greet(t, p)
			p.Buf.Feed([]byte(test.input))
			var perr *ParseError
			for {
				_, err := p.Next()
				if err == ErrNeedMoreData {
					t.Fatal("parser wants more data instead of failing")
				}
				if err != nil {
					var ok bool
					perr, ok = err.(*ParseError)
					if !ok {
						t.Fatalf("err = %v", err)
					}
					break
				}
			}
			if perr.Kind != test.kind {
				t.Errorf("kind = %v, want %v (err: %v)", perr.Kind, test.kind, perr)
			}
			// Fatal: the parser refuses further work.
			if _, err := p.Next(); err == ErrNeedMoreData || err == nil {
				t.Error("parser continued after fatal error")
			}
		})
	}
}

func TestLineLimit(t *testing.T) {
	p := &Parser{Limits: Limits{LineLimit: 1024}}
	greet(t, p)
	p.Buf.Feed([]byte("* OK " + strings.Repeat("y", 4096)))
	_, err := p.Next()
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("err = %v, want ParseError", err)
	}
	if perr.Kind != ErrKindLiteralTooLarge {
		t.Errorf("kind = %v", perr.Kind)
	}
}

func TestLFOnlyLineEndings(t *testing.T) {
	p := &Parser{}
	p.Buf.Feed([]byte("* OK hi\n* 3 EXISTS\na1 OK done\n"))
	var kinds []EventKind
	for {
		ev, err := p.Next()
		if err == ErrNeedMoreData {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		kinds = append(kinds, ev.Kind)
	}
	want := []EventKind{EventGreeting, EventUntagged, EventTagged}
	if !reflect.DeepEqual(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
}
