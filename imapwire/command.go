package imapwire

// Command is a client command. Name selects which of the per-command
// field groups is meaningful, in the manner of the RFC 3501 command
// grammar.
type Command struct {
	Tag  string
	Name string

	// UID means the command is UID-prefixed and the server will
	// report UIDs instead of sequence numbers.
	// Name is one of: COPY, MOVE, FETCH, SEARCH, STORE, EXPUNGE.
	UID bool

	// Name is one of:
	//	SELECT, EXAMINE, CREATE, DELETE, SUBSCRIBE, UNSUBSCRIBE,
	//	STATUS, APPEND, COPY, MOVE, GETMETADATA, SETMETADATA,
	//	GETQUOTA, RESETKEY
	Mailbox MailboxName

	// Name is one of: SELECT, EXAMINE
	Condstore bool
	Qresync   QresyncParam

	// Name is one of: FETCH, STORE, COPY, MOVE, UID EXPUNGE
	Set NumSet

	Rename struct { // Name: RENAME
		OldMailbox MailboxName
		NewMailbox MailboxName
	}

	Params [][]byte // Name: ENABLE, ID

	Auth struct { // Name: LOGIN
		Username string
		Password string
	}

	Authenticate struct { // Name: AUTHENTICATE
		Mechanism string

		// InitialResponse is the SASL-IR payload. A non-nil empty
		// value encodes as "=".
		InitialResponse []byte
	}

	List List // Name is one of: LIST, LSUB

	Status struct { // Name: STATUS
		Items []StatusItem
	}

	FetchItems   []FetchAttr // Name: FETCH
	ChangedSince ModSeq      // Name: FETCH
	Vanished     bool        // Name: FETCH

	Store Store // Name: STORE

	Search Search // Name: SEARCH

	Metadata Metadata // Name: GETMETADATA, SETMETADATA

	URLAuth URLAuth // Name: GENURLAUTH, URLFETCH, RESETKEY
}

// List is the body of a LIST or LSUB command, including the
// RFC 5258 LIST-EXTENDED select and return options.
type List struct {
	ReferenceName []byte
	MailboxGlob   []byte

	SelectOptions []string // SUBSCRIBED, REMOTE, RECURSIVEMATCH, SPECIAL-USE
	ReturnOptions []string // SUBSCRIBED, CHILDREN, SPECIAL-USE, STATUS

	// ReturnExplicit forces "RETURN ()" even with no options.
	ReturnExplicit bool

	// StatusItems accompanies the STATUS return option
	// (RFC 5819 LIST-STATUS).
	StatusItems []StatusItem
}

// QresyncParam is the RFC 7162 QRESYNC select parameter.
type QresyncParam struct {
	UIDValidity      uint32
	ModSeq           ModSeq
	UIDs             []SeqRange
	KnownSeqNumMatch []SeqRange
	KnownUIDMatch    []SeqRange
}

// Store is the body of a STORE command.
type Store struct {
	Mode           StoreMode
	Silent         bool
	Flags          []Flag
	UnchangedSince ModSeq

	// HasUnchangedSince distinguishes UNCHANGEDSINCE 0 (which
	// RFC 7162 defines to fail every message) from no modifier.
	HasUnchangedSince bool
}

type StoreMode int

const (
	StoreUnknown StoreMode = iota
	StoreAdd               // +FLAGS
	StoreRemove            // -FLAGS
	StoreReplace           //  FLAGS
)

func (s StoreMode) String() string {
	switch s {
	case StoreAdd:
		return "+FLAGS"
	case StoreRemove:
		return "-FLAGS"
	case StoreReplace:
		return "FLAGS"
	}
	return "StoreUnknown"
}

type StatusItem int

const (
	StatusUnknownItem StatusItem = iota
	StatusMessages
	StatusRecent
	StatusUIDNext
	StatusUIDValidity
	StatusUnseen
	StatusSize
	StatusHighestModSeq
)

func (s StatusItem) String() string {
	switch s {
	case StatusMessages:
		return "MESSAGES"
	case StatusRecent:
		return "RECENT"
	case StatusUIDNext:
		return "UIDNEXT"
	case StatusUIDValidity:
		return "UIDVALIDITY"
	case StatusUnseen:
		return "UNSEEN"
	case StatusSize:
		return "SIZE"
	case StatusHighestModSeq:
		return "HIGHESTMODSEQ"
	}
	return "StatusUnknownItem"
}

// StatusItemFromName maps a wire atom to a StatusItem.
func StatusItemFromName(name []byte) StatusItem {
	switch string(name) {
	case "MESSAGES":
		return StatusMessages
	case "RECENT":
		return StatusRecent
	case "UIDNEXT":
		return StatusUIDNext
	case "UIDVALIDITY":
		return StatusUIDValidity
	case "UNSEEN":
		return StatusUnseen
	case "SIZE":
		return StatusSize
	case "HIGHESTMODSEQ":
		return StatusHighestModSeq
	}
	return StatusUnknownItem
}

// Metadata is the body of the RFC 5464 GETMETADATA and SETMETADATA
// commands. For GETMETADATA only Entries and the options are used;
// for SETMETADATA each entry pairs with a value (nil = remove).
type Metadata struct {
	Entries []string
	Values  []NString

	// GETMETADATA options.
	MaxSize  uint32
	HasDepth bool
	Depth    string // "0", "1", or "infinity"
}

// URLAuth carries the RFC 4467 command bodies.
type URLAuth struct {
	// GENURLAUTH: URL/mechanism pairs.
	Gen []URLAuthRump

	// URLFETCH: URLs to fetch.
	URLs []string

	// RESETKEY: mechanisms (with Command.Mailbox).
	Mechanisms []string
}

// URLAuthRump is one GENURLAUTH argument pair.
type URLAuthRump struct {
	URL       string
	Mechanism string // typically "INTERNAL"
}

// FetchAttr is one fetch-att in a FETCH command, and names the
// attribute of a streamed FETCH response literal.
type FetchAttr struct {
	Type FetchAttrType
	Peek bool // BODY.PEEK, BINARY.PEEK

	// Section addresses BODY[...] and BINARY[...] attributes.
	// HasSection distinguishes "BODY[]" from the bare "BODY"
	// structure request.
	Section    SectionSpecifier
	HasSection bool

	// Partial is the <start.count> octet range.
	Partial struct {
		Start  uint32
		Length uint32
	}
	HasPartial bool
}

// SectionSpecifier addresses a message part.
type SectionSpecifier struct {
	Path    []uint16
	Name    string // one of: HEADER, HEADER.FIELDS, HEADER.FIELDS.NOT, TEXT, MIME
	Headers [][]byte
}

type FetchAttrType string

const (
	FetchUnknown = FetchAttrType("")

	// Macro items, only valid alone at top level.
	FetchAll  = FetchAttrType("ALL")
	FetchFull = FetchAttrType("FULL")
	FetchFast = FetchAttrType("FAST")

	FetchEnvelope      = FetchAttrType("ENVELOPE")
	FetchFlags         = FetchAttrType("FLAGS")
	FetchInternalDate  = FetchAttrType("INTERNALDATE")
	FetchRFC822        = FetchAttrType("RFC822")
	FetchRFC822Header  = FetchAttrType("RFC822.HEADER")
	FetchRFC822Size    = FetchAttrType("RFC822.SIZE")
	FetchRFC822Text    = FetchAttrType("RFC822.TEXT")
	FetchUID           = FetchAttrType("UID")
	FetchBodyStructure = FetchAttrType("BODYSTRUCTURE")
	FetchBody          = FetchAttrType("BODY")
	FetchModSeq        = FetchAttrType("MODSEQ")

	FetchBinary     = FetchAttrType("BINARY")      // RFC 3516
	FetchBinarySize = FetchAttrType("BINARY.SIZE") // RFC 3516

	FetchGmailMsgID    = FetchAttrType("X-GM-MSGID")
	FetchGmailThreadID = FetchAttrType("X-GM-THRID")
	FetchGmailLabels   = FetchAttrType("X-GM-LABELS")
)

// StreamPartKind selects the shape of a StreamPart.
type StreamPartKind int

const (
	PartKindUnknown StreamPartKind = iota

	// PartCommand carries a complete tagged command.
	PartCommand

	// APPEND sub-parts, in protocol order. A multi-append issues
	// BeginMessage/EndMessage (or the catenate group) repeatedly
	// before Finish.
	PartAppendStart   // tag + mailbox
	PartBeginMessage  // append options + literal size
	PartMessageBytes  // a slice of the message literal
	PartEndMessage    //
	PartBeginCatenate // append options
	PartCatenateURL   // one CATENATE URL part
	PartCatenateBegin // one CATENATE TEXT literal, with size
	PartCatenateBytes // a slice of that literal
	PartCatenateEnd   //
	PartEndCatenate   //
	PartAppendFinish  // terminates the APPEND command line

	// PartIdleDone ends an IDLE.
	PartIdleDone

	// PartContinuationResponse answers a server challenge during
	// AUTHENTICATE. Bytes holds the raw payload; the encoder
	// base64-encodes it. A nil Bytes sends the empty response.
	PartContinuationResponse

	// PartBytes passes raw bytes through untouched.
	PartBytes
)

// AppendOptions carries the optional APPEND arguments.
type AppendOptions struct {
	Flags []Flag

	// InternalDate zero means no date-time argument.
	InternalDate InternalDate
}

// StreamPart is one element of the outbound command stream. Kind
// selects which fields are read.
type StreamPart struct {
	Kind StreamPartKind

	Command *Command // PartCommand

	Tag     string      // PartAppendStart
	Mailbox MailboxName // PartAppendStart

	Options AppendOptions // PartBeginMessage, PartBeginCatenate
	Size    uint32        // PartBeginMessage, PartCatenateBegin

	Bytes []byte // PartMessageBytes, PartCatenateBytes, PartContinuationResponse, PartBytes

	URL string // PartCatenateURL
}

// CommandPart wraps a tagged command as a stream part.
func CommandPart(cmd *Command) StreamPart {
	return StreamPart{Kind: PartCommand, Command: cmd}
}
