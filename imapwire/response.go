package imapwire

// CondStateKind is the status of a conditional state response.
type CondStateKind string

const (
	StateOK      = CondStateKind("OK")
	StateNO      = CondStateKind("NO")
	StateBAD     = CondStateKind("BAD")
	StateBYE     = CondStateKind("BYE")
	StatePreauth = CondStateKind("PREAUTH")
)

// RespCode is the bracketed response code inside a resp-text.
//
//	resp-text = ["[" resp-text-code "]" SP] text
//
// Name is the canonical upper-case code atom. Unknown codes carry
// their raw argument text in Text.
type RespCode struct {
	Name string

	Caps   []string   // CAPABILITY
	Flags  []Flag     // PERMANENTFLAGS
	Num    uint32     // UIDNEXT, UIDVALIDITY, UNSEEN
	ModSeq ModSeq     // HIGHESTMODSEQ
	Seqs   []SeqRange // MODIFIED

	// APPENDUID and COPYUID (RFC 4315).
	UIDValidity uint32
	SrcUIDs     []SeqRange // COPYUID only
	DstUIDs     []SeqRange

	Text string // unknown code arguments, verbatim
}

// Response-code names the parser canonicalises.
const (
	CodeAlert          = "ALERT"
	CodeAppendUID      = "APPENDUID"
	CodeCapability     = "CAPABILITY"
	CodeClosed         = "CLOSED"
	CodeCopyUID        = "COPYUID"
	CodeHighestModSeq  = "HIGHESTMODSEQ"
	CodeModified       = "MODIFIED"
	CodeNoModSeq       = "NOMODSEQ"
	CodeParse          = "PARSE"
	CodePermanentFlags = "PERMANENTFLAGS"
	CodeReadOnly       = "READ-ONLY"
	CodeReadWrite      = "READ-WRITE"
	CodeTryCreate      = "TRYCREATE"
	CodeUIDNext        = "UIDNEXT"
	CodeUIDNotSticky   = "UIDNOTSTICKY"
	CodeUIDValidity    = "UIDVALIDITY"
	CodeUnseen         = "UNSEEN"
)

// CondState is the decoded body of an OK/NO/BAD/BYE/PREAUTH line.
type CondState struct {
	Kind CondStateKind
	Code *RespCode
	Text string
}

// Greeting is the first line of a connection.
type Greeting struct {
	// Kind is OK, PREAUTH, or BYE.
	State CondState
}

// TaggedResponse completes the command with the matching tag.
type TaggedResponse struct {
	Tag   string
	State CondState // Kind is OK, NO, or BAD
}

// ContinuationRequest is a server "+" line. The text may be a SASL
// challenge; Base64Decoded is set when the text decoded cleanly.
type ContinuationRequest struct {
	Text          string
	Base64Decoded []byte
}

// UntaggedType names the variant of an untagged response.
type UntaggedType string

const (
	UntaggedCond       = UntaggedType("COND") // OK/NO/BAD/BYE/PREAUTH
	UntaggedCapability = UntaggedType("CAPABILITY")
	UntaggedEnabled    = UntaggedType("ENABLED")
	UntaggedID         = UntaggedType("ID")
	UntaggedFlags      = UntaggedType("FLAGS")
	UntaggedList       = UntaggedType("LIST")
	UntaggedLsub       = UntaggedType("LSUB")
	UntaggedSearch     = UntaggedType("SEARCH")
	UntaggedESearch    = UntaggedType("ESEARCH")
	UntaggedStatus     = UntaggedType("STATUS")
	UntaggedExists     = UntaggedType("EXISTS")
	UntaggedRecent     = UntaggedType("RECENT")
	UntaggedExpunge    = UntaggedType("EXPUNGE")
	UntaggedVanished   = UntaggedType("VANISHED")
	UntaggedNamespace  = UntaggedType("NAMESPACE")
	UntaggedQuota      = UntaggedType("QUOTA")
	UntaggedQuotaRoot  = UntaggedType("QUOTAROOT")
	UntaggedMetadata   = UntaggedType("METADATA")
)

// UntaggedResponse is any non-FETCH untagged response, fully
// decoded. Type selects which field group is meaningful.
type UntaggedResponse struct {
	Type UntaggedType

	Cond CondState // UntaggedCond

	Num uint32 // EXISTS, RECENT, EXPUNGE

	Caps   []string // CAPABILITY, ENABLED
	Params [][]byte // ID: alternating keys and values, value nil for NIL

	Flags []Flag // FLAGS

	List ListItem // LIST, LSUB

	Search struct { // SEARCH
		Nums   []uint32
		ModSeq ModSeq // RFC 7162 "(MODSEQ n)" suffix
	}

	ESearch ESearchData // ESEARCH

	Status StatusData // STATUS

	Vanished struct { // VANISHED
		Earlier bool
		UIDs    []SeqRange
	}

	Namespace NamespaceData // NAMESPACE

	Quota QuotaData // QUOTA, QUOTAROOT

	Metadata MetadataData // METADATA
}

// ListItem is one LIST or LSUB line.
type ListItem struct {
	Attrs     []Flag
	Separator byte // 0 for NIL
	Mailbox   MailboxName

	// Extended holds RFC 5258 extended data items, as raw
	// key/value text.
	Extended []FieldParam
}

// Path pairs the mailbox with its advertised separator.
func (li *ListItem) Path() MailboxPath {
	return MailboxPath{Name: li.Mailbox, Separator: li.Separator}
}

// ESearchData is an RFC 4731 / RFC 7162 ESEARCH response.
type ESearchData struct {
	Tag string // correlator, empty when absent
	UID bool

	HasMin, HasMax, HasCount bool
	Min, Max, Count          uint32
	All                      []SeqRange
	ModSeq                   ModSeq

	// Extensions carries unrecognised return data as name/value
	// text pairs, preserving forward compatibility.
	Extensions []FieldParam
}

// StatusData is one STATUS line.
type StatusData struct {
	Mailbox MailboxName

	HasMessages, HasRecent, HasUIDNext, HasUIDValidity, HasUnseen, HasSize bool

	Messages    uint32
	Recent      uint32
	UIDNext     uint32
	UIDValidity uint32
	Unseen      uint32
	Size        uint64

	HighestModSeq ModSeq // zero when absent
}

// NamespaceItem is one namespace prefix/separator pair.
type NamespaceItem struct {
	Prefix    []byte
	Separator byte // 0 for NIL

	// Extensions are RFC 2342 namespace response extensions.
	Extensions []FieldParam
}

// NamespaceData is the three namespace lists.
type NamespaceData struct {
	Personal []NamespaceItem
	Other    []NamespaceItem
	Shared   []NamespaceItem
}

// QuotaData is a QUOTA or QUOTAROOT line (RFC 2087).
type QuotaData struct {
	Root      []byte
	Mailbox   MailboxName // QUOTAROOT
	Roots     [][]byte    // QUOTAROOT
	Resources []QuotaResource
}

type QuotaResource struct {
	Name  string
	Usage uint64
	Limit uint64
}

// MetadataData is a METADATA line (RFC 5464).
type MetadataData struct {
	Mailbox MailboxName

	// Entries without values (unsolicited change notice) have a
	// nil Values; otherwise the slices pair up.
	Entries []string
	Values  []NString
}

// MessageAttrType names a fully-decoded FETCH attribute.
type MessageAttrType string

const (
	AttrFlags         = MessageAttrType("FLAGS")
	AttrUID           = MessageAttrType("UID")
	AttrModSeq        = MessageAttrType("MODSEQ")
	AttrInternalDate  = MessageAttrType("INTERNALDATE")
	AttrRFC822Size    = MessageAttrType("RFC822.SIZE")
	AttrEnvelope      = MessageAttrType("ENVELOPE")
	AttrBodyStructure = MessageAttrType("BODYSTRUCTURE")
	AttrBody          = MessageAttrType("BODY") // non-extensible BODY form
	AttrBinarySize    = MessageAttrType("BINARY.SIZE")
	AttrGmailMsgID    = MessageAttrType("X-GM-MSGID")
	AttrGmailThreadID = MessageAttrType("X-GM-THRID")
	AttrGmailLabels   = MessageAttrType("X-GM-LABELS")
)

// MessageAttr is one fully-decoded FETCH attribute. Large body
// literals never appear here; they are streamed (see the parser's
// fetch events).
type MessageAttr struct {
	Type MessageAttrType

	Flags        []Flag         // FLAGS
	Num          uint64         // UID, RFC822.SIZE, X-GM-MSGID, X-GM-THRID
	ModSeq       ModSeq         // MODSEQ
	InternalDate InternalDate   // INTERNALDATE
	Envelope     *Envelope      // ENVELOPE
	Body         *BodyStructure // BODYSTRUCTURE, BODY
	Labels       []string       // X-GM-LABELS

	// Section identifies which BINARY.SIZE part the Num belongs
	// to.
	Section SectionSpecifier
}
