package imapwire

// FieldParam is one body parameter key/value pair. Parameters are
// kept as an ordered list rather than a map: servers are not
// required to sort them, and round-tripping preserves their order.
type FieldParam struct {
	Key   string
	Value string
}

// BodyFields is the field set common to every singlepart body.
//
//	body-fields = body-fld-param SP body-fld-id SP body-fld-desc SP
//	              body-fld-enc SP body-fld-octets
type BodyFields struct {
	Params      []FieldParam
	ID          NString
	Description NString
	Encoding    string
	Octets      uint32
}

// FieldDisposition is a Content-Disposition pair.
type FieldDisposition struct {
	Kind   string
	Params []FieldParam
}

// BodyExtension is the recursive body-extension value from
// RFC 3501: a number, a string, or a parenthesised list of further
// extensions. At most one of the three shapes is set; none is set
// for a NIL value.
type BodyExtension struct {
	Number *uint32
	Str    NString
	List   []BodyExtension
}

// BodyExtNum builds a number extension value.
func BodyExtNum(n uint32) BodyExtension {
	return BodyExtension{Number: &n}
}

// BodyStructure is the recursive BODYSTRUCTURE tree.
//
// A multipart body has Parts non-nil (one child per part) and
// MediaSubtype set; of Fields only Params (the multipart parameter
// list) is used, and MediaType, Envelope, Inner, and Lines are
// unused.
//
// A singlepart body has Parts nil. Kind message/rfc822 additionally
// carries the embedded Envelope, Inner structure, and line count;
// kind text carries the line count.
type BodyStructure struct {
	Parts        []BodyStructure
	MediaType    string
	MediaSubtype string
	Fields       BodyFields

	Envelope *Envelope      // message/rfc822 only
	Inner    *BodyStructure // message/rfc822 only
	Lines    uint32         // text/* and message/rfc822

	// Extension data, present only when the server sent it.
	MD5         NString // singlepart only
	Disposition *FieldDisposition
	Language    []string
	Location    NString
	Extensions  []BodyExtension
}

// IsMultipart reports whether the node is a multipart container.
func (bs *BodyStructure) IsMultipart() bool {
	return bs.Parts != nil
}

// HasExtensionData reports whether any extension field was sent.
func (bs *BodyStructure) HasExtensionData() bool {
	return bs.MD5 != nil || bs.Disposition != nil || bs.Language != nil ||
		bs.Location != nil || len(bs.Extensions) > 0
}

// Part walks the numeric part path (1-based at every level) and
// reports the addressed node, or nil when the path does not exist.
// An empty path addresses the whole structure.
func (bs *BodyStructure) Part(path []uint16) *BodyStructure {
	node := bs
	for _, n := range path {
		if n == 0 {
			return nil
		}
		switch {
		case node.IsMultipart():
			if int(n) > len(node.Parts) {
				return nil
			}
			node = &node.Parts[n-1]
		case node.Inner != nil:
			// Addressing into message/rfc822 descends through the
			// embedded message.
			node = node.Inner.Part([]uint16{n})
			if node == nil {
				return nil
			}
		case n == 1:
			// Part 1 of a non-multipart is the body itself.
		default:
			return nil
		}
	}
	return node
}
