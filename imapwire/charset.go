package imapwire

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// CanonicalCharset normalises a charset name for the SEARCH CHARSET
// argument, so "utf8", "UTF-8", and "csUTF8" all render the same
// wire bytes. Unknown names are an error; the caller decides whether
// to send them anyway.
func CanonicalCharset(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("imapwire: empty charset")
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil || enc == nil {
		// ianaindex knows US-ASCII and UTF-8 but reports no
		// encoding for a handful of aliases; keep the two names
		// the protocol requires working regardless.
		switch strings.ToUpper(name) {
		case "UTF-8", "UTF8":
			return "UTF-8", nil
		case "US-ASCII", "ASCII":
			return "US-ASCII", nil
		}
		return "", fmt.Errorf("imapwire: unknown charset %q", name)
	}
	canonical, err := ianaindex.IANA.Name(enc)
	if err != nil {
		return "", fmt.Errorf("imapwire: unknown charset %q", name)
	}
	return canonical, nil
}
