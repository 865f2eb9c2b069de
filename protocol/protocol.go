// Package protocol maps HTTP Content-Type negotiation onto the three
// Thrift wire encodings and constructs the corresponding thrift.TProtocol
// for a given transport.
//
// Content negotiation is what lets the same handler and the same client
// speak binary, compact, or JSON Thrift depending on who is asking:
// curl can POST a JSON-encoded args struct for debugging while a
// production client defaults to the denser compact protocol.
package protocol

import (
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
)

// Protocol identifies one of the three Thrift wire encodings recognised
// by a THTP endpoint.
type Protocol int

const (
	Binary Protocol = iota
	Compact
	JSON
)

// MIME types bound one-to-one to a Protocol.
const (
	MIMEBinary  = "application/vnd.apache.thrift.binary"
	MIMECompact = "application/vnd.apache.thrift.compact"
	MIMEJSON    = "application/vnd.apache.thrift.json"
)

// Default is used by the server whenever a request's Content-Type is
// absent or unrecognised, and is the client's protocol unless overridden
// (the client decodes a reply with an absent or unrecognised
// Content-Type using its own configured protocol). Compact is the only choice that lets the server always
// emit a well-formed error body, even for a request that arrived with no
// content-type at all.
const Default = Compact

var mimeToProtocol = map[string]Protocol{
	MIMEBinary:  Binary,
	MIMECompact: Compact,
	MIMEJSON:    JSON,
}

var protocolToMIME = map[Protocol]string{
	Binary:  MIMEBinary,
	Compact: MIMECompact,
	JSON:    MIMEJSON,
}

func (p Protocol) String() string {
	if name, ok := protocolToMIME[p]; ok {
		return name
	}
	return "unknown"
}

// ForContentType resolves a Content-Type header value to a Protocol. Only
// the first ";"-delimited token participates — "application/vnd.apache.thrift.json; charset=utf-8"
// resolves the same as the bare MIME type.
func ForContentType(contentType string) (Protocol, bool) {
	token := contentType
	if i := strings.IndexByte(token, ';'); i >= 0 {
		token = token[:i]
	}
	token = strings.TrimSpace(token)
	p, ok := mimeToProtocol[token]
	return p, ok
}

// ContentTypeFor returns the MIME type bound to p.
func ContentTypeFor(p Protocol) string {
	return protocolToMIME[p]
}

// New constructs the thrift.TProtocol for p bound to trans.
func New(p Protocol, trans thrift.TTransport) thrift.TProtocol {
	switch p {
	case Binary:
		return thrift.NewTBinaryProtocolTransport(trans)
	case JSON:
		return thrift.NewTJSONProtocol(trans)
	default:
		return thrift.NewTCompactProtocol(trans)
	}
}
