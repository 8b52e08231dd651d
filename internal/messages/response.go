package messages

import "github.com/dropDatabas3/clustertier/internal/chain"

// ResponseKind tags what a Response carries.
type ResponseKind uint8

const (
	ResponseSuccess ResponseKind = iota
	ResponseChain
	ResponseMapValue
	ResponseEntrySet
	ResponseReplace
)

// MapEntry is one entry of a state repository map.
type MapEntry struct {
	Key   []byte
	Value []byte
}

// Response is what the active hands back to the invoking client. Failures are
// returned as errors next to it, never encoded inside.
type Response struct {
	Kind     ResponseKind
	Chain    chain.Chain
	Value    []byte
	Found    bool
	Entries  []MapEntry
	Replaced bool
}

func Success() *Response { return &Response{Kind: ResponseSuccess} }

func ChainResponse(c chain.Chain) *Response { return &Response{Kind: ResponseChain, Chain: c} }

func MapValueResponse(v []byte, found bool) *Response {
	return &Response{Kind: ResponseMapValue, Value: v, Found: found}
}

func EntrySetResponse(entries []MapEntry) *Response {
	return &Response{Kind: ResponseEntrySet, Entries: entries}
}

func ReplaceResponse(replaced bool) *Response { return &Response{Kind: ResponseReplace, Replaced: replaced} }
