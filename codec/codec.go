// Package codec encodes documents in their canonical dag-json form.
//
// Canonical bytes have sorted map keys and no insignificant whitespace, so the same
// document always hashes and signs to the same value.
package codec

import (
	"bytes"
	"fmt"

	"github.com/nasdf/quorum/node"

	"github.com/ipld/go-ipld-prime/codec/dagjson"
	"github.com/ipld/go-ipld-prime/node/basicnode"
)

// AuthorField is the document field holding the author record.
const AuthorField = "author"

// Marshal returns the canonical encoding of the given go value.
func Marshal(value any) ([]byte, error) {
	n, err := node.Build(value)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dagjson.Encode(n, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes JSON bytes into go values.
func Unmarshal(data []byte) (any, error) {
	nb := basicnode.Prototype.Any.NewBuilder()
	if err := dagjson.Decode(nb, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return node.Value(nb.Build())
}

// UnmarshalDocument decodes JSON bytes that must hold an object.
func UnmarshalDocument(data []byte) (map[string]any, error) {
	value, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	doc, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("document must be an object got %T", value)
	}
	return doc, nil
}

// SigningPayload returns the bytes an author signs: the canonical encoding of the
// document without its author field.
func SigningPayload(doc map[string]any) ([]byte, error) {
	unsigned := make(map[string]any, len(doc))
	for k, v := range doc {
		if k != AuthorField {
			unsigned[k] = v
		}
	}
	return Marshal(unsigned)
}
