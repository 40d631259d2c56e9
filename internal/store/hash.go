package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash computes the document hash recorded alongside a document: a
// digest of its URI and text, so identical text under two URIs stays
// distinct.
func ContentHash(uri string, content []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "uri:%s\n", uri)
	fmt.Fprintf(h, "len:%d\n", len(content))
	h.Write(content)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// BlobHash computes the key of a serialized blob for a document. The URI is
// folded in so two documents never share a blob row.
func BlobHash(uri string, blob []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "uri:%s\n", uri)
	fmt.Fprintf(h, "blob:%d\n", len(blob))
	h.Write(blob)
	return fmt.Sprintf("%x", h.Sum(nil))
}
