// Package uris normalizes document URIs and maps them between the form a
// client uses and the form stored in a database.
package uris

import (
	"strings"

	"go.lsp.dev/uri"
)

// Transformer maps URIs across the database boundary. ToDatabase is applied
// to every incoming URI; FromDatabase to every URI returned to a caller.
type Transformer interface {
	ToDatabase(u string) string
	FromDatabase(u string) string
}

// Identity leaves URIs untouched.
type Identity struct{}

func (Identity) ToDatabase(u string) string   { return u }
func (Identity) FromDatabase(u string) string { return u }

// Normalize canonicalizes file URIs so that differently escaped spellings
// of the same path compare equal. Other URIs are returned as given.
func Normalize(s string) string {
	if !strings.HasPrefix(s, uri.FileScheme+":") {
		return s
	}
	u, err := uri.Parse(s)
	if err != nil {
		return s
	}
	return string(u)
}

// FromPath returns the file URI of a filesystem path. Inputs that already
// carry a scheme are normalized instead.
func FromPath(p string) string {
	if strings.Contains(p, "://") {
		return Normalize(p)
	}
	return string(uri.File(p))
}

// Prefix rewrites a client root prefix to a database root prefix.
type Prefix struct {
	Client   string
	Database string
}

// NewPrefix returns a transformer that swaps clientRoot for databaseRoot.
func NewPrefix(clientRoot, databaseRoot string) Prefix {
	return Prefix{Client: withSlash(clientRoot), Database: withSlash(databaseRoot)}
}

func (p Prefix) ToDatabase(u string) string   { return swapPrefix(u, p.Client, p.Database) }
func (p Prefix) FromDatabase(u string) string { return swapPrefix(u, p.Database, p.Client) }

// Scheme exposes database file URIs under a virtual scheme, for example
// lsif:///src/a.ts for file:///src/a.ts.
type Scheme struct {
	Client   string
	Database string
}

// NewScheme returns a transformer between a client scheme and a database scheme.
func NewScheme(client, database string) Scheme {
	return Scheme{Client: client, Database: database}
}

func (s Scheme) ToDatabase(u string) string {
	return swapPrefix(u, s.Client+":", s.Database+":")
}

func (s Scheme) FromDatabase(u string) string {
	return swapPrefix(u, s.Database+":", s.Client+":")
}

// Chain applies transformers in order towards the database and in reverse
// order on the way back.
type Chain []Transformer

func (c Chain) ToDatabase(u string) string {
	for _, t := range c {
		u = t.ToDatabase(u)
	}
	return u
}

func (c Chain) FromDatabase(u string) string {
	for i := len(c) - 1; i >= 0; i-- {
		u = c[i].FromDatabase(u)
	}
	return u
}

// HasRoot reports whether u lies under root. Roots match on path segment
// boundaries, so file:///a/bc is not under file:///a/b.
func HasRoot(u, root string) bool {
	if u == strings.TrimSuffix(root, "/") {
		return true
	}
	return strings.HasPrefix(u, withSlash(root))
}

func swapPrefix(u, from, to string) string {
	if strings.HasPrefix(u, from) {
		return to + u[len(from):]
	}
	if strings.HasSuffix(from, "/") && u == strings.TrimSuffix(from, "/") {
		return strings.TrimSuffix(to, "/")
	}
	return u
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}
