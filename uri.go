package lsifq

import "github.com/jward/lsifq/internal/uris"

// URITransform maps client URIs to database URIs and back.
type URITransform = uris.Transformer

// IdentityURIs leaves URIs unchanged.
func IdentityURIs() URITransform { return uris.Identity{} }

// PrefixURIs serves an index built under databaseRoot to clients that see
// the same tree under clientRoot.
func PrefixURIs(clientRoot, databaseRoot string) URITransform {
	return uris.NewPrefix(clientRoot, databaseRoot)
}

// SchemeURIs exposes database URIs of databaseScheme under clientScheme,
// for example lsif:///work/a.ts for file:///work/a.ts.
func SchemeURIs(clientScheme, databaseScheme string) URITransform {
	return uris.NewScheme(clientScheme, databaseScheme)
}

// ChainURIs applies transforms in order towards the database and in
// reverse order towards the client.
func ChainURIs(ts ...URITransform) URITransform {
	return uris.Chain(ts)
}
