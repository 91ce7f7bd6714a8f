// Package catalog hands completed job outputs to the archival catalog
// (a CKAN-compatible API).
//
// It locates the relevant result files inside a downloaded asset tree,
// resolves the catalog package associated with the request's situation and
// uploads one resource per result file. Authentication uses an OAuth
// password grant against the platform identity provider, with tokens cached
// until shortly before expiry.
package catalog
