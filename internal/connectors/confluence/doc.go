// Package confluence implements the Confluence connector.
//
// Enumeration runs a CQL label search, groups the hits by space in
// first-seen order and expands each labelled page with its descendants
// (pre-order, up to depth 4). Fetch reads the page's storage-format body,
// version metadata and attachment listing.
package confluence
