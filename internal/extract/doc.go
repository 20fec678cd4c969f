// Package extract turns fetched HTML into title, text and metadata.
//
// A Chain tries its strategies in priority order and commits to the first one
// that returns non-empty text without faulting. The default order is the
// structured article heuristic, readability, then plain tag stripping. Snippet
// is the lighter title plus description pass used for metadata-only
// enrichment.
package extract
