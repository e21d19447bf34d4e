// Package search turns noisy, human-entered search text into canonical
// projections and matches them against candidate and request records.
//
// # Normalization
//
// Normalize produces three projections of the raw query:
//
//   - Text: punctuation to spaces, whitespace collapsed, accents folded,
//     lower-cased, restricted to [a-z0-9 -]
//   - Digits: every non-digit removed (phones, national IDs)
//   - Code: upper-cased with all whitespace removed (business codes)
//
// # Matching
//
// Match applies, in order:
//
//  1. Code fast path: a query whose Code projection matches the exact-code
//     pattern is compared by equality against stored codes only
//  2. Token AND: every non stop-word token must occur in the folded name
//  3. Digits: the Digits projection must occur in a stored phone or ID
//  4. Fallback: raw substring test when no tokens and no digits survive
//
// Results are ordered alphabetically by folded display name.
package search
