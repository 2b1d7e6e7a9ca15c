// Package mockinspect implements the mock inspection session engine: a pure,
// event-sourced state machine that sequences questions against a frozen topic
// catalog, enforces interaction ceilings, drafts candidate findings, and
// records a replayable, hash-chained event log. The engine performs no I/O;
// persistence and write serialization belong to the inspection orchestrator.
package mockinspect

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/gowebpki/jcs"
)

// ContentHash returns a sha256 hex digest of the RFC 8785 canonical JSON form
// of v. Because JCS sorts object keys, semantically identical structures hash
// identically regardless of field insertion order. Array order is preserved,
// so callers must sort any collection whose order is not meaningful (see
// SortedIDs) before hashing.
func ContentHash(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("mockinspect.ContentHash: marshal: %w", err)
	}

	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("mockinspect.ContentHash: canonicalize: %w", err)
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// SortedIDs returns a lexicographically sorted copy of ids. Used to normalize
// identifier lists whose order carries no meaning before they enter a hash,
// so hash equality reflects content equality rather than incidental ordering.
func SortedIDs(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// CatalogFingerprint hashes a catalog's identity plus its topic ids and
// versions. Topic ids are sorted first: two catalogs with the same topics in
// different authoring order fingerprint identically.
func CatalogFingerprint(catalogID string, catalogVersion int, topicIDs []string) (string, error) {
	return ContentHash(map[string]any{
		"catalog_id":      catalogID,
		"catalog_version": catalogVersion,
		"topic_ids":       SortedIDs(topicIDs),
	})
}
