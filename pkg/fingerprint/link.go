package fingerprint

import (
	"github.com/3leaps/goferry/pkg/host"
)

// Link records the provenance relation for every copied artifact: the
// durable entry gains both the source and destination builds, and each
// build's fingerprint summary gains the name→digest pairs.
//
// Summaries are merged, never replaced; other steps of the same build may
// have contributed entries already. Each artifact's entry is committed
// atomically, so an interruption leaves no half-written link.
func Link(store *Store, records []host.ArtifactRecord, src, dst *host.Build) error {
	if len(records) == 0 {
		return nil
	}
	pairs := make(map[string]string, len(records))
	for _, r := range records {
		if _, err := store.Associate(r.Name, r.Digest, src, dst); err != nil {
			return err
		}
		pairs[r.Name] = r.Digest
	}
	src.MergeSummary(pairs)
	dst.MergeSummary(pairs)
	return nil
}
