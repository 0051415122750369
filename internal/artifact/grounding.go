// Package artifact composes task outputs into grounded, verifiable work
// products. Artifacts never exist without a grounding trail; the verification
// status is always derived from the reference count, never set directly.
package artifact

import (
	"time"

	"github.com/google/uuid"

	"sourcepilot/internal/types"
)

// GenerateArtifactID returns a unique artifact ID carrying the type prefix.
func GenerateArtifactID(artifactType types.ArtifactType) string {
	prefix := string(artifactType)
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	ts := time.Now().Format("20060102150405")
	return "ART-" + prefix + "-" + ts + "-" + uuid.NewString()[:8]
}

// GeneratePackID returns a unique artifact pack ID.
func GeneratePackID() string {
	ts := time.Now().Format("20060102150405")
	return "PACK-" + ts + "-" + uuid.NewString()[:8]
}

// MergeGrounding merges grounding reference lists, deduplicating by RefID.
// The first occurrence of each RefID wins; relative order is preserved.
func MergeGrounding(sources ...[]types.GroundingReference) []types.GroundingReference {
	seen := make(map[string]bool)
	merged := []types.GroundingReference{}

	for _, source := range sources {
		for _, ref := range source {
			if seen[ref.RefID] {
				continue
			}
			seen[ref.RefID] = true
			merged = append(merged, ref)
		}
	}
	return merged
}

// VerificationStatusFor derives the verification status from grounding:
// two or more references verify, one is partial, none is unverified.
func VerificationStatusFor(groundedIn []types.GroundingReference) types.VerificationStatus {
	switch {
	case len(groundedIn) >= 2:
		return types.Verified
	case len(groundedIn) == 1:
		return types.Partial
	}
	return types.Unverified
}
