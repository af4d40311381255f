// File: internal/verify/comparator.go
package verify

import (
	"github.com/chainsound/evmirror/internal/models"
)

// Compare turns two event counts and a drift tolerance into a verdict.
// Pure: any two counts and any tolerance are valid inputs. A small
// tolerance absorbs relayer timing skew; drift beyond it is a genuine
// soundness concern.
func Compare(srcCount, dstCount, allowedDrift uint64) models.Verdict {
	drift := srcCount - dstCount
	if dstCount > srcCount {
		drift = dstCount - srcCount
	}

	return models.Verdict{
		SrcCount:     srcCount,
		DstCount:     dstCount,
		Drift:        drift,
		AllowedDrift: allowedDrift,
		Sound:        drift <= allowedDrift,
	}
}
