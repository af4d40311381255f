// File: internal/verify/range.go
package verify

import (
	"fmt"

	"github.com/chainsound/evmirror/pkg/utils"
)

// BlockRange is an inclusive pair of block numbers with From <= To.
type BlockRange struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// NewBlockRange builds a validated inclusive block range
func NewBlockRange(from, to uint64) (BlockRange, error) {
	if from > to {
		return BlockRange{}, utils.NewAppError(utils.ErrCodeValidation,
			"Invalid block range", fmt.Sprintf("from %d > to %d", from, to))
	}
	return BlockRange{From: from, To: to}, nil
}

// Length returns the number of blocks covered by the range
func (r BlockRange) Length() uint64 {
	return r.To - r.From + 1
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// Chunks splits the range into consecutive sub-ranges of at most step
// blocks each. The final chunk may be shorter. A step of zero is treated
// as one so a misconfigured step degrades to per-block queries instead of
// an infinite loop.
func (r BlockRange) Chunks(step uint64) []BlockRange {
	if step == 0 {
		step = 1
	}

	chunks := make([]BlockRange, 0, r.Length()/step+1)
	for cur := r.From; ; {
		end := cur + step - 1
		if end > r.To || end < cur { // overflow guard near MaxUint64
			end = r.To
		}
		chunks = append(chunks, BlockRange{From: cur, To: end})
		if end >= r.To {
			break
		}
		cur = end + 1
	}
	return chunks
}
