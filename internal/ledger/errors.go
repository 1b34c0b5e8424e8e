package ledger

import (
	"fmt"
	"strings"
)

type Stage string

const (
	// StagePreUpdate means the violation was caught before anything was
	// written; the operation was aborted and rolled back.
	StagePreUpdate Stage = "pre-update"

	// StagePostUpdate means the violation was detected after the write
	// committed. The data is written but suspect; nothing was rolled back.
	StagePostUpdate Stage = "post-update"
)

// IntegrityError reports a dual-ledger consistency failure.
type IntegrityError struct {
	UserID     string
	Stage      Stage
	Mismatches []string
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("balance integrity violation for user %s (%s check)", e.UserID, e.Stage)
	if len(e.Mismatches) > 0 {
		msg += ": " + strings.Join(e.Mismatches, "; ")
	}
	return msg
}
