package enums

import (
	"fmt"
	"strings"
)

// ChangeOp is the row-level operation reported by the change feed.
type ChangeOp string

const (
	ChangeOpInsert ChangeOp = "INSERT"
	ChangeOpUpdate ChangeOp = "UPDATE"
	ChangeOpDelete ChangeOp = "DELETE"
)

// ParseChangeOp accepts the operation in any letter case.
func ParseChangeOp(value string) (ChangeOp, error) {
	switch op := ChangeOp(strings.ToUpper(strings.TrimSpace(value))); op {
	case ChangeOpInsert, ChangeOpUpdate, ChangeOpDelete:
		return op, nil
	}
	return "", fmt.Errorf("invalid change op %q", value)
}
