package service

import (
	"agt_platform/internal/common"

	"github.com/google/uuid"
)

// requireID rejects ids that cannot name a row. Every primary key is a uuid, so a
// malformed one is reported the same way as an unknown one.
func requireID(kind, id string) error {
	if uuid.Validate(id) != nil {
		return common.Errorf("%s %q: %w", kind, id, common.ErrNotFound)
	}
	return nil
}
