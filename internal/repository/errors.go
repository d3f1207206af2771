package repository

import (
	"errors"

	"github.com/timecraft/timebank-backend/internal/repository/common"
)

// IsConflict сообщает, что операция проиграла конкурентную гонку и её
// можно безопасно повторить.
func IsConflict(err error) bool {
	return errors.Is(err, common.ErrConflict) || common.IsSerializationFailure(err)
}
