// Package errors holds cleanup helpers that report failures instead of
// dropping them.
package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// DeferClose closes closer and logs a failure as a warning.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}

// DeferRollback rolls back tx and logs a failure as a warning.
// sql.ErrTxDone is expected after a successful commit and is ignored.
func DeferRollback(logger zerolog.Logger, tx *sql.Tx) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Warn().Err(err).Msg("transaction rollback failed")
	}
}

// CloseInto closes closer and joins a failure into *errp. Use it in defer
// statements of functions whose result depends on the close succeeding,
// such as file writes.
func CloseInto(errp *error, closer io.Closer, what string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		*errp = errors.Join(*errp, fmt.Errorf("failed to close %s: %w", what, err))
	}
}
