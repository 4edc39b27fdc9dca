package repository

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// uuidArray encodes ids for use with "= ANY($n::uuid[])".
func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

// notFound maps sql.ErrNoRows to ErrNotFound and leaves other errors as is.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// likePattern wraps s for a case-insensitive substring match, escaping the
// LIKE metacharacters it contains.
func likePattern(s string) string {
	escaped := make([]rune, 0, len(s)+2)
	escaped = append(escaped, '%')
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			escaped = append(escaped, '\\')
		}
		escaped = append(escaped, r)
	}
	return string(append(escaped, '%'))
}
