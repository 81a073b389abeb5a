package sqlxrepos

import (
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/pkl/core"
)

// where accumulates AND-ed conditions written with `?` bindvars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// build expands `IN (?)` slices and rebinds the query for exec's driver.
func build(exec core.DBExecutor, query string, args []interface{}) (string, []interface{}, error) {
	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, errors.Wrap(err, "expanding query")
	}
	return exec.Rebind(query), args, nil
}

func orderBy(ordering []core.DBOrdering, allowed map[string]bool, fallback string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if allowed[ord.Field] {
			list = append(list, ord.String())
		}
	}
	if len(list) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

// validUUIDs drops ids that cannot match a UUID column.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	return valid
}

func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
