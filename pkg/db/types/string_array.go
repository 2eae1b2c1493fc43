package dbtypes

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringArray maps a Postgres text[] column. Drivers without array support
// store the same literal as text. It is never NULL: nil scans and writes as
// an empty array.
type StringArray []string

func (a *StringArray) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	if arr == nil {
		arr = pq.StringArray{}
	}
	*a = StringArray(arr)
	return nil
}

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "{}", nil
	}
	return pq.StringArray(a).Value()
}
