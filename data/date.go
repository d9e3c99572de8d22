package data

import (
	"fmt"
	"time"
)

// Date is a calendar day, encoded in JSON as "2006-01-02".
type Date time.Time

const dateFormat = "2006-01-02"

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid date format: %s", b)
	}
	b = b[1 : len(b)-1]
	t, err := time.Parse(dateFormat, string(b))
	if err != nil {
		return err
	}
	*d = Date(t)
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(d).Format(dateFormat) + `"`), nil
}

func (d Date) IsZero() bool {
	return time.Time(d).IsZero()
}

func (d Date) String() string {
	return time.Time(d).Format(dateFormat)
}
