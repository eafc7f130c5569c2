package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const unlimitedLiteral = "unlimited"

// Limit is either a finite non-negative ceiling or Unlimited.
// The zero value is Finite(0).
type Limit struct {
	n         int64
	unlimited bool
}

// Unlimited compares greater than every finite limit.
var Unlimited = Limit{unlimited: true}

// Finite returns a finite limit; negative input is clamped to zero.
func Finite(n int64) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{n: n}
}

func (l Limit) IsUnlimited() bool { return l.unlimited }

// Value returns the finite ceiling. It is meaningless for Unlimited.
func (l Limit) Value() int64 { return l.n }

// Compare returns -1, 0 or 1.
func (l Limit) Compare(o Limit) int {
	switch {
	case l.unlimited && o.unlimited:
		return 0
	case l.unlimited:
		return 1
	case o.unlimited:
		return -1
	case l.n < o.n:
		return -1
	case l.n > o.n:
		return 1
	}
	return 0
}

func (l Limit) Greater(o Limit) bool { return l.Compare(o) > 0 }

// Sub returns max(0, l-used); Unlimited stays Unlimited.
func (l Limit) Sub(used int64) Limit {
	if l.unlimited {
		return l
	}
	return Finite(l.n - used)
}

// Covers reports whether amount units fit inside the limit.
func (l Limit) Covers(amount int64) bool {
	return l.unlimited || l.n >= amount
}

func (l Limit) String() string {
	if l.unlimited {
		return unlimitedLiteral
	}
	return strconv.FormatInt(l.n, 10)
}

func parseLimit(s string) (Limit, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == unlimitedLiteral {
		return Unlimited, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return Limit{}, fmt.Errorf("invalid limit %q", s)
	}
	return Finite(n), nil
}

func (l Limit) MarshalJSON() ([]byte, error) {
	if l.unlimited {
		return json.Marshal(unlimitedLiteral)
	}
	return json.Marshal(l.n)
}

func (l *Limit) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := parseLimit(s)
		if err != nil {
			return err
		}
		*l = v
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("invalid limit %s", string(b))
	}
	if n < 0 {
		return fmt.Errorf("invalid limit %d", n)
	}
	*l = Finite(n)
	return nil
}

func (l *Limit) UnmarshalYAML(node *yaml.Node) error {
	v, err := parseLimit(node.Value)
	if err != nil {
		return err
	}
	*l = v
	return nil
}
