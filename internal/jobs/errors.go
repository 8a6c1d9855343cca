package jobs

import (
	"fmt"
	"strings"
)

type ErrUnknownFamily struct {
	error
}

func NewErrUnknownFamily(name string) *ErrUnknownFamily {
	names := make([]string, 0, len(vocabularies))
	for _, f := range Families() {
		names = append(names, string(f))
	}
	return &ErrUnknownFamily{fmt.Errorf("unknown job family %q, expected one of: %s", name, strings.Join(names, ", "))}
}
