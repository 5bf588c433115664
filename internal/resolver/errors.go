package resolver

import "fmt"

type ResolutionError struct {
	Name     string
	Type     string
	NotFound bool
	Err      error
}

func (e *ResolutionError) Error() string {
	if e.NotFound {
		return fmt.Sprintf("lookup %s %s: no such host", e.Type, e.Name)
	}
	return fmt.Sprintf("lookup %s %s: %v", e.Type, e.Name, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}
