package taskshare

import "fmt"

// Share is a single-slot value cell. The last Put wins and no history is kept.
type Share[T any] struct {
	name  string
	value T
	set   bool
}

func NewShare[T any](name string) *Share[T] {
	return &Share[T]{name: name}
}

// NewShareWith returns a Share already holding v.
func NewShareWith[T any](name string, v T) *Share[T] {
	return &Share[T]{name: name, value: v, set: true}
}

func (s *Share[T]) Name() string { return s.name }

// Put overwrites the current value unconditionally.
func (s *Share[T]) Put(v T) {
	s.value = v
	s.set = true
}

// Get returns the current value and whether it has ever been written.
func (s *Share[T]) Get() (T, bool) {
	return s.value, s.set
}

func (s *Share[T]) Describe() string {
	if !s.set {
		return fmt.Sprintf("share %-12s <unset>", s.name)
	}
	return fmt.Sprintf("share %-12s %v", s.name, s.value)
}
