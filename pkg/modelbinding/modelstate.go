package modelbinding

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultMaxAllowedErrors is the number of errors a ModelStateDictionary
// accepts before it records a single overflow error.
const DefaultMaxAllowedErrors = 200

// TooManyErrorsMessage is recorded at the empty key once the error limit is hit.
const TooManyErrorsMessage = "The maximum number of allowed model errors has been reached."

// ModelError is a single validation or conversion failure.
type ModelError struct {
	Message string
	Err     error
}

// ModelStateEntry holds the attempted value and errors for one key.
type ModelStateEntry struct {
	Key            string
	RawValue       any
	AttemptedValue string
	Errors         []ModelError
}

// ModelStateDictionary maps field paths to binding and validation errors.
// Keys compare case-insensitively. It is request scoped and not safe for
// concurrent use.
type ModelStateDictionary struct {
	MaxAllowedErrors int

	entries    map[string]*ModelStateEntry
	errorCount int
	overflowed bool
}

// NewModelStateDictionary creates an empty dictionary with the default limit.
func NewModelStateDictionary() *ModelStateDictionary {
	return &ModelStateDictionary{
		MaxAllowedErrors: DefaultMaxAllowedErrors,
		entries:          make(map[string]*ModelStateEntry),
	}
}

func (m *ModelStateDictionary) entry(key string) *ModelStateEntry {
	if m.entries == nil {
		m.entries = make(map[string]*ModelStateEntry)
	}
	norm := strings.ToLower(key)
	e, ok := m.entries[norm]
	if !ok {
		e = &ModelStateEntry{Key: key}
		m.entries[norm] = e
	}
	return e
}

// TryAddModelError records message at key. It returns false once the error
// limit has been reached; the overflow itself is recorded once at "".
func (m *ModelStateDictionary) TryAddModelError(key, message string) bool {
	return m.add(key, ModelError{Message: message})
}

// TryAddModelException records err at key under the same limit as
// TryAddModelError.
func (m *ModelStateDictionary) TryAddModelException(key string, err error) bool {
	if err == nil {
		return true
	}
	return m.add(key, ModelError{Err: err})
}

func (m *ModelStateDictionary) add(key string, me ModelError) bool {
	limit := m.MaxAllowedErrors
	if limit <= 0 {
		limit = DefaultMaxAllowedErrors
	}
	if m.errorCount >= limit-1 {
		m.recordOverflow()
		return false
	}
	e := m.entry(key)
	e.Errors = append(e.Errors, me)
	m.errorCount++
	return true
}

func (m *ModelStateDictionary) recordOverflow() {
	if m.overflowed {
		return
	}
	m.overflowed = true
	e := m.entry("")
	e.Errors = append(e.Errors, ModelError{Message: TooManyErrorsMessage})
	m.errorCount++
}

// HasReachedMaxErrors reports whether the overflow error has been recorded.
func (m *ModelStateDictionary) HasReachedMaxErrors() bool {
	return m.overflowed
}

// SetModelValue stores the raw and attempted values for key.
func (m *ModelStateDictionary) SetModelValue(key string, raw any, attempted string) {
	e := m.entry(key)
	e.RawValue = raw
	e.AttemptedValue = attempted
}

// Get returns the entry for key.
func (m *ModelStateDictionary) Get(key string) (*ModelStateEntry, bool) {
	e, ok := m.entries[strings.ToLower(key)]
	return e, ok
}

// Errors returns the errors recorded at key.
func (m *ModelStateDictionary) Errors(key string) []ModelError {
	if e, ok := m.Get(key); ok {
		return e.Errors
	}
	return nil
}

// IsValid reports whether no errors have been recorded.
func (m *ModelStateDictionary) IsValid() bool {
	return m.errorCount == 0
}

// ErrorCount returns the total number of recorded errors.
func (m *ModelStateDictionary) ErrorCount() int {
	return m.errorCount
}

// Keys returns the stored keys, as first written, in sorted order.
func (m *ModelStateDictionary) Keys() []string {
	keys := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		keys = append(keys, e.Key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of keys.
func (m *ModelStateDictionary) Len() int {
	return len(m.entries)
}

// Merge copies the entries of other into m, respecting m's error limit.
func (m *ModelStateDictionary) Merge(other *ModelStateDictionary) {
	if other == nil {
		return
	}
	for _, key := range other.Keys() {
		src, _ := other.Get(key)
		dst := m.entry(key)
		if src.RawValue != nil {
			dst.RawValue = src.RawValue
			dst.AttemptedValue = src.AttemptedValue
		}
		for _, me := range src.Errors {
			if !m.add(key, me) {
				return
			}
		}
	}
}

// String summarises the dictionary for logs.
func (m *ModelStateDictionary) String() string {
	return fmt.Sprintf("ModelState{keys=%d errors=%d}", len(m.entries), m.errorCount)
}
