package modelbinding

import (
	"encoding/xml"
	"sort"
)

// DefaultErrorMessage replaces errors that carry no client-safe message.
const DefaultErrorMessage = "The input was not valid."

// SerializableError is the client-facing field → messages payload.
type SerializableError map[string][]string

// NewSerializableError builds the payload from the keys of ms that carry
// errors. Exceptions are reported with a generic message so internal
// details never reach the client.
func NewSerializableError(ms *ModelStateDictionary) SerializableError {
	out := SerializableError{}
	if ms == nil {
		return out
	}
	for _, key := range ms.Keys() {
		errs := ms.Errors(key)
		if len(errs) == 0 {
			continue
		}
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			if e.Message != "" {
				msgs = append(msgs, e.Message)
			} else {
				msgs = append(msgs, DefaultErrorMessage)
			}
		}
		out[key] = msgs
	}
	return out
}

type xmlModelError struct {
	Key     string `xml:"key,attr"`
	Message string `xml:",chardata"`
}

// MarshalXML writes <SerializableError><Error key="...">msg</Error>...</SerializableError>
// with keys sorted.
func (s SerializableError) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "SerializableError"}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, msg := range s[k] {
			if err := e.EncodeElement(xmlModelError{Key: k, Message: msg}, xml.StartElement{Name: xml.Name{Local: "Error"}}); err != nil {
				return err
			}
		}
	}
	return e.EncodeToken(start.End())
}
