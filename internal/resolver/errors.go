// Package resolver resolves chart input references against collections and
// renders the values and secrets declared by a chart's UI schema.
package resolver

import "fmt"

type ErrorKind string

const (
	MissingInputValue      ErrorKind = "MissingInputValue"
	InputNotACollection    ErrorKind = "InputNotACollection"
	UnsupportedCollection  ErrorKind = "UnsupportedCollection"
	CollectionItemNotFound ErrorKind = "CollectionItemNotFound"
	UnknownProperty        ErrorKind = "UnknownProperty"
)

// Error is a failed reference resolution. During task execution it fails the
// task with the formatted message as the reason.
type Error struct {
	Kind       ErrorKind
	Input      string
	Collection string
	Property   string
	ItemID     string
}

func (e *Error) Error() string {
	switch e.Kind {
	case MissingInputValue:
		return fmt.Sprintf("MissingInputValue(%s)", e.Input)
	case InputNotACollection:
		return fmt.Sprintf("InputNotACollection(%s)", e.Input)
	case UnsupportedCollection:
		return fmt.Sprintf("UnsupportedCollection(%s)", e.Collection)
	case CollectionItemNotFound:
		return fmt.Sprintf("CollectionItemNotFound(%s, %s)", e.Collection, e.ItemID)
	case UnknownProperty:
		return fmt.Sprintf("UnknownProperty(%s, %s)", e.Property, e.Collection)
	}
	return string(e.Kind)
}
