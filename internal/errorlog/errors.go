package errorlog

import "errors"

// StackError is implemented by errors that carry their own stack trace
// text, captured at the point they were constructed (skill handlers
// are expected to return these rather than bare fmt.Errorf values when
// they want a meaningful fingerprint).
type StackError interface {
	error
	Stack() string
}

// NamedError is implemented by errors that want to report a specific
// error-name token (e.g. "TypeError", "SyntaxError") distinct from
// their Go type name, matching the taxonomy the classification cascade
// expects.
type NamedError interface {
	error
	Name() string
}

// WithStack wraps err with a fixed stack string, satisfying StackError.
type WithStack struct {
	Err   error
	Trace string
}

func (w *WithStack) Error() string { return w.Err.Error() }
func (w *WithStack) Unwrap() error { return w.Err }
func (w *WithStack) Stack() string { return w.Trace }

// Named wraps err with an explicit error-name token, satisfying
// NamedError.
type Named struct {
	Err      error
	NameText string
}

func (n *Named) Error() string { return n.Err.Error() }
func (n *Named) Unwrap() error { return n.Err }
func (n *Named) Name() string  { return n.NameText }

func errorNameAndMessage(err error) (name string, message string) {
	if err == nil {
		return "", ""
	}
	message = err.Error()
	var ne NamedError
	if errors.As(err, &ne) {
		name = ne.Name()
	}
	return name, message
}

func stackOf(err error) string {
	if err == nil {
		return ""
	}
	var se StackError
	if errors.As(err, &se) {
		return se.Stack()
	}
	return ""
}
