package dcmd

import (
	"fmt"

	"emperror.dev/errors"
)

// UserError is implemented by errors caused by bad input. They are shown to the user as is.
type UserError interface {
	IsUserError() bool
}

// IsUserError reports whether err, or any error it wraps, is a user error
func IsUserError(err error) bool {
	var ue UserError
	return errors.As(err, &ue) && ue.IsUserError()
}

type userError string

func (e userError) Error() string     { return string(e) }
func (e userError) IsUserError() bool { return true }

func NewSimpleUserError(args ...interface{}) error {
	return userError(fmt.Sprint(args...))
}

// badPart is the shape of the arg errors, Part is the word of input that failed
type badPart struct {
	Part string
}

type InvalidInt badPart

func (e *InvalidInt) Error() string     { return fmt.Sprintf("%q is not a whole number", e.Part) }
func (e *InvalidInt) IsUserError() bool { return true }

type ImproperMention badPart

func (e *ImproperMention) Error() string     { return fmt.Sprintf("%q is not a proper mention", e.Part) }
func (e *ImproperMention) IsUserError() bool { return true }

type UserNotFound badPart

func (e *UserNotFound) Error() string     { return fmt.Sprintf("Couldn't find the user %q", e.Part) }
func (e *UserNotFound) IsUserError() bool { return true }

type ChannelNotFound badPart

func (e *ChannelNotFound) Error() string     { return fmt.Sprintf("Couldn't find the channel %q", e.Part) }
func (e *ChannelNotFound) IsUserError() bool { return true }

type RoleNotFound badPart

func (e *RoleNotFound) Error() string     { return fmt.Sprintf("Couldn't find the role %q", e.Part) }
func (e *RoleNotFound) IsUserError() bool { return true }

// OutOfRangeError is returned for numbers outside [Min, Max]
type OutOfRangeError struct {
	ArgName       string
	Min, Max, Got int64
}

func (e *OutOfRangeError) Error() string {
	if e.Got < e.Min {
		return fmt.Sprintf("%s can't be smaller than %d", e.ArgName, e.Min)
	}
	return fmt.Sprintf("%s can't be bigger than %d", e.ArgName, e.Max)
}

func (e *OutOfRangeError) IsUserError() bool { return true }
