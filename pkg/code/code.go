// Package code defines the service-wide result code registry.
// Every API response and service error carries one of these codes.
package code

import (
	"fmt"
	"net/http"
)

type Code struct {
	code       int
	status     bool
	statusCode int
	msg        string
	data       interface{}
	details    []string

	haveData    bool
	haveDetails bool
}

var (
	errCodes  = map[int]string{}
	sussCodes = map[int]string{}
)

// NewError registers a failure code. Duplicate registration is a
// programming error and panics at init time.
func NewError(code int, statusCode int, msg string) *Code {
	if _, ok := errCodes[code]; ok {
		panic(fmt.Sprintf("error code %d already registered", code))
	}
	errCodes[code] = msg
	return &Code{code: code, status: false, statusCode: statusCode, msg: msg}
}

// NewSuss registers a success code.
func NewSuss(code int, msg string) *Code {
	if _, ok := sussCodes[code]; ok {
		panic(fmt.Sprintf("success code %d already registered", code))
	}
	sussCodes[code] = msg
	return &Code{code: code, status: true, statusCode: http.StatusOK, msg: msg}
}

// Clone returns a copy with transient fields reset, so the registered
// sentinel values are never mutated by WithData/WithDetails chains.
func (e *Code) Clone() *Code {
	return &Code{
		code:       e.code,
		status:     e.status,
		statusCode: e.statusCode,
		msg:        e.msg,
	}
}

// Error implements the error interface.
func (e *Code) Error() string {
	return e.msg
}

func (e *Code) Code() int {
	return e.code
}

func (e *Code) Status() bool {
	return e.status
}

func (e *Code) StatusCode() int {
	return e.statusCode
}

func (e *Code) Msg() string {
	return e.msg
}

func (e *Code) Data() interface{} {
	return e.data
}

func (e *Code) Details() []string {
	return e.details
}

func (e *Code) HaveData() bool {
	return e.haveData
}

func (e *Code) HaveDetails() bool {
	return e.haveDetails
}

// Is lets errors.Is match any clone against its registered sentinel.
func (e *Code) Is(target error) bool {
	t, ok := target.(*Code)
	if !ok {
		return false
	}
	return e.code == t.code && e.status == t.status
}

// WithData attaches a payload to a cloned code.
func (e *Code) WithData(data interface{}) *Code {
	c := e.Clone()
	c.data = data
	c.haveData = true
	return c
}

// WithDetails attaches human-readable detail lines to a cloned code.
func (e *Code) WithDetails(details ...string) *Code {
	c := e.Clone()
	c.details = details
	c.haveDetails = true
	return c
}

// WithMsgf overrides the message on a cloned code; the numeric code and
// HTTP status are preserved so the taxonomy stays stable.
func (e *Code) WithMsgf(format string, args ...interface{}) *Code {
	c := e.Clone()
	c.msg = fmt.Sprintf(format, args...)
	return c
}
