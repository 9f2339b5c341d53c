package docstore

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/xdbsoft/docstore/api"
)

//IsNotFound returns whether the error cause is that something was not found
func IsNotFound(err error) bool {
	var rerr *api.ReaderError
	if errors.As(err, &rerr) {
		return true
	}
	nfe, ok := errors.Cause(err).(NotFound)
	return ok && nfe.IsNotFound()
}

//NotFound is the interface that wraps the IsNotFound nethod
type NotFound interface {
	IsNotFound() bool
}

//IsNotAuthorized returns whether the error cause is that there was an attempt to perform a not authorized action
func IsNotAuthorized(err error) bool {
	nae, ok := errors.Cause(err).(NotAuthorized)
	return ok && nae.IsNotAuthorized()
}

//NotAuthorized is the interface that wraps the IsNotAuthorized nethod
type NotAuthorized interface {
	IsNotAuthorized() bool
}

//IsBadRequest returns whether the error cause is that the provided inputs are incorrect
func IsBadRequest(err error) bool {
	nae, ok := errors.Cause(err).(BadRequest)
	return ok && nae.IsBadRequest()
}

//BadRequest is the interface that wraps the IsBadRequest method
type BadRequest interface {
	IsBadRequest() bool
}

// IsMethodNotAllowed returns whether the request method is not supported by
// the route.
func IsMethodNotAllowed(err error) bool {
	e, ok := errors.Cause(err).(MethodNotAllowed)
	return ok && e.IsMethodNotAllowed()
}

type MethodNotAllowed interface {
	IsMethodNotAllowed() bool
}

// IsLengthRequired returns whether a body was sent without a usable length.
func IsLengthRequired(err error) bool {
	e, ok := errors.Cause(err).(LengthRequired)
	return ok && e.IsLengthRequired()
}

type LengthRequired interface {
	IsLengthRequired() bool
}

// isWriterError returns whether persisting a database failed.
func isWriterError(err error) bool {
	var werr *api.WriterError
	return errors.As(err, &werr)
}

// invalidRequestParameterError reports malformed path semantics, such as a
// document identifier where none is allowed.
type invalidRequestParameterError string

func (err invalidRequestParameterError) IsBadRequest() bool {
	return true
}
func (err invalidRequestParameterError) Error() string {
	return string(err)
}

// invalidBodyError reports a payload that cannot be parsed or conflicts
// with stored data.
type invalidBodyError string

func (err invalidBodyError) IsBadRequest() bool {
	return true
}
func (err invalidBodyError) Error() string {
	return string(err)
}

type invalidRequestMethodError string

func (err invalidRequestMethodError) IsMethodNotAllowed() bool {
	return true
}
func (err invalidRequestMethodError) Error() string {
	return fmt.Sprintf("Request method %q not valid", string(err))
}

type missingLengthHeaderError struct{}

func (err missingLengthHeaderError) IsLengthRequired() bool {
	return true
}
func (err missingLengthHeaderError) Error() string {
	return "Could not detect the Content-Length"
}

type notAuthorizedError struct {
	Target api.ObjectRef
}

func (err notAuthorizedError) Error() string {
	return fmt.Sprintf("Not authorized to access '%s'", err.Target)
}

func (err notAuthorizedError) IsNotAuthorized() bool {
	return true
}

type notFoundError struct {
	Target api.ObjectRef
}

func (err notFoundError) Error() string {
	if err.Target.IsDocument() {
		return fmt.Sprintf("Document with identifier %q not found in database %q", err.Target.ID(), err.Target.Database())
	}
	return fmt.Sprintf("Target not found: '%s'", err.Target)
}

func (err notFoundError) IsNotFound() bool {
	return true
}
