package qfilter

import qerrors "github.com/nonibytes/qfilter/qfilter/errors"

type Error = qerrors.Error
type ErrorKind = qerrors.ErrorKind

const (
	ErrParse       = qerrors.ErrParse
	ErrOperator    = qerrors.ErrOperator
	ErrValueParse  = qerrors.ErrValueParse
	ErrIO          = qerrors.ErrIO
	ErrSQL         = qerrors.ErrSQL
	ErrNotFound    = qerrors.ErrNotFound
	ErrUnsupported = qerrors.ErrUnsupported
	ErrCursor      = qerrors.ErrCursor
	ErrDocument    = qerrors.ErrDocument
)

var ErrFilter = qerrors.ErrFilter

func IsKind(err error, kind ErrorKind) bool { return qerrors.IsKind(err, kind) }
func IsClient(err error) bool               { return qerrors.IsClient(err) }
