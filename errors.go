package vfsglue

import (
	"golang.org/x/sys/unix"
)

// Errno is the domain-level error kind returned by every operation in this
// package. The zero value is EOK (success), so a freshly zeroed Errno
// reads as "no error".
type Errno unix.Errno

// Error kinds wrapped from golang.org/x/sys/unix rather than a real kernel
// errno surface: there is no kernel on the other end of this package's
// transport, only the errno domain the values themselves describe.
const (
	EOK           Errno = 0
	ENoEntry      Errno = Errno(unix.ENOENT)
	ENotDirectory Errno = Errno(unix.ENOTDIR)
	EIsDirectory  Errno = Errno(unix.EISDIR)
	EAlreadyExist Errno = Errno(unix.EEXIST)
	EInvalidArg   Errno = Errno(unix.EINVAL)
	ENameTooLong  Errno = Errno(unix.ENAMETOOLONG)
	ERange        Errno = Errno(unix.ERANGE)
	ENoSpace      Errno = Errno(unix.ENOSPC)
	ENoMemory     Errno = Errno(unix.ENOMEM)
	EBusy         Errno = Errno(unix.EBUSY)
	EBadFd        Errno = Errno(unix.EBADF)
	ENotSupported Errno = Errno(unix.ENOTSUP)
	EOverflow     Errno = Errno(unix.EOVERFLOW)
)

func (e Errno) Error() string {
	if e == EOK {
		return "EOK"
	}
	return unix.Errno(e).Error()
}

// IsOK reports whether e represents success.
func (e Errno) IsOK() bool {
	return e == EOK
}

// CombineRC implements a first-error-wins propagation policy: if a is
// EOK, b's result stands; otherwise a's failure takes precedence.
func CombineRC(a, b Errno) Errno {
	if a == EOK {
		return b
	}
	return a
}

// errnoFromErr adapts a plain Go error (as returned by a Backend method's
// signature before it is translated into an Errno reply) into our domain.
// Backends are expected to return Errno directly; this exists only for the
// narrow case of wrapping errors surfaced by library code we call into
// (e.g. transport I/O).
func errnoFromErr(err error) Errno {
	if err == nil {
		return EOK
	}
	if errno, ok := err.(Errno); ok {
		return errno
	}
	return EIO
}

// EIO reports transport-level failures that have no cleaner domain
// mapping, such as a backend method returning a bare error instead of
// an Errno.
const EIO Errno = Errno(unix.EIO)
