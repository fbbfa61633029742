package vfsglue

import "github.com/sirupsen/logrus"

// debugLog writes a debug-level line if logger is non-nil, mirroring the
// teacher's nil-safe debugLogger convention (connection.go's debugLog).
func debugLog(logger *logrus.Logger, fields logrus.Fields, format string, args ...interface{}) {
	if logger == nil {
		return
	}
	logger.WithFields(fields).Debugf(format, args...)
}

// errorLog writes an error-level line if logger is non-nil, unless rc is
// one this package considers routine noise (see shouldLogError).
func errorLog(logger *logrus.Logger, fields logrus.Fields, method Method, rc Errno) {
	if logger == nil || rc == EOK || !shouldLogError(method, rc) {
		return
	}
	logger.WithFields(fields).WithError(rc).Errorf("%s -> error", method)
}

// shouldLogError mirrors Connection.shouldLogError in the teacher: some
// non-EOK results are a totally normal part of operation and would just
// spook an operator watching error-level logs.
func shouldLogError(method Method, rc Errno) bool {
	switch {
	case method == MethodLookup && rc == ENoEntry:
		// It is routine for a lookup to miss — e.g. before creating a file.
		return false
	case !method.isKnown() && rc == ENotSupported:
		// Don't bother the operator with methods we intentionally don't
		// support, mirroring the teacher's *unknownOp* case.
		return false
	}
	return true
}
