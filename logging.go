package odm

import "go.uber.org/zap"

var pkgLogger = zap.NewNop()

// SetLogger installs the logger used across the package. The default is a
// nop logger; passing nil is ignored.
func SetLogger(l *zap.Logger) {
	if l != nil {
		pkgLogger = l
	}
}

// Logger returns the installed logger.
func Logger() *zap.Logger { return pkgLogger }
