// Package mainboilerplate holds setup shared by permalaunch commands. Each
// piece is narrowly scoped, so callers take only what they need.
package mainboilerplate

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Version and BuildDate are populated at build time via -ldflags -X.
var (
	Version   = "development"
	BuildDate = "unknown"
)

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}

// ExitOnPanic is intended to be deferred by main. It recovers a panic raised
// through Must, which has already been logged, and exits with status 1.
// Other panics are re-raised.
func ExitOnPanic() {
	var r = recover()
	if r == nil {
		return
	} else if _, ok := r.(*log.Entry); !ok {
		panic(r)
	}
	printVersion()
	os.Exit(1)
}
