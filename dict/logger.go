package dict

import "fmt"

// Logger is the tracing hook dictserver.Service writes through (it logs the
// connection on Init), adapted from the teacher driver's query logger. The
// lookup, iteration and transaction functions in this package do not log.
type Logger interface {
	Print(v ...any)
	Printf(format string, v ...any)
	Println(v ...any)
}

type StdoutLogger struct{}

func (s StdoutLogger) Print(v ...any)                 { fmt.Print(v...) }
func (s StdoutLogger) Printf(format string, v ...any) { fmt.Printf(format, v...) }
func (s StdoutLogger) Println(v ...any)               { fmt.Println(v...) }

type NullLogger struct{}

func (n NullLogger) Print(v ...any)                 {}
func (n NullLogger) Printf(format string, v ...any) {}
func (n NullLogger) Println(v ...any)               {}
