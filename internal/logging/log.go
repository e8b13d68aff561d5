// Package logging is a thin wrapper over the standard library "log"
// package: every line is prefixed with a bracketed component tag, the
// way cmd/cliairmonitor/main.go prefixes its own output with [MAIN],
// [BRIDGE], [NATS]. The teacher pulls in no structured-logging
// dependency, so this package doesn't either.
package logging

import (
	"fmt"
	"log"
	"os"
)

var std = log.New(os.Stdout, "", log.LstdFlags)

// ComponentLogger prefixes every message with [Name].
type ComponentLogger struct {
	name string
}

// WithComponent returns a logger that tags every line with [name].
func WithComponent(name string) *ComponentLogger {
	return &ComponentLogger{name: name}
}

func (c *ComponentLogger) tag(msg string) string {
	return fmt.Sprintf("[%s] %s", c.name, msg)
}

func (c *ComponentLogger) Info(msg string) {
	std.Println(c.tag(msg))
}

func (c *ComponentLogger) Infof(format string, args ...interface{}) {
	std.Println(c.tag(fmt.Sprintf(format, args...)))
}

func (c *ComponentLogger) Warn(msg string) {
	std.Println(c.tag("WARN: " + msg))
}

func (c *ComponentLogger) Warnf(format string, args ...interface{}) {
	std.Println(c.tag("WARN: " + fmt.Sprintf(format, args...)))
}

func (c *ComponentLogger) Error(msg string) {
	std.Println(c.tag("ERROR: " + msg))
}

func (c *ComponentLogger) Errorf(format string, args ...interface{}) {
	std.Println(c.tag("ERROR: " + fmt.Sprintf(format, args...)))
}

func (c *ComponentLogger) Fatalf(format string, args ...interface{}) {
	std.Fatalln(c.tag("FATAL: " + fmt.Sprintf(format, args...)))
}
