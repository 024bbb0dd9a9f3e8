// Package klog is the kernel's single logging entry point. It wraps
// logrus the way the teacher wraps fmt.Printf: one global, always
// reachable from any subsystem without threading a logger through every
// call. Serial/VGA text output is an external collaborator; klog only
// formats and ranks messages, it does not own the output device beyond
// an io.Writer.
package klog

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		FullTimestamp:    false,
	})
	l.SetLevel(logrus.DebugLevel)
	return l
}

// Fields is re-exported so callers don't need to import logrus directly.
type Fields = logrus.Fields

// SetOutput redirects kernel log output; the serial/VGA console driver
// wires itself in here at boot.
func SetOutput(w io.Writer) {
	log.SetOutput(w)
}

// nowFn projects boot-relative TSC ticks into wall-clock time once the
// time core (clock package) has established a correlation point. Before
// that it is nil and records carry no timestamp, matching the teacher's
// pre-RTC console output.
var nowFn func() time.Time

// SetClock installs the wall-clock projection used to timestamp records
// once component F's correlation point is available.
func SetClock(now func() time.Time) {
	nowFn = now
	if now != nil {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func entry() *logrus.Entry {
	e := logrus.NewEntry(log)
	if nowFn != nil {
		e = e.WithTime(nowFn())
	}
	return e
}

func Debug(args ...interface{}) { entry().Debug(args...) }
func Info(args ...interface{})  { entry().Info(args...) }
func Warn(args ...interface{})  { entry().Warn(args...) }
func Error(args ...interface{}) { entry().Error(args...) }

func Debugf(format string, args ...interface{}) { entry().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { entry().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { entry().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { entry().Errorf(format, args...) }

// WithFields starts a structured log record, e.g.
// klog.WithFields(klog.Fields{"pid": pid}).Info("exit")
func WithFields(f Fields) *logrus.Entry {
	return entry().WithFields(f)
}

// init keeps kernel boot output on stderr before a console driver attaches,
// consistent with the teacher printing straight to the default writer.
func init() {
	log.SetOutput(os.Stderr)
}
