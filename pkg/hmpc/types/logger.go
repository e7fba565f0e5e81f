package types

// Logger is the logging surface every hmpc component depends on. It is
// satisfied directly by *logrus.Logger (see pkg/hmpc/logging), so a
// caller who already wires logrus through their process can hand their
// own instance in instead of the default.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})
	Panic(v ...interface{})
	Panicf(format string, v ...interface{})
}
