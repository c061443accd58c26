package logging

import "testing"

func TestNewLoggerWithService(t *testing.T) {
	l := NewLoggerWithService("glanker")
	entry := l.WithField("fid", int64(885622))
	if entry == nil {
		t.Fatalf("expected non-nil entry")
	}
}
