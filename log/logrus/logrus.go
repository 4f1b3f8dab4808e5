package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/tablekit"
)

type Logger struct{ L *logrus.Logger }

var _ tablekit.Logger = Logger{}

func (l Logger) Debug(msg string, f tablekit.Fields) { l.L.WithFields(logrus.Fields(f)).Debug(msg) }
func (l Logger) Info(msg string, f tablekit.Fields)  { l.L.WithFields(logrus.Fields(f)).Info(msg) }
func (l Logger) Warn(msg string, f tablekit.Fields)  { l.L.WithFields(logrus.Fields(f)).Warn(msg) }
func (l Logger) Error(msg string, f tablekit.Fields) { l.L.WithFields(logrus.Fields(f)).Error(msg) }
