package kadmlogrus_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadmin-go/kadmin/pkg/kadmin"
	"github.com/kadmin-go/kadmin/plugin/kadmlogrus"
)

func TestLoggerLogsAtMatchingLevel(t *testing.T) {
	lr, hook := test.NewNullLogger()
	lr.SetLevel(logrus.DebugLevel)
	l := kadmlogrus.New(lr)

	assert.Equal(t, kadmin.LogLevelDebug, l.Level())

	l.Log(kadmin.LogLevelInfo, "test message", "test-key", "test-val")

	require.Equal(t, 1, len(hook.Entries))
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "test message", entry.Message)
	assert.Equal(t, "test-val", entry.Data["test-key"])

	hook.Reset()
	assert.Nil(t, hook.LastEntry())
}

func TestOnCallCompletedLogsErrorLevelOnFailure(t *testing.T) {
	lr, hook := test.NewNullLogger()
	lr.SetLevel(logrus.DebugLevel)
	l := kadmlogrus.New(lr)

	l.OnCallCompleted("create-topics", 2, 15*time.Millisecond, errors.New("boom"))

	require.Equal(t, 1, len(hook.Entries))
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "create-topics", entry.Data["call"])
	assert.Equal(t, 2, entry.Data["tries"])

	hook.Reset()
	l.OnCallCompleted("create-topics", 1, 5*time.Millisecond, nil)
	require.Equal(t, 1, len(hook.Entries))
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}

func TestOnCallAssignedLabelsSeedNodes(t *testing.T) {
	lr, hook := test.NewNullLogger()
	lr.SetLevel(logrus.DebugLevel)
	l := kadmlogrus.New(lr)

	l.OnCallAssigned("list-topics", -1)

	require.Equal(t, 1, len(hook.Entries))
	node, ok := hook.LastEntry().Data["node"].(string)
	require.True(t, ok)
	assert.Regexp(t, `^seed_\d+$`, node)
}
