package logging_test

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/usnistgov/tofino-tm/core/logging"
	"github.com/usnistgov/tofino-tm/core/testenv"
)

func TestParseLevel(t *testing.T) {
	assert, _ := testenv.MakeAR(t)
	for input, want := range map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"V":     zapcore.DebugLevel,
		"DEBUG": zapcore.DebugLevel,
		"W":     zapcore.WarnLevel,
		"E":     zapcore.ErrorLevel,
		"N":     zapcore.DPanicLevel,
		"x":     zapcore.InfoLevel,
	} {
		_, lvl := logging.ParseLevel(input)
		assert.Equal(want, lvl, input)
	}
}

func TestPkgLevel(t *testing.T) {
	assert, require := testenv.MakeAR(t)

	t.Setenv("TMDRV_LOG_LevelsTestA", "W")
	pl := logging.GetLevel("LevelsTestA")
	require.NotNil(pl)
	assert.Equal(byte('W'), pl.Level())
	assert.Same(pl, logging.FindLevel("LevelsTestA"))

	logger := logging.New("LevelsTestA")
	assert.False(logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(logger.Core().Enabled(zapcore.WarnLevel))

	pl.SetLevel("D")
	assert.Equal(byte('D'), pl.Level())
	assert.True(logger.Core().Enabled(zapcore.DebugLevel))

	logging.SetAll("bogus")
	assert.Equal(byte('I'), pl.Level())
	assert.False(logger.Core().Enabled(zapcore.DebugLevel))

	assert.Nil(logging.FindLevel("LevelsTestNone"))
	assert.Contains(logging.ListLevels(), pl)
}
