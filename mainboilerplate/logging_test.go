package mainboilerplate

import (
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestInitLog(t *testing.T) {
	var level, formatter, out = log.GetLevel(), log.StandardLogger().Formatter, log.StandardLogger().Out
	defer func() {
		log.SetLevel(level)
		log.SetFormatter(formatter)
		log.SetOutput(out)
	}()

	InitLog(LogConfig{Level: "debug", Format: "json"})
	require.Equal(t, log.DebugLevel, log.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	InitLog(LogConfig{Level: "warn", Format: "color"})
	require.Equal(t, log.WarnLevel, log.GetLevel())
	require.True(t, log.StandardLogger().Formatter.(*log.TextFormatter).ForceColors)

	require.Panics(t, func() { InitLog(LogConfig{Level: "loud", Format: "text"}) })
}
