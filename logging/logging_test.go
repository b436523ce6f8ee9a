package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	for _, test := range []struct {
		name     string
		logLevel string
		noDebug  string
		want     zerolog.Level
	}{
		{name: "default", want: zerolog.DebugLevel},
		{name: "no debug", noDebug: "1", want: zerolog.InfoLevel},
		{name: "explicit level wins", logLevel: "warn", noDebug: "1", want: zerolog.WarnLevel},
		{name: "unknown level is ignored", logLevel: "loud", want: zerolog.DebugLevel},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", test.logLevel)
			t.Setenv("NO_DEBUG", test.noDebug)

			assert.Equal(t, test.want, Level())
		})
	}
}
