package telegram

import (
	"fmt"

	"github.com/rs/zerolog"
)

// telegoLogger routes the library's own logging into zerolog. Debug output
// includes request bodies, so it only shows at trace level.
type telegoLogger struct {
	l zerolog.Logger
}

func (t telegoLogger) Debugf(format string, args ...any) {
	t.l.Trace().Msg(fmt.Sprintf(format, args...))
}

func (t telegoLogger) Errorf(format string, args ...any) {
	t.l.Error().Msg(fmt.Sprintf(format, args...))
}
