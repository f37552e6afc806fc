package connreg

import (
	"time"

	"github.com/ridgelinegames/corehost/internal/wire"
)

func pingFrame() wire.Ping {
	return wire.Ping{Type: "ping", Timestamp: time.Now().UnixMilli()}
}
