package server

import (
	"go.uber.org/fx"
)

// Module provides the mixing server.
var Module = fx.Module("server",
	fx.Provide(NewServer),
)
