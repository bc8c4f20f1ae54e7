package team

import "go.uber.org/fx"

// Module provides the team service to Fx.
var Module = fx.Provide(NewService)
