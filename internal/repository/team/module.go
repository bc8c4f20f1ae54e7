package team

import "go.uber.org/fx"

// Module provides the team repository to Fx.
var Module = fx.Provide(NewRepository)
