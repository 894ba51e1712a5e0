package config

import "go.uber.org/fx"

// Module provides *Config to the application graph.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
