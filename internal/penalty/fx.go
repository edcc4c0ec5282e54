package penalty

import (
	"github.com/smallbiznis/waterworks/internal/penalty/service"
	"go.uber.org/fx"
)

var Module = fx.Module("penalty.service",
	fx.Provide(service.New),
)
