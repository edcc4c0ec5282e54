package rate

import (
	"github.com/smallbiznis/waterworks/internal/rate/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rate.service",
	fx.Provide(service.New),
)
