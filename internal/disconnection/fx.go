package disconnection

import (
	"github.com/smallbiznis/waterworks/internal/disconnection/service"
	"go.uber.org/fx"
)

var Module = fx.Module("disconnection.service",
	fx.Provide(service.New),
)
