package subscriber

import (
	"github.com/smallbiznis/waterworks/internal/subscriber/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscriber.service",
	fx.Provide(service.New),
)
