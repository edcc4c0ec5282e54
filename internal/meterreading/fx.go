package meterreading

import (
	"github.com/smallbiznis/waterworks/internal/meterreading/service"
	"go.uber.org/fx"
)

var Module = fx.Module("meterreading.service",
	fx.Provide(service.New),
)
