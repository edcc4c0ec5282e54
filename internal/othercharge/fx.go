package othercharge

import (
	"github.com/smallbiznis/waterworks/internal/othercharge/service"
	"go.uber.org/fx"
)

var Module = fx.Module("othercharge.service",
	fx.Provide(service.New),
)
