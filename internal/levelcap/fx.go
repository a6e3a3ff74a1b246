package levelcap

import (
	"github.com/smallbiznis/loyaltree/internal/levelcap/repository"
	"github.com/smallbiznis/loyaltree/internal/levelcap/service"
	"go.uber.org/fx"
)

var Module = fx.Module("levelcap.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
