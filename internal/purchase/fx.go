package purchase

import (
	"github.com/smallbiznis/loyaltree/internal/locker"
	"github.com/smallbiznis/loyaltree/internal/purchase/repository"
	"github.com/smallbiznis/loyaltree/internal/purchase/service"
	"go.uber.org/fx"
)

var Module = fx.Module("purchase.service",
	fx.Provide(locker.NewLocker),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
