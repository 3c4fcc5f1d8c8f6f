package service

import (
	postgresrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/postgres"
	redisrepo "github.com/eloisazulbaran123-dev/tuboletapass/internal/repository/redis"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/catalog"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/identity"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/inventory"
	"github.com/eloisazulbaran123-dev/tuboletapass/internal/service/orders"
)

type Services struct {
	Catalog   *catalog.Service
	Inventory *inventory.Service
	Orders    *orders.Service
	Identity  *identity.Service
}

type Config struct {
	Catalog  catalog.Config
	Orders   orders.Config
	Identity identity.Config
}

func NewServices(
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pubsub *redisrepo.OrdersPubSub,
	cfg Config,
) *Services {
	ledger := inventory.New(store.Inventory())

	return &Services{
		Catalog:   catalog.New(store.Catalog(), ledger, cache, cfg.Catalog),
		Inventory: ledger,
		Orders:    orders.New(store.Orders(), ledger, cache, pubsub, cfg.Orders),
		Identity:  identity.New(store.Admins(), cfg.Identity),
	}
}
