// Package sources wires every fare-source adapter into a crawler
// registry. Each adapter lives in its own subpackage and registers
// under a stable snake_case name; the sputnik tenants share one client
// and register once per airline.
package sources

import (
	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/crawler"
	"github.com/skyfare/skyfare/sources/afklm"
	"github.com/skyfare/skyfare/sources/airbusan"
	"github.com/skyfare/skyfare/sources/airpremia"
	"github.com/skyfare/skyfare/sources/airseoul"
	"github.com/skyfare/skyfare/sources/amadeus"
	"github.com/skyfare/skyfare/sources/ana"
	"github.com/skyfare/skyfare/sources/cathay"
	"github.com/skyfare/skyfare/sources/eastarjet"
	"github.com/skyfare/skyfare/sources/emirates"
	"github.com/skyfare/skyfare/sources/evaair"
	"github.com/skyfare/skyfare/sources/google"
	"github.com/skyfare/skyfare/sources/hainan"
	"github.com/skyfare/skyfare/sources/jejuair"
	"github.com/skyfare/skyfare/sources/jinair"
	"github.com/skyfare/skyfare/sources/kiwi"
	"github.com/skyfare/skyfare/sources/lotpolish"
	"github.com/skyfare/skyfare/sources/lufthansa"
	"github.com/skyfare/skyfare/sources/malaysiaair"
	"github.com/skyfare/skyfare/sources/philippineair"
	"github.com/skyfare/skyfare/sources/qatar"
	"github.com/skyfare/skyfare/sources/singaporeair"
	"github.com/skyfare/skyfare/sources/sputnik"
	"github.com/skyfare/skyfare/sources/thaiairways"
	"github.com/skyfare/skyfare/sources/turkishair"
	"github.com/skyfare/skyfare/sources/twayair"
	"github.com/skyfare/skyfare/sources/vietnamair"
)

type constructor func(config.CrawlerConfig) (crawler.Crawler, error)

var adapters = map[string]constructor{
	afklm.Name:         afklm.New,
	airbusan.Name:      airbusan.New,
	airpremia.Name:     airpremia.New,
	airseoul.Name:      airseoul.New,
	amadeus.Name:       amadeus.New,
	ana.Name:           ana.New,
	cathay.Name:        cathay.New,
	eastarjet.Name:     eastarjet.New,
	emirates.Name:      emirates.New,
	evaair.Name:        evaair.New,
	google.Name:        google.New,
	hainan.Name:        hainan.New,
	jejuair.Name:       jejuair.New,
	jinair.Name:        jinair.New,
	kiwi.Name:          kiwi.New,
	lotpolish.Name:     lotpolish.New,
	lufthansa.Name:     lufthansa.New,
	malaysiaair.Name:   malaysiaair.New,
	philippineair.Name: philippineair.New,
	qatar.Name:         qatar.New,
	singaporeair.Name:  singaporeair.New,
	thaiairways.Name:   thaiairways.New,
	turkishair.Name:    turkishair.New,
	twayair.Name:       twayair.New,
	vietnamair.Name:    vietnamair.New,
}

// sputnikTenants are airlines served through the shared EveryMundo
// fares service rather than a dedicated adapter package.
var sputnikTenants = []sputnik.Tenant{
	sputnik.JapanAirlines,
	sputnik.AirNewZealand,
	sputnik.EthiopianAirlines,
}

// RegisterAll registers every adapter constructor against reg, closing
// the crawler configuration over each one. Construction stays lazy:
// transports are not dialed until the registry builds a source.
func RegisterAll(reg *crawler.Registry, cfg config.CrawlerConfig) {
	for name, build := range adapters {
		build := build
		reg.Register(name, func() (crawler.Crawler, error) {
			return build(cfg)
		})
	}
	for _, tenant := range sputnikTenants {
		tenant := tenant
		reg.Register(tenant.Name, func() (crawler.Crawler, error) {
			return sputnik.New(cfg, tenant)
		})
	}
}

// Names returns every registrable source name.
func Names() []string {
	names := make([]string, 0, len(adapters)+len(sputnikTenants))
	for name := range adapters {
		names = append(names, name)
	}
	for _, tenant := range sputnikTenants {
		names = append(names, tenant.Name)
	}
	return names
}
