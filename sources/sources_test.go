package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfare/skyfare/config"
	"github.com/skyfare/skyfare/crawler"
)

func TestRegisterAll(t *testing.T) {
	reg := crawler.NewRegistry()
	RegisterAll(reg, config.TestConfig().CrawlerConfig)

	names := reg.Names()
	require.GreaterOrEqual(t, len(names), 25, "every adapter and sputnik tenant registers")
	assert.ElementsMatch(t, Names(), names)

	for _, name := range []string{"google_flights", "turkish_airlines", "jal", "air_premia"} {
		assert.True(t, reg.Has(name), name)
	}
}

func TestRegistryBuildsLazily(t *testing.T) {
	reg := crawler.NewRegistry()
	RegisterAll(reg, config.TestConfig().CrawlerConfig)

	c, err := reg.Build("kiwi")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "kiwi", c.Name())
	assert.NoError(t, c.Close())
}

func TestRegistryBuildFailsWithoutCredentials(t *testing.T) {
	cfg := config.TestConfig().CrawlerConfig
	cfg.KiwiAPIKey = ""

	reg := crawler.NewRegistry()
	RegisterAll(reg, cfg)

	_, err := reg.Build("kiwi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CRAWLER_KIWI_API_KEY")
}

func TestRegistryUnknownSource(t *testing.T) {
	reg := crawler.NewRegistry()
	RegisterAll(reg, config.TestConfig().CrawlerConfig)

	_, err := reg.Build("aeroflot")
	assert.Error(t, err)
}
