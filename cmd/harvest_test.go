package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadpipe/internal/config"
	"github.com/sells-group/leadpipe/internal/harvest"
)

func TestBuildRegistry_OnlyConfiguredSources(t *testing.T) {
	registry, err := buildRegistry(config.HarvestConfig{
		Notices: harvest.NoticesConfig{URL: "https://county.example/notices", County: "Spokane"},
		Probate: harvest.ProbateConfig{URL: "https://courts.example/probate", County: "Spokane"},
	})
	require.NoError(t, err)

	assert.NotNil(t, registry.Get("county_notices"))
	assert.NotNil(t, registry.Get("probate_docket"))
	assert.Nil(t, registry.Get("county_taxroll"))
	assert.Len(t, registry.All(), 2)
}

func TestBuildRegistry_Empty(t *testing.T) {
	registry, err := buildRegistry(config.HarvestConfig{})
	require.NoError(t, err)
	assert.Empty(t, registry.All())
}
