package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"SERVER_ADDRESS", "ENVIRONMENT", "DYNAMODB_TABLE", "ITEM_ID_INDEX", "PATH_INDEX", "USE_MEMORY_STORE"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "FileSystem", cfg.DynamoDBTable)
	assert.Equal(t, "ItemIdIndex", cfg.ItemIDIndexName)
	assert.Equal(t, "PathIndex", cfg.PathIndexName)
	assert.False(t, cfg.UseMemoryStore)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":9090")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("DYNAMODB_TABLE", "MyTable")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("USE_MEMORY_STORE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddress)
	assert.Equal(t, "MyTable", cfg.DynamoDBTable)
	assert.True(t, cfg.IsProduction())
}

func TestValidateProduction(t *testing.T) {
	base := Config{
		Environment:   "production",
		DynamoDBTable: "FileSystem",
		JWTSecret:     "secret",
	}
	require.NoError(t, base.Validate())

	noSecret := base
	noSecret.JWTSecret = ""
	assert.Error(t, noSecret.Validate())

	noTable := base
	noTable.DynamoDBTable = ""
	assert.Error(t, noTable.Validate())

	memStore := base
	memStore.UseMemoryStore = true
	assert.Error(t, memStore.Validate())
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("FLAG", "true")
	assert.True(t, getEnvBool("FLAG", false))

	t.Setenv("FLAG", "1")
	assert.True(t, getEnvBool("FLAG", false))

	t.Setenv("FLAG", "no")
	assert.False(t, getEnvBool("FLAG", true))

	assert.True(t, getEnvBool("UNSET_FLAG", true))
}
