package config

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Address())
	assert.Equal(t, "sqlite", cfg.Store.Type)
	assert.Equal(t, 9, cfg.Browse.PageSize)
	assert.Equal(t, 4, cfg.Browse.CompactPageSize)
	assert.Equal(t, 15*time.Minute, cfg.Browse.SessionIdle)
	assert.Equal(t, "!", cfg.Discord.CommandPrefix)
	assert.False(t, cfg.Discord.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.Empty(t, cfg.Admin.APIKeys)
	assert.True(t, cfg.App.IsDevelopment())
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("DISCORD_TOKEN", "tok")
	t.Setenv("DISCORD_ADMIN_IDS", "1, 2,,3")
	t.Setenv("ADMIN_API_KEYS", "k1,k2")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Type)
	assert.True(t, cfg.Discord.Enabled())
	assert.Equal(t, []string{"1", "2", "3"}, cfg.Discord.AdminIDs)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Admin.APIKeys)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, "cache:6379", cfg.Redis.Address())
	assert.True(t, cfg.App.IsProduction())
}

func TestLoad_RejectsUnknownStore(t *testing.T) {
	t.Setenv("STORE_TYPE", "mongodb")
	_, err := Load()
	assert.Error(t, err)
}

func TestStoreDSNs(t *testing.T) {
	s := StoreConfig{
		MySQLHost: "db", MySQLPort: 3306, MySQLName: "market", MySQLUser: "bot", MySQLPassword: "p@ss",
		PostgresHost: "pg", PostgresPort: 5432, PostgresName: "market", PostgresUser: "bot", PostgresPassword: "pw", PostgresSSLMode: "disable",
	}

	parsed, err := mysql.ParseDSN(s.MySQLDSN())
	require.NoError(t, err)
	assert.Equal(t, "bot", parsed.User)
	assert.Equal(t, "p@ss", parsed.Passwd)
	assert.Equal(t, "db:3306", parsed.Addr)
	assert.Equal(t, "market", parsed.DBName)
	assert.True(t, parsed.ParseTime)

	assert.Equal(t, "postgres://bot:pw@pg:5432/market?sslmode=disable", s.PostgresDSN())
}
