package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "8080", cfg.Server.Port)
	require.Equal(t, 15*time.Second, cfg.Engine.SweepInterval)
	require.Equal(t, 10*time.Second, cfg.Engine.AntiSnipeWindow)
	require.Equal(t, 2*time.Second, cfg.Engine.BidCommitTimeout)
	require.Equal(t, 10*time.Second, cfg.Engine.DispositionTimeout)
	require.Equal(t, 10*time.Second, cfg.Cache.TTL)
	require.Equal(t, 1024, cfg.WebSocket.ReadBufferSize)
	require.NotEmpty(t, cfg.Database.URL)
	require.NotEmpty(t, cfg.Redis.Addr)

	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingValues(t *testing.T) {
	base := func() *Config {
		return &Config{
			Server:   ServerConfig{Port: "8080"},
			Database: DatabaseConfig{URL: "postgres://localhost/autolot"},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Engine: EngineConfig{
				SweepInterval:    15 * time.Second,
				BidCommitTimeout: 2 * time.Second,
			},
		}
	}

	require.NoError(t, base().Validate())

	noPort := base()
	noPort.Server.Port = ""
	require.Error(t, noPort.Validate())

	noDB := base()
	noDB.Database.URL = ""
	require.Error(t, noDB.Validate())

	noRedis := base()
	noRedis.Redis.Addr = ""
	require.Error(t, noRedis.Validate())

	badSweep := base()
	badSweep.Engine.SweepInterval = 0
	require.Error(t, badSweep.Validate())

	badCommit := base()
	badCommit.Engine.BidCommitTimeout = -time.Second
	require.Error(t, badCommit.Validate())
}
