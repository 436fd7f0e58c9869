package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type ConfigSuite struct {
	suite.Suite
	dir string
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (s *ConfigSuite) SetupTest() {
	s.dir = s.T().TempDir()
	for _, key := range []string{
		"PACKETD_CONFIG_PATH",
		"PACKETD_SERVER_PORT",
		"PACKETD_DB_DRIVER",
		"PACKETD_DB_URL",
		"PACKETD_IDLE_THRESHOLD",
		"PACKETD_ADMIN_IDS",
		"PACKETD_DELIVERY_MODE",
		"PACKETD_WEBHOOK_URL",
	} {
		s.T().Setenv(key, "")
		os.Unsetenv(key)
	}
}

func (s *ConfigSuite) writeFile(body string) string {
	path := filepath.Join(s.dir, "packetd.yaml")
	s.Require().NoError(os.WriteFile(path, []byte(body), 0o600))
	return path
}

func (s *ConfigSuite) TestDefaults() {
	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal(8080, cfg.Server.Port)
	s.Equal(DriverSQLite, cfg.DB.Driver)
	s.Equal(5*time.Second, cfg.Packets.IdleThreshold)
	s.Equal(500*time.Millisecond, cfg.Packets.SweepInterval)
	s.Equal(time.Hour, cfg.Packets.EvictAfter)
	s.Equal(16, cfg.Packets.MaxConcurrentCloses)
	s.Equal(DeliverySSE, cfg.Delivery.Mode)
}

func (s *ConfigSuite) TestFileThenEnv() {
	path := s.writeFile(`
server:
  port: 9000
packets:
  idle_threshold: 2s
admin:
  ids: [1, 2]
`)
	s.T().Setenv("PACKETD_CONFIG_PATH", path)
	s.T().Setenv("PACKETD_IDLE_THRESHOLD", "750ms")
	s.T().Setenv("PACKETD_ADMIN_IDS", "3,4")

	cfg, err := Load()
	s.Require().NoError(err)

	s.Equal(9000, cfg.Server.Port)
	s.Equal(750*time.Millisecond, cfg.Packets.IdleThreshold)
	s.Equal([]int64{3, 4}, cfg.Admin.IDs)
	s.True(cfg.Admin.IsAdmin(4))
	s.False(cfg.Admin.IsAdmin(1))
}

func (s *ConfigSuite) TestInvalidEnvValue() {
	s.T().Setenv("PACKETD_SERVER_PORT", "eighty")
	_, err := Load()
	s.Error(err)
}

func (s *ConfigSuite) TestMissingFile() {
	s.T().Setenv("PACKETD_CONFIG_PATH", filepath.Join(s.dir, "missing.yaml"))
	_, err := Load()
	s.ErrorContains(err, "read config file")
}

func (s *ConfigSuite) TestValidate() {
	cases := map[string]func(*Config){
		"unknown driver":   func(c *Config) { c.DB.Driver = "mysql" },
		"postgres no url":  func(c *Config) { c.DB.Driver = DriverPostgres },
		"zero idle":        func(c *Config) { c.Packets.IdleThreshold = 0 },
		"zero sweep":       func(c *Config) { c.Packets.SweepInterval = 0 },
		"negative evict":   func(c *Config) { c.Packets.EvictAfter = -time.Second },
		"no concurrency":   func(c *Config) { c.Packets.MaxConcurrentCloses = 0 },
		"unknown delivery": func(c *Config) { c.Delivery.Mode = "carrier-pigeon" },
		"webhook no url":   func(c *Config) { c.Delivery.Mode = DeliveryWebhook },
		"bad port":         func(c *Config) { c.Server.Port = 70000 },
		"bad log format":   func(c *Config) { c.Log.Format = "xml" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			cfg := Default()
			mutate(&cfg)
			s.Error(cfg.Validate())
		})
	}

	cfg := Default()
	cfg.Delivery.Mode = DeliveryWebhook
	cfg.Delivery.WebhookURL = "http://gateway.local/send"
	s.NoError(cfg.Validate())
}
