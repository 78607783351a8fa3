package config

import (
	"time"

	"github.com/spf13/pflag"
)

type (
	Config struct {
		Broker     Broker
		Server     Server
		Auth       Auth
		Turn       Turn
		Monitoring Monitoring
	}
	Broker struct {
		Debug             bool
		PingInterval      time.Duration `fig:"pingInterval" default:"5s"`
		PingTimeout       time.Duration `fig:"pingTimeout" default:"10s"`
		InputTimeout      time.Duration `fig:"inputTimeout" default:"3m"`
		ConnectingTimeout time.Duration `fig:"connectingTimeout" default:"30s"`
		QueueTimeout      time.Duration `fig:"queueTimeout" default:"5m"`
		MatchInterval     time.Duration `fig:"matchInterval" default:"1s"`
		MaxSessionTime    time.Duration `fig:"maxSessionTime" default:"1h"`
		// the video size cap for free-access clients
		FreeMaxVideoSize int `fig:"freeMaxVideoSize" default:"360"`
	}
	Server struct {
		Address     string `fig:"address" default:":8080"`
		Https       bool   `fig:"https"`
		HttpsDomain string `fig:"httpsDomain"`
		HttpsCert   string `fig:"httpsCert"`
		HttpsKey    string `fig:"httpsKey"`
	}
	Auth struct {
		// IntrospectURL points to the external token verification endpoint.
		// When empty, every connection is admitted with paid access (dev mode).
		IntrospectURL string        `fig:"introspectUrl"`
		Timeout       time.Duration `fig:"timeout" default:"10s"`
	}
	Turn struct {
		// Cloudflare realtime TURN key credentials.
		// When empty, QUEUE_READY/START carry no TURN servers (STUN-only peers).
		KeyID    string        `fig:"keyId"`
		APIToken string        `fig:"apiToken"`
		TTL      time.Duration `fig:"ttl" default:"1h"`
	}
	Monitoring struct {
		Port             int    `fig:"port" default:"6601"`
		URLPrefix        string `fig:"urlPrefix" default:"/signal"`
		MetricEnabled    bool   `fig:"metricEnabled"`
		ProfilingEnabled bool   `fig:"profilingEnabled"`
	}
)

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// NewConfig loads the config file or, when none is found, the environment.
func NewConfig() (conf Config, err error) {
	if err = LoadConfig(&conf, ""); err != nil {
		err = LoadConfigEnv(&conf)
	}
	return
}

func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	fs.BoolVarP(&c.Broker.Debug, "debug", "v", c.Broker.Debug, "Enable debug logs")
	fs.StringVarP(&c.Server.Address, "address", "a", c.Server.Address, "Server address")
	fs.IntVar(&c.Monitoring.Port, "monitoring.port", c.Monitoring.Port, "Monitoring server port")
	return c
}

func (c *Config) ParseFlags() {
	c.AddFlags(pflag.CommandLine)
	pflag.Parse()
}
