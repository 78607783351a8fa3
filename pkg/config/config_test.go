package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfigEnv(t *testing.T) {
	_ = os.Setenv("DROIDSTREAM_SERVER_ADDRESS", ":9999")
	_ = os.Setenv("DROIDSTREAM_BROKER_PINGTIMEOUT", "15s")
	defer func() {
		_ = os.Unsetenv("DROIDSTREAM_SERVER_ADDRESS")
		_ = os.Unsetenv("DROIDSTREAM_BROKER_PINGTIMEOUT")
	}()

	var conf Config
	if err := LoadConfigEnv(&conf); err != nil {
		t.Fatal(err)
	}

	if conf.Server.Address != ":9999" {
		t.Errorf("env override ignored: %v", conf.Server.Address)
	}
	if conf.Broker.PingTimeout != 15*time.Second {
		t.Errorf("env override ignored: %v", conf.Broker.PingTimeout)
	}
	// untouched fields keep their defaults
	if conf.Broker.PingInterval != 5*time.Second {
		t.Errorf("unexpected default: %v", conf.Broker.PingInterval)
	}
	if conf.Broker.FreeMaxVideoSize != 360 {
		t.Errorf("unexpected default: %v", conf.Broker.FreeMaxVideoSize)
	}
	if conf.Broker.MaxSessionTime != time.Hour {
		t.Errorf("unexpected default: %v", conf.Broker.MaxSessionTime)
	}
}
