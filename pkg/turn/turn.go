// Package turn issues short-lived TURN relay credentials for matched pairs
// through the Cloudflare realtime API. The broker never relays media itself;
// the credentials ride along on QUEUE_READY and START so both peers dial the
// same relay.
package turn

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/droidstream/signal/pkg/api"
	"github.com/droidstream/signal/pkg/config"
	"github.com/droidstream/signal/pkg/logger"
	"github.com/goccy/go-json"
)

// Issuer hands out the ICE servers for a new pairing.
// A nil result means STUN-only peers.
type Issuer interface {
	IceServers() []api.IceServer
}

const endpoint = "https://rtc.live.cloudflare.com/v1/turn/keys/%s/credentials/generate-ice-servers"

// refresh this much before the credentials actually expire
const expiryMargin = time.Minute

// Cloudflare caches one credential set and refreshes it in the background
// when stale, so the matching loop never waits on the network.
type Cloudflare struct {
	conf   config.Turn
	client *http.Client
	log    *logger.Logger

	mu         sync.Mutex
	cached     []api.IceServer
	expires    time.Time
	refreshing bool
}

func NewCloudflare(conf config.Turn, log *logger.Logger) *Cloudflare {
	if conf.KeyID == "" || conf.APIToken == "" {
		log.Warn().Msg("Cloudflare TURN not configured, peers will be STUN-only")
	}
	return &Cloudflare{conf: conf, client: &http.Client{Timeout: 10 * time.Second}, log: log}
}

func (c *Cloudflare) IceServers() []api.IceServer {
	if c.conf.KeyID == "" || c.conf.APIToken == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Now().After(c.expires) && !c.refreshing {
		c.refreshing = true
		go c.refresh()
	}
	return c.cached
}

func (c *Cloudflare) refresh() {
	servers, err := c.generate()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if err != nil {
		c.log.Error().Err(err).Msg("TURN credential refresh failed")
		return
	}
	c.cached = servers
	c.expires = time.Now().Add(c.conf.TTL - expiryMargin)
}

func (c *Cloudflare) generate() ([]api.IceServer, error) {
	body, err := json.Marshal(map[string]any{"ttl": int(c.conf.TTL.Seconds())})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, fmt.Sprintf(endpoint, c.conf.KeyID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.conf.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("TURN API status %v", resp.StatusCode)
	}

	var data struct {
		IceServers []api.IceServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}

	var servers []api.IceServer
	for _, server := range data.IceServers {
		urls := filterRelayURLs(server.URLs)
		if len(urls) > 0 {
			servers = append(servers, api.IceServer{
				URLs:       urls,
				Username:   server.Username,
				Credential: server.Credential,
			})
		}
	}
	c.log.Info().Msgf("Generated %v TURN server(s)", len(servers))
	return servers, nil
}

// filterRelayURLs keeps UDP turn/turns entries only: STUN comes from the
// peers' own config, and port 53 / TCP relays break some middleboxes.
func filterRelayURLs(urls []string) []string {
	var out []string
	for _, url := range urls {
		if !strings.HasPrefix(url, "turn:") && !strings.HasPrefix(url, "turns:") {
			continue
		}
		if strings.Contains(url, ":53?") || strings.Contains(url, ":53/") {
			continue
		}
		if strings.Contains(url, "transport=tcp") {
			continue
		}
		out = append(out, url)
	}
	return out
}
