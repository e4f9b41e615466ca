// Package tailscale wraps the tailscale CLI for peer status and
// reachability checks.
package tailscale

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jorge-barreto/fleet/internal/dispatch"
)

const (
	DefaultBinary = "tailscale"

	statusTimeout = 10 * time.Second
	pingGrace     = 2 * time.Second
)

var (
	ErrNotRunning   = errors.New("tailscale not running or accessible")
	ErrPeerNotFound = errors.New("peer not found in tailnet")
)

// Peer is one machine in the tailnet.
type Peer struct {
	Hostname string `json:"hostname"`
	IP       string `json:"ip"`
	Online   bool   `json:"online"`
	OS       string `json:"os,omitempty"`
}

// Status is the local node's view of the tailnet.
type Status struct {
	SelfIP string `json:"self_ip"`
	Peers  []Peer `json:"peers"`
}

// OnlineCount returns the number of online peers.
func (s *Status) OnlineCount() int {
	n := 0
	for _, p := range s.Peers {
		if p.Online {
			n++
		}
	}
	return n
}

// Client runs tailscale subcommands through an Invoker.
type Client struct {
	Invoker dispatch.Invoker
	Binary  string
	WorkDir string
}

// Status reads peer status, preferring `tailscale status --json` and
// falling back to the text table.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	res, err := c.invoke(ctx, statusTimeout, "status", "--json")
	if err != nil {
		return nil, err
	}
	if res.Success {
		if st, err := ParseJSONStatus([]byte(res.Stdout)); err == nil {
			return st, nil
		}
	}

	res, err = c.invoke(ctx, statusTimeout, "status")
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrNotRunning, strings.TrimSpace(res.Stderr))
	}
	return ParseTextStatus(res.Stdout), nil
}

// PingResult reports whether a peer answered a tailscale ping.
type PingResult struct {
	Host      string        `json:"host"`
	Reachable bool          `json:"reachable"`
	Latency   time.Duration `json:"latency,omitempty"`
	Output    string        `json:"output,omitempty"`
}

var pongLatencyRe = regexp.MustCompile(`in\s+([\d.]+)\s*ms`)

// Ping sends a single tailscale ping to host.
func (c *Client) Ping(ctx context.Context, host string, timeout time.Duration) (*PingResult, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	res, err := c.invoke(ctx, timeout+pingGrace,
		"ping", "--timeout", fmt.Sprintf("%ds", int(timeout.Seconds())), "--c", "1", host)
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(res.Stdout)
	pr := &PingResult{
		Host:      host,
		Reachable: res.Success || strings.HasPrefix(strings.ToLower(out), "pong"),
		Output:    out,
	}
	if m := pongLatencyRe.FindStringSubmatch(out); m != nil {
		if ms, err := strconv.ParseFloat(m[1], 64); err == nil {
			pr.Latency = time.Duration(ms * float64(time.Millisecond))
		}
	}
	return pr, nil
}

// OnlineMachines returns the hostnames of online peers.
func (c *Client) OnlineMachines(ctx context.Context) ([]string, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range st.Peers {
		if p.Online {
			out = append(out, p.Hostname)
		}
	}
	return out, nil
}

// PeerInfo finds a peer by exact hostname, or failing that the first peer
// whose hostname contains name.
func (c *Client) PeerInfo(ctx context.Context, name string) (*Peer, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return nil, err
	}
	return FindPeer(st.Peers, name)
}

// FindPeer looks up name among peers, exact match first.
func FindPeer(peers []Peer, name string) (*Peer, error) {
	for i := range peers {
		if peers[i].Hostname == name {
			return &peers[i], nil
		}
	}
	for i := range peers {
		if strings.Contains(peers[i].Hostname, name) {
			return &peers[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrPeerNotFound, name)
}

type jsonStatus struct {
	Self struct {
		TailscaleIPs []string `json:"TailscaleIPs"`
	} `json:"Self"`
	Peer map[string]struct {
		HostName     string   `json:"HostName"`
		TailscaleIPs []string `json:"TailscaleIPs"`
		Online       bool     `json:"Online"`
		OS           string   `json:"OS"`
	} `json:"Peer"`
}

// ParseJSONStatus decodes `tailscale status --json`. Peers are sorted by
// hostname.
func ParseJSONStatus(data []byte) (*Status, error) {
	var js jsonStatus
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, fmt.Errorf("parsing tailscale status: %w", err)
	}
	st := &Status{SelfIP: "unknown"}
	if len(js.Self.TailscaleIPs) > 0 {
		st.SelfIP = js.Self.TailscaleIPs[0]
	}
	for _, p := range js.Peer {
		peer := Peer{Hostname: p.HostName, IP: "unknown", Online: p.Online, OS: p.OS}
		if peer.Hostname == "" {
			peer.Hostname = "unknown"
		}
		if len(p.TailscaleIPs) > 0 {
			peer.IP = p.TailscaleIPs[0]
		}
		st.Peers = append(st.Peers, peer)
	}
	sort.SliceStable(st.Peers, func(i, j int) bool {
		return st.Peers[i].Hostname < st.Peers[j].Hostname
	})
	return st, nil
}

// ParseTextStatus parses the plain `tailscale status` table. A hostname
// ending in "-" marks the local node; a line containing "offline" marks an
// offline peer.
func ParseTextStatus(out string) *Status {
	st := &Status{SelfIP: "unknown"}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}
		// Rows are "ip hostname user os status"; accept "hostname ip" too.
		host, ip := parts[1], parts[0]
		if !looksLikeIP(ip) && looksLikeIP(parts[1]) {
			host, ip = parts[0], parts[1]
		}
		if strings.HasSuffix(host, "-") {
			st.SelfIP = ip
			continue
		}
		osName := ""
		if len(parts) >= 4 {
			osName = parts[3]
		}
		st.Peers = append(st.Peers, Peer{
			Hostname: host,
			IP:       ip,
			Online:   !strings.Contains(strings.ToLower(line), "offline"),
			OS:       osName,
		})
	}
	return st
}

func looksLikeIP(s string) bool {
	return strings.Count(s, ".") == 3 || strings.Contains(s, ":")
}

func (c *Client) invoke(ctx context.Context, timeout time.Duration, args ...string) (*dispatch.Result, error) {
	bin := c.Binary
	if bin == "" {
		bin = DefaultBinary
	}
	inv := dispatch.Invocation{Name: bin, Args: args, Dir: c.WorkDir, Timeout: timeout}
	invoker := c.Invoker
	if invoker == nil {
		invoker = &dispatch.ExecInvoker{}
	}
	res, err := invoker.Invoke(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("tailscale: %w", err)
	}
	return res, nil
}
