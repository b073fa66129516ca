package cmd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const apiTimeout = 30 * time.Second

// virtualMachine and lxcContainer mirror what a host's API reports about a
// guest. IDs stay strings; qm and pct take them verbatim.
type virtualMachine struct {
	id     string
	name   string
	status string
}

func (v virtualMachine) isRunning() bool { return strings.EqualFold(v.status, "running") }

type lxcContainer struct {
	id     string
	name   string
	status string
}

func (c lxcContainer) isRunning() bool { return strings.EqualFold(c.status, "running") }

// guestAddress and guestInterface follow the QEMU agent JSON field names.
type guestAddress struct {
	Address string `json:"ip-address"`
	Type    string `json:"ip-address-type"`
}

type guestInterface struct {
	Name      string         `json:"name"`
	Addresses []guestAddress `json:"ip-addresses"`
}

// proxmoxAPI is the slice of the Proxmox VE HTTP API the maintenance flows
// need.
type proxmoxAPI interface {
	listVMs(ctx context.Context) ([]virtualMachine, error)
	listContainers(ctx context.Context) ([]lxcContainer, error)
	vmInterfaces(ctx context.Context, vmid string) ([]guestInterface, error)
}

// flexID tolerates the API reporting vmid as a number for VMs and as a
// string on some container listings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' {
		var unquoted string
		if err := json.Unmarshal(b, &unquoted); err != nil {
			return err
		}
		s = unquoted
	}
	if _, err := strconv.Atoi(s); err != nil {
		return fmt.Errorf("invalid vmid %q", s)
	}
	*f = flexID(s)
	return nil
}

// apiRecord is one row of a qemu or lxc listing.
type apiRecord struct {
	VMID   flexID `json:"vmid"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// proxmoxClient talks to one host's API endpoint with a static token header.
type proxmoxClient struct {
	base   string
	header string
	http   *http.Client
	node   string // resolved lazily when the manifest does not pin one
}

// newProxmoxClient builds a client for one host. The token pair arrives
// already resolved; it lives only in the Authorization header.
func newProxmoxClient(cfg hostConfig, creds credentials) *proxmoxClient {
	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if cfg.apiInsecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &proxmoxClient{
		base:   fmt.Sprintf("https://%s/api2/json", net.JoinHostPort(cfg.host, strconv.Itoa(cfg.apiPort))),
		header: fmt.Sprintf("PVEAPIToken=%s=%s", creds.tokenID, creds.secret),
		http:   &http.Client{Transport: transport, Timeout: apiTimeout},
		node:   cfg.apiNode,
	}
}

func (c *proxmoxClient) request(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.header)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("proxmox api: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("proxmox api: %s %s returned %s", method, path, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("proxmox api: invalid JSON from %s: %w", path, err)
	}
	return nil
}

// ensureNode resolves which cluster node to query: the manifest's api.node
// when pinned, otherwise the first node the API reports, cached for the
// rest of the host run.
func (c *proxmoxClient) ensureNode(ctx context.Context) (string, error) {
	if c.node != "" {
		return c.node, nil
	}
	var payload struct {
		Data []struct {
			Node string `json:"node"`
		} `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/nodes", &payload); err != nil {
		return "", err
	}
	if len(payload.Data) == 0 {
		return "", fmt.Errorf("proxmox api returned no nodes; set api.node in the manifest")
	}
	c.node = payload.Data[0].Node
	return c.node, nil
}

func (c *proxmoxClient) listVMs(ctx context.Context) ([]virtualMachine, error) {
	node, err := c.ensureNode(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []apiRecord `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/nodes/"+node+"/qemu", &payload); err != nil {
		return nil, err
	}
	vms := make([]virtualMachine, 0, len(payload.Data))
	for _, rec := range payload.Data {
		vms = append(vms, virtualMachine{
			id:     string(rec.VMID),
			name:   nonEmpty(rec.Name, string(rec.VMID)),
			status: nonEmpty(rec.Status, "unknown"),
		})
	}
	return vms, nil
}

func (c *proxmoxClient) listContainers(ctx context.Context) ([]lxcContainer, error) {
	node, err := c.ensureNode(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []apiRecord `json:"data"`
	}
	if err := c.request(ctx, http.MethodGet, "/nodes/"+node+"/lxc", &payload); err != nil {
		return nil, err
	}
	cts := make([]lxcContainer, 0, len(payload.Data))
	for _, rec := range payload.Data {
		cts = append(cts, lxcContainer{
			id:     string(rec.VMID),
			name:   nonEmpty(rec.Name, string(rec.VMID)),
			status: nonEmpty(rec.Status, "unknown"),
		})
	}
	return cts, nil
}

// vmInterfaces asks the QEMU guest agent for interface addresses. Fails for
// guests without the agent installed; callers treat that as "no address".
func (c *proxmoxClient) vmInterfaces(ctx context.Context, vmid string) ([]guestInterface, error) {
	node, err := c.ensureNode(ctx)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []guestInterface `json:"data"`
	}
	path := fmt.Sprintf("/nodes/%s/qemu/%s/agent/network-get-interfaces", node, vmid)
	if err := c.request(ctx, http.MethodPost, path, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

func nonEmpty(s, alt string) string {
	if s == "" {
		return alt
	}
	return s
}
