// Package cloudflare implements weighted routing on top of Cloudflare
// DNS. A traffic split between two targets is expressed as proxied A
// records on the source hostname, with the split recorded in the DNS
// record comments. Resolvers pick among the records, so the returned
// mix approximates the requested fraction.
package cloudflare

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	cf "github.com/cloudflare/cloudflare-go"
)

// Config carries the Cloudflare credentials and the address book that
// maps target hostnames to their origin IPs.
type Config struct {
	APIToken  string            `json:"api_token"`
	ZoneID    string            `json:"zone_id"`
	Addresses map[string]string `json:"addresses"`
}

// Router writes traffic splits as DNS records. It only implements the
// routing slice of CloudControl; health, metrics and scaling belong to
// other providers and are composed in the live adapter.
type Router struct {
	api    *cf.API
	zoneID string

	mu        sync.Mutex
	addresses map[string]string
	records   map[string][]string // source hostname -> record IDs we own
}

func NewRouter(cfg Config) (*Router, error) {
	if cfg.APIToken == "" || cfg.ZoneID == "" {
		return nil, fmt.Errorf("cloudflare: api_token and zone_id are required")
	}

	api, err := cf.NewWithAPIToken(cfg.APIToken)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: failed to initialize API client: %w", err)
	}

	addresses := make(map[string]string, len(cfg.Addresses))
	for host, addr := range cfg.Addresses {
		addresses[strings.ToLower(host)] = addr
	}

	return &Router{
		api:       api,
		zoneID:    cfg.ZoneID,
		addresses: addresses,
		records:   make(map[string][]string),
	}, nil
}

// SetRoutingWeights replaces the source hostname's records with a set
// reflecting the requested destination fraction. Records are replaced
// wholesale (delete then create) so a partial update can never leave a
// stale mix behind.
func (r *Router) SetRoutingWeights(ctx context.Context, source, destination string, fraction float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	srcAddr, err := r.address(source)
	if err != nil {
		return err
	}
	dstAddr, err := r.address(destination)
	if err != nil {
		return err
	}

	for _, id := range r.records[source] {
		if err := r.api.DeleteDNSRecord(ctx, cf.ZoneIdentifier(r.zoneID), id); err != nil {
			return fmt.Errorf("cloudflare: failed to delete record %s for %s: %w", id, source, err)
		}
	}
	r.records[source] = nil

	type desired struct {
		content string
		weight  float64
	}
	var wanted []desired
	if fraction < 1 {
		wanted = append(wanted, desired{content: srcAddr, weight: 1 - fraction})
	}
	if fraction > 0 {
		wanted = append(wanted, desired{content: dstAddr, weight: fraction})
	}

	proxied := true
	var created []string
	for _, d := range wanted {
		record, err := r.api.CreateDNSRecord(ctx, cf.ZoneIdentifier(r.zoneID), cf.CreateDNSRecordParams{
			Type:    "A",
			Name:    source,
			Content: d.content,
			TTL:     120,
			Proxied: &proxied,
			Comment: fmt.Sprintf("trafficctl split %s -> %s weight=%.2f", source, destination, d.weight),
		})
		if err != nil {
			return fmt.Errorf("cloudflare: failed to create record for %s: %w", source, err)
		}
		created = append(created, record.ID)
	}
	r.records[source] = created

	log.Printf("[CLOUD] Cloudflare: %s -> %s split set to %.0f%% (%d records)",
		source, destination, fraction*100, len(created))
	return nil
}

func (r *Router) address(host string) (string, error) {
	addr, ok := r.addresses[strings.ToLower(host)]
	if !ok {
		return "", fmt.Errorf("cloudflare: no origin address configured for %s", host)
	}
	return addr, nil
}
