package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"seadog/internal/model"
	"seadog/internal/unit"
)

const probeTimeout = 10 * time.Second

// drillUnit probes each mission target with an HTTP HEAD request. It is the
// stock unit the CLI fields when no custom units are wired in.
type drillUnit struct {
	id       string
	callSign string
	squad    string
	caps     []string
	client   *http.Client
}

func newDrillUnit(id, callSign, squad string, caps []string) *drillUnit {
	return &drillUnit{
		id:       id,
		callSign: callSign,
		squad:    squad,
		caps:     caps,
		client:   &http.Client{Timeout: probeTimeout},
	}
}

func (d *drillUnit) Identity() unit.Identity {
	return unit.Identity{ID: d.id, CallSign: d.callSign, Squad: d.squad}
}

func (d *drillUnit) Capabilities() []string { return d.caps }

func (d *drillUnit) ExecuteMission(ctx context.Context, params model.MissionParameters) (map[string]any, error) {
	if len(params.Targets) == 0 {
		return nil, fmt.Errorf("no targets assigned")
	}

	probed := 0
	reachable := 0
	var servers []string
	var contentTypes []string

	for _, target := range params.Targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		probed++
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			continue
		}
		resp, err := d.client.Do(req)
		if err != nil {
			continue
		}
		_ = resp.Body.Close()
		if resp.StatusCode < 500 {
			reachable++
		}
		if s := resp.Header.Get("Server"); s != "" {
			servers = append(servers, s)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			contentTypes = append(contentTypes, ct)
		}
	}

	rate := float64(reachable) / float64(probed)
	payload := map[string]any{
		"success_rate":      rate,
		"targets_probed":    probed,
		"targets_reachable": reachable,
		"site_structure":    contentTypes,
		"access_points":     reachable,
		"defensive_posture": servers,
	}
	if reachable == 0 {
		return payload, fmt.Errorf("no target reachable out of %d", probed)
	}
	return payload, nil
}

// buildRoster fields the standard drill team across the four squads.
func buildRoster() []*drillUnit {
	return []*drillUnit{
		newDrillUnit("alpha-1", "OVERLORD", "alpha", []string{"command", "coordination"}),
		newDrillUnit("bravo-1", "HAMMER", "bravo", []string{"direct_action", "breach"}),
		newDrillUnit("bravo-2", "ANVIL", "bravo", []string{"direct_action", "demolition"}),
		newDrillUnit("charlie-1", "GHOST", "charlie", []string{"recon", "surveillance"}),
		newDrillUnit("charlie-2", "SHADOW", "charlie", []string{"recon", "signals"}),
		newDrillUnit("delta-1", "WATCHTOWER", "delta", []string{"overwatch", "support"}),
	}
}
