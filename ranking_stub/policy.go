package main

import (
	"cmp"
	"fmt"
	"net/http"
	"slices"

	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/ranking"
	"github.com/scusemua/offer-ranking/common/ranking/rankingtest"
)

const (
	PolicyEcho    = "echo"
	PolicySpread  = "spread"
	PolicyBinpack = "binpack"
)

var ErrUnknownPolicy = errors.New("unknown ranking policy")

// spread ranks the hosts with the most offered CPU first.
func spread(request *ranking.Request) (int, any) {
	hosts := slices.Clone(request.Hosts)
	slices.SortStableFunc(hosts, func(a, b ranking.Host) int {
		return cmp.Compare(b.Offer.CPU, a.Offer.CPU)
	})

	return http.StatusOK, reply(hosts)
}

// binpack ranks the hosts that fit the request with the least offered CPU first. Hosts that cannot fit the
// request are left out of the ranking.
func binpack(request *ranking.Request) (int, any) {
	hosts := make([]ranking.Host, 0, len(request.Hosts))
	for _, host := range request.Hosts {
		if host.Offer.CPU >= request.Request.CPU && host.Offer.Memory >= request.Request.Memory && host.Offer.Disk >= request.Request.Disk {
			hosts = append(hosts, host)
		}
	}

	slices.SortStableFunc(hosts, func(a, b ranking.Host) int {
		return cmp.Compare(a.Offer.CPU, b.Offer.CPU)
	})

	return http.StatusOK, reply(hosts)
}

func reply(hosts []ranking.Host) *rankingtest.Reply {
	names := make([]string, 0, len(hosts))
	for _, host := range hosts {
		names = append(names, host.Name)
	}

	return &rankingtest.Reply{Error: "", Hosts: names}
}

// policyHandler returns the rankingtest.Handler that implements the named policy.
func policyHandler(policy string) (rankingtest.Handler, error) {
	switch policy {
	case "", PolicyEcho:
		return rankingtest.EchoHandler, nil
	case PolicySpread:
		return spread, nil
	case PolicyBinpack:
		return binpack, nil
	default:
		return nil, errors.Wrap(ErrUnknownPolicy, fmt.Sprintf("\"%s\"", policy))
	}
}
