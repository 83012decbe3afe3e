package main

import (
	"os"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/scusemua/offer-ranking/common/offers"
)

var ErrNoHostname = errors.New("offer has no hostname")

// loadOffers reads a JSON array of offers from the file at the given path.
//
// Offers without an ID are assigned a fresh one.
func loadOffers(path string) ([]*offers.BasicHostOffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read offers file %s", path)
	}

	var hostOffers []*offers.BasicHostOffer
	if err = json.Unmarshal(data, &hostOffers); err != nil {
		return nil, errors.Wrapf(err, "cannot parse offers file %s", path)
	}

	for i, offer := range hostOffers {
		if offer == nil || offer.Host == "" {
			return nil, errors.Wrapf(ErrNoHostname, "offer #%d of %s", i, path)
		}

		if offer.ID == "" {
			offer.ID = uuid.NewString()
		}

		if offer.HostAttributes == nil {
			offer.HostAttributes = make(map[string]string)
		}
	}

	return hostOffers, nil
}
