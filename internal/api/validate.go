// Copyright 2025 Certen Protocol
//

package api

import (
	"regexp"
	"strconv"

	"github.com/passportxyz/scorer/internal/apierr"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

func parseAddress(raw string) (string, error) {
	if !addressPattern.MatchString(raw) {
		return "", apierr.New(apierr.BadRequest, "invalid Ethereum address")
	}
	return raw, nil
}

func parseScorerID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apierr.New(apierr.BadRequest, "invalid scorer_id")
	}
	return id, nil
}
