package model

import (
	"fmt"
	"strings"
)

// ClaimOrder decides which pending mention is worked on next.
type ClaimOrder string

const (
	// Most recent mention first; backlog replies go stale quickly.
	ClaimOrderNewestFirst ClaimOrder = "newest_first"
	ClaimOrderOldestFirst ClaimOrder = "oldest_first"
)

func ParseClaimOrder(s string) (ClaimOrder, error) {
	switch ClaimOrder(strings.ToLower(s)) {
	case ClaimOrderNewestFirst, "":
		return ClaimOrderNewestFirst, nil
	case ClaimOrderOldestFirst:
		return ClaimOrderOldestFirst, nil
	default:
		return ClaimOrderNewestFirst, fmt.Errorf("unknown claim order: %s", s)
	}
}

// SQLDirection is the ORDER BY direction on created_epoch for this order.
func (o ClaimOrder) SQLDirection() string {
	if o == ClaimOrderOldestFirst {
		return "ASC"
	}
	return "DESC"
}
