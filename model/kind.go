package model

import (
	"fmt"
	"strings"
)

// Kind is the mention subtype reported by the feed.
type Kind string

const (
	KindReply   Kind = "reply"
	KindDynamic Kind = "dynamic"
	KindLike    Kind = "like"
)

// The feed reports kinds either by name or by a legacy numeric code. Both
// forms name the same kind and must keep parsing.
var legacyKindCodes = map[string]Kind{
	"1":  KindReply,
	"2":  KindLike,
	"17": KindDynamic,
}

func ParseKind(raw string) (Kind, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch Kind(value) {
	case KindReply, KindDynamic, KindLike:
		return Kind(value), nil
	}
	if kind, ok := legacyKindCodes[value]; ok {
		return kind, nil
	}
	return "", fmt.Errorf("unknown mention kind: %q", raw)
}

// IsActionable reports whether a mention of this kind can receive a reply.
func (k Kind) IsActionable() bool {
	return k == KindReply || k == KindDynamic
}

// BusinessType is the numeric comment-area type used when posting a reply.
// Dynamic mentions are answered through the same reply area as comments.
func (k Kind) BusinessType() int {
	switch k {
	case KindLike:
		return 2
	default:
		return 1
	}
}
