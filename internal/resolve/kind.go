// Package resolve holds per-hunk merge decisions for one conflict file and
// rebuilds the merged content from them.
//
// Content is always recomputed from the untouched yours revision plus the
// full decision map, never patched incrementally, so the order in which
// decisions arrive has no effect on the result.
package resolve

import (
	apperrors "github.com/veroide/mergehost/internal/errors"
)

// Kind is the strategy chosen for one hunk.
type Kind string

const (
	// KindTheirs keeps the source-branch lines.
	KindTheirs Kind = "theirs"
	// KindYours keeps the sandbox lines.
	KindYours Kind = "yours"
	// KindBoth keeps both sides, ordered by BothOrder.
	KindBoth Kind = "both"
	// KindCustom replaces the region with user text.
	KindCustom Kind = "custom"
)

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindTheirs, KindYours, KindBoth, KindCustom:
		return k, nil
	default:
		return "", apperrors.InvalidResolutionKind(s)
	}
}

// BothOrder controls which side goes first for KindBoth.
type BothOrder string

const (
	TheirsFirst BothOrder = "theirs_first"
	YoursFirst  BothOrder = "yours_first"
)

// ParseBothOrder validates a BothOrder string. Empty means TheirsFirst.
func ParseBothOrder(s string) (BothOrder, error) {
	switch o := BothOrder(s); o {
	case "":
		return TheirsFirst, nil
	case TheirsFirst, YoursFirst:
		return o, nil
	default:
		return "", apperrors.InvalidOption("both_order", s, string(TheirsFirst), string(YoursFirst))
	}
}

// Options tunes reconstruction.
type Options struct {
	BothOrder BothOrder
}

// HunkResolution is the decision for one hunk.
// CustomText is only meaningful for KindCustom. It is nil on the placeholder
// entries reported while a full-content override is active.
type HunkResolution struct {
	HunkID     string  `json:"hunk_id"`
	Kind       Kind    `json:"kind"`
	CustomText *string `json:"custom_text,omitempty"`
}

// FileState is where a file sits in the resolution state machine.
type FileState string

const (
	StateUnresolved FileState = "unresolved"
	StatePartial    FileState = "partial"
	StateResolved   FileState = "resolved"
)
