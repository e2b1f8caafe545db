// Package action defines the inbound user actions the bot understands and the
// codec that carries them through message component identifiers.
package action

import (
	"errors"
	"fmt"
	"strings"
)

// Kind tags an Action.
type Kind int

const (
	Claim Kind = iota + 1
	Unclaim
	MarkPaid
	Refresh
	Explore
	Next
	Prev
	Close
)

var kindNames = map[Kind]string{
	Claim:    "claim",
	Unclaim:  "unclaim",
	MarkPaid: "paid",
	Refresh:  "refresh",
	Explore:  "explore",
	Next:     "catnext",
	Prev:     "catprev",
	Close:    "catclose",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Navigational reports whether the kind only moves a browse session.
func (k Kind) Navigational() bool {
	return k == Next || k == Prev || k == Close
}

// Action is one user intent. Target is a card id for Claim/Unclaim, a claim id
// for MarkPaid, and a category name for the rest.
type Action struct {
	Kind   Kind
	Target string
}

// MaxEncodedLen is the platform limit on component identifiers.
const MaxEncodedLen = 100

const sep = ":"

var (
	ErrMalformed   = errors.New("malformed action id")
	ErrUnknownKind = errors.New("unknown action kind")
	ErrTooLong     = errors.New("action id too long")
)

// Encode renders the action as a component identifier.
func (a Action) Encode() (string, error) {
	name, ok := kindNames[a.Kind]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownKind, int(a.Kind))
	}
	id := name + sep + a.Target
	if len(id) > MaxEncodedLen {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLong, len(id))
	}
	return id, nil
}

// Decode parses a component identifier produced by Encode.
func Decode(id string) (Action, error) {
	name, target, ok := strings.Cut(id, sep)
	if !ok || target == "" {
		return Action{}, fmt.Errorf("%w: %q", ErrMalformed, id)
	}
	kind, ok := kindsByName[name]
	if !ok {
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
	return Action{Kind: kind, Target: target}, nil
}
