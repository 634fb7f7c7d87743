// Package document defines the signed documents exchanged by community members.
package document

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/schema"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/snapshot"
)

// Kind is the type of a document.
type Kind string

const (
	KindCommunity Kind = "community"
	KindProposal  Kind = "proposal"
	KindOption    Kind = "option"
	KindVote      Kind = "vote"
)

// Kinds contains all document kinds.
var Kinds = []Kind{KindCommunity, KindProposal, KindOption, KindVote}

// ParseKind returns the kind with the given name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == strings.ToLower(name) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown document kind %q", name)
}

// TypeName returns the schema type name of the kind.
func (k Kind) TypeName() string {
	if k == "" {
		return ""
	}
	return strings.ToUpper(string(k[:1])) + string(k[1:])
}

// Document is a parsed signed document.
type Document interface {
	Kind() Kind
	Signer() Author
}

// Author is the signature record attached to every document.
type Author struct {
	DID      string
	Snapshot *big.Int
	CoinType chain.CoinType
	Address  string
	Proof    string
}

// Snapshots returns the snapshot the author identity is pinned to.
func (a Author) Snapshots() snapshot.Map {
	return snapshot.Map{a.CoinType: new(big.Int).Set(a.Snapshot)}
}

// Permission holds the sets governing a group.
type Permission struct {
	Proposing sets.Node
	// AddingOption is nil when options cannot be added after creation.
	AddingOption sets.Node
	Voting       sets.Node
}

type Group struct {
	ID         string
	Name       string
	About      string
	Permission Permission
}

// Community is a root document owned by the DID of its author.
type Community struct {
	Author Author
	Name   string
	About  string
	Groups []Group
}

func (c *Community) Kind() Kind     { return KindCommunity }
func (c *Community) Signer() Author { return c.Author }

// Group returns the group with the given id.
func (c *Community) Group(id string) (*Group, bool) {
	for i := range c.Groups {
		if c.Groups[i].ID == id {
			return &c.Groups[i], true
		}
	}
	return nil, false
}

// VotingType determines how many options a vote may distribute power to.
type VotingType string

const (
	SingleChoice VotingType = "single"
	Approval     VotingType = "approval"
)

type Proposal struct {
	Author     Author
	Community  string
	Group      string
	Title      string
	Content    string
	VotingType VotingType
	Options    []string
	// Snapshots pins every chain read by the group sets.
	Snapshots snapshot.Map
}

func (p *Proposal) Kind() Kind     { return KindProposal }
func (p *Proposal) Signer() Author { return p.Author }

// HasOption reports whether the proposal lists the given option.
func (p *Proposal) HasOption(option string) bool {
	for _, o := range p.Options {
		if o == option {
			return true
		}
	}
	return false
}

type Option struct {
	Author   Author
	Proposal string
	Title    string
}

func (o *Option) Kind() Kind     { return KindOption }
func (o *Option) Signer() Author { return o.Author }

type Vote struct {
	Author     Author
	Proposal   string
	Powers     map[string]float64
	TotalPower float64
}

func (v *Vote) Kind() Kind     { return KindVote }
func (v *Vote) Signer() Author { return v.Author }

// Parse validates raw against the schema of kind and returns the typed document.
func Parse(kind Kind, raw map[string]any) (Document, error) {
	if err := schema.Validate(kind.TypeName(), raw); err != nil {
		return nil, err
	}
	author, err := parseAuthor(raw["author"])
	if err != nil {
		return nil, fault.Within("author", err)
	}
	switch kind {
	case KindCommunity:
		return parseCommunity(author, raw)
	case KindProposal:
		return parseProposal(author, raw)
	case KindOption:
		return &Option{
			Author:   author,
			Proposal: str(raw["proposal"]),
			Title:    str(raw["title"]),
		}, nil
	case KindVote:
		return parseVote(author, raw)
	default:
		return nil, fault.New(fault.SchemaError, "", "unknown document kind %q", kind)
	}
}
