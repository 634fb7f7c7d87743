package document

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/nasdf/quorum/chain"
	"github.com/nasdf/quorum/fault"
	"github.com/nasdf/quorum/sets"
	"github.com/nasdf/quorum/snapshot"
)

func str(value any) string {
	s, _ := value.(string)
	return s
}

func parseAuthor(value any) (Author, error) {
	obj, _ := value.(map[string]any)
	height, err := snapshot.ParseHeight(str(obj["snapshot"]))
	if err != nil {
		return Author{}, fault.Wrap(fault.SchemaError, "snapshot", err)
	}
	coinType, err := integer(obj["coin_type"])
	if err != nil {
		return Author{}, fault.Wrap(fault.SchemaError, "coin_type", err)
	}
	return Author{
		DID:      str(obj["did"]),
		Snapshot: height,
		CoinType: chain.CoinType(coinType),
		Address:  str(obj["address"]),
		Proof:    str(obj["proof"]),
	}, nil
}

func parseCommunity(author Author, raw map[string]any) (*Community, error) {
	list, _ := raw["groups"].([]any)
	groups := make([]Group, len(list))
	for i, item := range list {
		group, err := parseGroup(item)
		if err != nil {
			return nil, fault.Within(fmt.Sprintf("groups[%d]", i), err)
		}
		groups[i] = group
	}
	return &Community{
		Author: author,
		Name:   str(raw["name"]),
		About:  str(raw["about"]),
		Groups: groups,
	}, nil
}

func parseGroup(value any) (Group, error) {
	obj, _ := value.(map[string]any)
	perm, _ := obj["permission"].(map[string]any)
	proposing, err := sets.Parse(perm["proposing"])
	if err != nil {
		return Group{}, fault.Within("permission.proposing", err)
	}
	voting, err := sets.Parse(perm["voting"])
	if err != nil {
		return Group{}, fault.Within("permission.voting", err)
	}
	var addingOption sets.Node
	if v, ok := perm["adding_option"]; ok && v != nil {
		addingOption, err = sets.Parse(v)
		if err != nil {
			return Group{}, fault.Within("permission.adding_option", err)
		}
	}
	return Group{
		ID:    str(obj["id"]),
		Name:  str(obj["name"]),
		About: str(obj["about"]),
		Permission: Permission{
			Proposing:    proposing,
			AddingOption: addingOption,
			Voting:       voting,
		},
	}, nil
}

func parseProposal(author Author, raw map[string]any) (*Proposal, error) {
	list, _ := raw["options"].([]any)
	options := make([]string, len(list))
	seen := make(map[string]struct{}, len(list))
	for i, item := range list {
		options[i] = str(item)
		if _, ok := seen[options[i]]; ok {
			return nil, fault.New(fault.SchemaError, fmt.Sprintf("options[%d]", i), "duplicate option %q", options[i])
		}
		seen[options[i]] = struct{}{}
	}
	votingType := VotingType(str(raw["voting_type"]))
	if votingType != SingleChoice && votingType != Approval {
		return nil, fault.New(fault.SchemaError, "voting_type", "unknown voting type %q", votingType)
	}
	obj, ok := raw["snapshots"].(map[string]any)
	if !ok {
		return nil, fault.New(fault.SchemaError, "snapshots", "expected object got %T", raw["snapshots"])
	}
	wire := make(map[string]string, len(obj))
	for k, v := range obj {
		switch h := v.(type) {
		case string:
			wire[k] = h
		case int64:
			wire[k] = strconv.FormatInt(h, 10)
		default:
			return nil, fault.New(fault.SchemaError, "snapshots."+k, "expected decimal string got %T", v)
		}
	}
	snapshots, err := snapshot.Parse(wire)
	if err != nil {
		return nil, fault.Wrap(fault.SchemaError, "snapshots", err)
	}
	return &Proposal{
		Author:     author,
		Community:  str(raw["community"]),
		Group:      str(raw["group"]),
		Title:      str(raw["title"]),
		Content:    str(raw["content"]),
		VotingType: votingType,
		Options:    options,
		Snapshots:  snapshots,
	}, nil
}

func parseVote(author Author, raw map[string]any) (*Vote, error) {
	obj, ok := raw["powers"].(map[string]any)
	if !ok {
		return nil, fault.New(fault.SchemaError, "powers", "expected object got %T", raw["powers"])
	}
	powers := make(map[string]float64, len(obj))
	for k, v := range obj {
		power, err := decimal(v)
		if err != nil {
			return nil, fault.Wrap(fault.SchemaError, "powers."+k, err)
		}
		powers[k] = power
	}
	total, err := decimal(raw["total_power"])
	if err != nil {
		return nil, fault.Wrap(fault.SchemaError, "total_power", err)
	}
	return &Vote{
		Author:     author,
		Proposal:   str(raw["proposal"]),
		Powers:     powers,
		TotalPower: total,
	}, nil
}

// decimal parses a non-negative finite number from its string or numeric form.
func decimal(value any) (float64, error) {
	var f float64
	switch v := value.(type) {
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid decimal %q", v)
		}
		f = parsed
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case int64:
		f = float64(v)
	case int:
		f = float64(v)
	case float64:
		f = v
	default:
		return 0, fmt.Errorf("expected decimal got %T", value)
	}
	if f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid decimal %v", value)
	}
	return f, nil
}

func integer(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("expected integer got %v", v)
		}
		return int64(v), nil
	case json.Number:
		return v.Int64()
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("expected integer got %T", value)
	}
}
