// Package normalize turns a raw feed payload into a canonical worldstate.Snapshot.
//
// The feed encodes identifiers as {"$oid": "..."} objects and timestamps as
// {"$date": {"$numberLong": "<millis>"}}. Both are rewritten into the plain
// shapes used everywhere else before the payload is decoded into typed
// entities. Goals are classified by the fields they carry, and bounty goals
// are promoted into the alert list.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	pkgerrors "github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Normalize parses raw for region. Any structural mismatch is returned as a
// *errors.MalformedFeedError.
func Normalize(region worldstate.Region, raw []byte) (*worldstate.Snapshot, error) {
	n := &normalizer{region: region}

	tree, err := n.parse(raw)
	if err != nil {
		return nil, err
	}
	if err := n.validate(tree); err != nil {
		return nil, err
	}
	n.classifyGoals(tree)

	canonical, err := json.Marshal(tree)
	if err != nil {
		return nil, n.malformed("", "re-encode failed", err)
	}

	snap := &worldstate.Snapshot{}
	if err := json.Unmarshal(canonical, snap); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, n.malformed(typeErr.Field, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value), err)
		}
		return nil, n.malformed("", err.Error(), err)
	}
	snap.Region = region

	if err := n.promoteBounties(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

type normalizer struct {
	region worldstate.Region
}

func (n *normalizer) malformed(path, reason string, err error) error {
	return pkgerrors.NewMalformedFeedError(n.region.String(), path, reason, err)
}

func (n *normalizer) parse(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, n.malformed("", "invalid json", err)
	}
	obj, ok := root.(map[string]any)
	if !ok {
		return nil, n.malformed("", "payload is not an object", nil)
	}

	rewritten, err := rewrite(obj)
	if err != nil {
		return nil, n.malformed("", err.Error(), err)
	}
	return rewritten.(map[string]any), nil
}

// rewrite replaces identifier and date markers throughout the tree and
// renames "_id" keys to "id".
func rewrite(v any) (any, error) {
	switch node := v.(type) {
	case map[string]any:
		if id, ok := markerID(node); ok {
			return id, nil
		}
		if raw, ok := node["$date"]; ok && len(node) == 1 {
			sec, err := dateSeconds(raw)
			if err != nil {
				return nil, err
			}
			return map[string]any{"sec": sec, "usec": 0}, nil
		}
		out := make(map[string]any, len(node))
		for k, child := range node {
			rc, err := rewrite(child)
			if err != nil {
				return nil, err
			}
			if k == "_id" {
				k = "id"
			}
			out[k] = rc
		}
		return out, nil
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			rc, err := rewrite(child)
			if err != nil {
				return nil, err
			}
			out[i] = rc
		}
		return out, nil
	default:
		return v, nil
	}
}

func markerID(node map[string]any) (string, bool) {
	if len(node) != 1 {
		return "", false
	}
	for _, key := range []string{"$oid", "$id"} {
		if s, ok := node[key].(string); ok {
			return s, true
		}
	}
	return "", false
}

func dateSeconds(raw any) (int64, error) {
	if inner, ok := raw.(map[string]any); ok {
		raw = inner["$numberLong"]
	}
	var millis int64
	var err error
	switch v := raw.(type) {
	case string:
		millis, err = strconv.ParseInt(v, 10, 64)
	case json.Number:
		millis, err = v.Int64()
	default:
		return 0, fmt.Errorf("unsupported $date value %v", raw)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid $date value: %w", err)
	}
	return millis / 1000, nil
}
