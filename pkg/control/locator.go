package control

import (
	"context"
	"fmt"

	"github.com/cuemby/vessel/pkg/clusterstate"
	"github.com/cuemby/vessel/pkg/model"
	"github.com/cuemby/vessel/pkg/protocol"
	"github.com/cuemby/vessel/pkg/wire"
)

// BuildLocator returns the command dispatch table a control-side
// Connection uses to handle the commands agents issue (Version, NoOp,
// SetNodeEra, NodeState — spec.md 4.A). connID identifies the connection
// these handlers run on, so state mutations land against the right
// cluster-state slot; pkg/protocol.NewConnection assigns connection IDs,
// so a Locator is built fresh per connection rather than shared.
func (e *Engine) BuildLocator(connID clusterstate.ConnectionID) *protocol.Locator {
	loc := protocol.NewLocator()

	loc.Register(protocol.CommandVersion, protocol.Handler{
		Result: wire.VersionResultArgs(),
		Func: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"major": int64(1)}, nil
		},
	})

	loc.Register(protocol.CommandNoOp, protocol.Handler{
		Func: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})

	loc.Register(protocol.CommandSetNodeEra, protocol.Handler{
		Args: wire.SetNodeEraArgs(),
		Func: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			nodeUUID, _ := args["node_uuid"].(string)
			era, _ := args["era"].(string)
			e.SetNodeEra(nodeUUID, era, connID)
			return map[string]any{}, nil
		},
	})

	loc.Register(protocol.CommandNodeState, protocol.Handler{
		Args: wire.NodeStateArgs(),
		Func: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			raw, _ := args["state_changes"].([]any)
			changes, err := decodeStateChanges(raw)
			if err != nil {
				return nil, err
			}
			e.ApplyNodeState(changes, connID)
			return map[string]any{}, nil
		},
	})

	return loc
}

func decodeStateChanges(raw []any) ([]clusterstate.Change, error) {
	changes := make([]clusterstate.Change, 0, len(raw))
	for _, item := range raw {
		switch v := item.(type) {
		case *model.NodeState:
			changes = append(changes, clusterstate.NodeStateChange{UUID: v.UUID, State: *v})
		case *model.NonManifestDatasets:
			changes = append(changes, clusterstate.NonManifestChange{UUID: v.UUID, Dataset: *v})
		default:
			return nil, fmt.Errorf("control: unexpected state_changes element type %T", item)
		}
	}
	return changes, nil
}
