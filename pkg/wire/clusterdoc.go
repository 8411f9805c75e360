package wire

import (
	"fmt"

	"github.com/cuemby/vessel/pkg/diff"
	"github.com/cuemby/vessel/pkg/genhash"
	"github.com/cuemby/vessel/pkg/model"
)

// Document type tags for the SerializableArgument instances below. Values
// are arbitrary but must stay stable across a running cluster's lifetime
// since they appear on the wire.
const (
	tagDeployment = iota + 1
	tagDeploymentState
	tagDeploymentDiff
	tagDeploymentStateDiff
	tagNodeState
	tagNonManifestDatasets
)

// Every document below is passed around as a pointer so SerializableArgument's
// identity-keyed EncodeCache (spec §4.A/§9, "cache is keyed by object
// identity... documents are value-typed so identical payloads from two
// sources miss the cache, which is acceptable") has something to key on;
// pkg/control always broadcasts the same *model.Deployment pointer to every
// connection within one pass.

var deploymentDocType = DocumentType{
	Tag: tagDeployment,
	Matches: func(v any) bool {
		_, ok := v.(*model.Deployment)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		d, ok := v.(*model.Deployment)
		if !ok {
			return nil, fmt.Errorf("%w: expected *model.Deployment, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*d)
	},
	Decode: func(data []byte) (any, error) {
		var d model.Deployment
		if err := Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, nil
	},
}

var deploymentStateDocType = DocumentType{
	Tag: tagDeploymentState,
	Matches: func(v any) bool {
		_, ok := v.(*model.DeploymentState)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		s, ok := v.(*model.DeploymentState)
		if !ok {
			return nil, fmt.Errorf("%w: expected *model.DeploymentState, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*s)
	},
	Decode: func(data []byte) (any, error) {
		var s model.DeploymentState
		if err := Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return &s, nil
	},
}

var deploymentDiffDocType = DocumentType{
	Tag: tagDeploymentDiff,
	Matches: func(v any) bool {
		_, ok := v.(*diff.DeploymentDiff)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		d, ok := v.(*diff.DeploymentDiff)
		if !ok {
			return nil, fmt.Errorf("%w: expected *diff.DeploymentDiff, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*d)
	},
	Decode: func(data []byte) (any, error) {
		var d diff.DeploymentDiff
		if err := Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, nil
	},
}

var deploymentStateDiffDocType = DocumentType{
	Tag: tagDeploymentStateDiff,
	Matches: func(v any) bool {
		_, ok := v.(*diff.DeploymentStateDiff)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		d, ok := v.(*diff.DeploymentStateDiff)
		if !ok {
			return nil, fmt.Errorf("%w: expected *diff.DeploymentStateDiff, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*d)
	},
	Decode: func(data []byte) (any, error) {
		var d diff.DeploymentStateDiff
		if err := Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, nil
	},
}

var nodeStateDocType = DocumentType{
	Tag: tagNodeState,
	Matches: func(v any) bool {
		_, ok := v.(*model.NodeState)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		ns, ok := v.(*model.NodeState)
		if !ok {
			return nil, fmt.Errorf("%w: expected *model.NodeState, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*ns)
	},
	Decode: func(data []byte) (any, error) {
		var ns model.NodeState
		if err := Unmarshal(data, &ns); err != nil {
			return nil, err
		}
		return &ns, nil
	},
}

var nonManifestDocType = DocumentType{
	Tag: tagNonManifestDatasets,
	Matches: func(v any) bool {
		_, ok := v.(*model.NonManifestDatasets)
		return ok
	},
	Encode: func(v any) ([]byte, error) {
		nmd, ok := v.(*model.NonManifestDatasets)
		if !ok {
			return nil, fmt.Errorf("%w: expected *model.NonManifestDatasets, got %T", ErrTypeMismatch, v)
		}
		return Marshal(*nmd)
	},
	Decode: func(data []byte) (any, error) {
		var nmd model.NonManifestDatasets
		if err := Unmarshal(data, &nmd); err != nil {
			return nil, err
		}
		return &nmd, nil
	},
}

// GenerationArgument serializes a genhash.Generation as its 16 raw bytes.
type GenerationArgument struct{}

func (GenerationArgument) Serialize(value any) ([]byte, error) {
	g, ok := value.(genhash.Generation)
	if !ok {
		return nil, fmt.Errorf("%w: expected genhash.Generation, got %T", ErrTypeMismatch, value)
	}
	out := make([]byte, len(g))
	copy(out, g[:])
	return out, nil
}

func (GenerationArgument) Deserialize(data []byte) (any, error) {
	var g genhash.Generation
	if len(data) != len(g) {
		return nil, fmt.Errorf("%w: generation must be %d bytes, got %d", ErrTypeMismatch, len(g), len(data))
	}
	copy(g[:], data)
	return g, nil
}

// DeploymentArgument returns the Big/SerializableArgument pair a
// configuration document is sent under. cache may be nil when only
// decoding (Deserialize never consults it).
func DeploymentArgument(cache *EncodeCache) ArgumentType {
	return Big{Inner: SerializableArgument{Types: []DocumentType{deploymentDocType}, Cache: cache}}
}

// DeploymentStateArgument is DeploymentArgument's observed-state counterpart.
func DeploymentStateArgument(cache *EncodeCache) ArgumentType {
	return Big{Inner: SerializableArgument{Types: []DocumentType{deploymentStateDocType}, Cache: cache}}
}

// DeploymentDiffArgument wraps a *diff.DeploymentDiff for the wire.
func DeploymentDiffArgument(cache *EncodeCache) ArgumentType {
	return Big{Inner: SerializableArgument{Types: []DocumentType{deploymentDiffDocType}, Cache: cache}}
}

// DeploymentStateDiffArgument wraps a *diff.DeploymentStateDiff for the wire.
func DeploymentStateDiffArgument(cache *EncodeCache) ArgumentType {
	return Big{Inner: SerializableArgument{Types: []DocumentType{deploymentStateDiffDocType}, Cache: cache}}
}

// StateChangeArgument is the NodeState command's state_changes list
// element type: either a *model.NodeState or a *model.NonManifestDatasets,
// matching spec §4.A's `[NodeState | NonManifestDatasets, …]`.
func StateChangeArgument() ArgumentType {
	return Big{Inner: ListOf{Inner: SerializableArgument{Types: []DocumentType{nodeStateDocType, nonManifestDocType}}}}
}

// ClusterStatusArgs are the argument specs for the ctrl→agent ClusterStatus
// command (spec §4.A). cache scopes SerializableArgument's encode cache to
// one broadcast pass; pass a fresh *EncodeCache per pass, nil to decode.
func ClusterStatusArgs(cache *EncodeCache) []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "configuration", Type: DeploymentArgument(cache)},
		{Name: "configuration_generation", Type: GenerationArgument{}},
		{Name: "state", Type: DeploymentStateArgument(cache)},
		{Name: "state_generation", Type: GenerationArgument{}},
		{Name: "eliot_context", Type: BytesArgument{}},
	}
}

// ClusterStatusDiffArgs are the argument specs for ClusterStatusDiff.
func ClusterStatusDiffArgs(cache *EncodeCache) []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "configuration_diff", Type: DeploymentDiffArgument(cache)},
		{Name: "start_configuration_generation", Type: GenerationArgument{}},
		{Name: "end_configuration_generation", Type: GenerationArgument{}},
		{Name: "state_diff", Type: DeploymentStateDiffArgument(cache)},
		{Name: "start_state_generation", Type: GenerationArgument{}},
		{Name: "end_state_generation", Type: GenerationArgument{}},
		{Name: "eliot_context", Type: BytesArgument{}},
	}
}

// ClusterStatusResultArgs is the result shape shared by ClusterStatus and
// ClusterStatusDiff: the agent's now-current generations.
func ClusterStatusResultArgs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "current_configuration_generation", Type: GenerationArgument{}},
		{Name: "current_state_generation", Type: GenerationArgument{}},
	}
}

// NodeStateArgs are the argument specs for the agent→ctrl NodeState command.
func NodeStateArgs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "state_changes", Type: StateChangeArgument()},
		{Name: "eliot_context", Type: BytesArgument{}},
	}
}

// SetNodeEraArgs are the argument specs for SetNodeEra.
func SetNodeEraArgs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "node_uuid", Type: StringArgument{}},
		{Name: "era", Type: StringArgument{}},
	}
}

// VersionResultArgs is the result shape of the Version command.
func VersionResultArgs() []ArgumentSpec {
	return []ArgumentSpec{
		{Name: "major", Type: Int64Argument{}},
	}
}
