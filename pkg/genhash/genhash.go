// Package genhash computes the 128-bit generation digests that let the
// control service and an agent agree, without exchanging a full document,
// on whether the agent already holds the latest Deployment/DeploymentState.
// The original implementation hashes the document's canonical wire
// encoding (make_generation_hash(wire_encode(doc)) in
// flocker/control/_persistence.py); this package follows the same shape —
// canonicalize, then hash — substituting blake2b for the digest so two
// Go processes on different platforms always agree on the bytes.
package genhash

import (
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/cuemby/vessel/pkg/metrics"
	"github.com/cuemby/vessel/pkg/model"
)

// Generation is a 128-bit digest of a document's contents. Two documents
// that are Equal always hash to the same Generation; the converse isn't
// guaranteed (it's a hash), but a collision is not a correctness concern
// here — at worst it causes one unnecessary full resync.
type Generation [16]byte

// IsZero reports whether g is the unset Generation, used as the sentinel
// for "this peer has never successfully applied anything yet".
func (g Generation) IsZero() bool {
	return g == Generation{}
}

func (g Generation) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, 32)
	for i, b := range g {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// HashDeployment computes the Generation of a Deployment. Iteration order
// of the underlying maps never affects the result: nodes and their nested
// applications are canonicalized by sorted key before hashing.
func HashDeployment(d model.Deployment) Generation {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GenerationHashDuration)

	buf := newCanonicalBuffer()
	ids := d.SortedNodeUUIDs()
	buf.writeInt(len(ids))
	for _, id := range ids {
		node := d.Nodes[id]
		buf.writeString(id.String())
		buf.writeString(node.Hostname)
		writeApplications(buf, node.Applications)
	}
	return sum(buf.Bytes())
}

// HashDeploymentState computes the Generation of a DeploymentState.
func HashDeploymentState(s model.DeploymentState) Generation {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.GenerationHashDuration)

	buf := newCanonicalBuffer()
	ids := s.SortedNodeUUIDs()
	buf.writeInt(len(ids))
	for _, id := range ids {
		ns := s.Nodes[id]
		buf.writeString(id)
		buf.writeString(ns.Hostname)
		writeApplications(buf, ns.Applications)
		writeStringMap(buf, ns.Devices)
		writeStringMap(buf, ns.Paths)
		writeManifestations(buf, ns.Manifestations)
	}

	nmdIDs := make([]string, 0, len(s.NonManifestDatasets))
	for id := range s.NonManifestDatasets {
		nmdIDs = append(nmdIDs, id)
	}
	sort.Strings(nmdIDs)
	buf.writeInt(len(nmdIDs))
	for _, id := range nmdIDs {
		nmd := s.NonManifestDatasets[id]
		buf.writeString(id)
		datasetIDs := make([]string, 0, len(nmd.DatasetIDs))
		for dsID := range nmd.DatasetIDs {
			datasetIDs = append(datasetIDs, dsID)
		}
		sort.Strings(datasetIDs)
		buf.writeInt(len(datasetIDs))
		for _, dsID := range datasetIDs {
			buf.writeString(dsID)
		}
	}

	writeStringMap(buf, s.Eras)
	return sum(buf.Bytes())
}

func writeApplications(buf *canonicalBuffer, apps map[string]model.Application) {
	names := make([]string, 0, len(apps))
	for name := range apps {
		names = append(names, name)
	}
	sort.Strings(names)
	buf.writeInt(len(names))
	for _, name := range names {
		app := apps[name]
		buf.writeString(name)
		buf.writeString(app.Image)
		buf.writeBool(app.Running)
	}
}

func writeManifestations(buf *canonicalBuffer, mans map[string]model.Manifestation) {
	ids := make([]string, 0, len(mans))
	for id := range mans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	buf.writeInt(len(ids))
	for _, id := range ids {
		m := mans[id]
		buf.writeString(id)
		buf.writeString(m.DatasetID)
		buf.writeBool(m.Primary)
	}
}

func writeStringMap(buf *canonicalBuffer, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	buf.writeInt(len(keys))
	for _, k := range keys {
		buf.writeString(k)
		buf.writeString(m[k])
	}
}

func sum(data []byte) Generation {
	digest := blake2b.Sum256(data)
	var g Generation
	copy(g[:], digest[:16])
	return g
}
