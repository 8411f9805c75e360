package clusterstate

import (
	"sort"

	"github.com/cuemby/vessel/pkg/model"
)

// canonicalNodeState and canonicalNonManifest convert a document into a
// msgpack-stable shape (sorted slices instead of maps) before
// fingerprinting — Go's map iteration order is randomized per run, so
// marshaling a map directly would make fingerprintNodeState's result
// depend on which iteration order msgpack happened to walk, defeating the
// "was this actually different" check ApplyChanges relies on.

type canonicalApplication struct {
	Name    string
	Image   string
	Running bool
}

type canonicalStringEntry struct {
	Key   string
	Value string
}

type canonicalManifestation struct {
	DatasetID string
	Primary   bool
}

type canonicalNodeStateDoc struct {
	UUID           string
	Hostname       string
	Applications   []canonicalApplication
	Devices        []canonicalStringEntry
	Paths          []canonicalStringEntry
	Manifestations []canonicalManifestation
}

func canonicalNodeState(ns model.NodeState) canonicalNodeStateDoc {
	doc := canonicalNodeStateDoc{UUID: ns.UUID, Hostname: ns.Hostname}

	names := make([]string, 0, len(ns.Applications))
	for name := range ns.Applications {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		app := ns.Applications[name]
		doc.Applications = append(doc.Applications, canonicalApplication{Name: app.Name, Image: app.Image, Running: app.Running})
	}

	doc.Devices = canonicalStringMap(ns.Devices)
	doc.Paths = canonicalStringMap(ns.Paths)

	ids := make([]string, 0, len(ns.Manifestations))
	for id := range ns.Manifestations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		m := ns.Manifestations[id]
		doc.Manifestations = append(doc.Manifestations, canonicalManifestation{DatasetID: m.DatasetID, Primary: m.Primary})
	}

	return doc
}

type canonicalNonManifestDoc struct {
	UUID       string
	DatasetIDs []string
}

func canonicalNonManifest(nmd model.NonManifestDatasets) canonicalNonManifestDoc {
	ids := make([]string, 0, len(nmd.DatasetIDs))
	for id := range nmd.DatasetIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return canonicalNonManifestDoc{UUID: nmd.UUID, DatasetIDs: ids}
}

func canonicalStringMap(m map[string]string) []canonicalStringEntry {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]canonicalStringEntry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, canonicalStringEntry{Key: k, Value: m[k]})
	}
	return entries
}
