package configstore

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/vessel/pkg/model"
)

// yamlDeployment is the on-disk shape of an authored Deployment, following
// the apiVersion/kind/spec envelope cmd/warren/apply.go uses for its
// resources, specialized to the cluster's single configuration document
// rather than per-resource CRUD.
type yamlDeployment struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Nodes      []yamlNode `yaml:"nodes"`
}

type yamlNode struct {
	UUID         string                  `yaml:"uuid"`
	Hostname     string                  `yaml:"hostname"`
	Applications map[string]yamlWorkload `yaml:"applications"`
}

type yamlWorkload struct {
	Image   string `yaml:"image"`
	Running bool   `yaml:"running"`
}

// loadDeploymentFile reads and parses path into a model.Deployment.
func loadDeploymentFile(path string) (model.Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Deployment{}, fmt.Errorf("configstore: read %s: %w", path, err)
	}

	var doc yamlDeployment
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return model.Deployment{}, fmt.Errorf("configstore: parse %s: %w", path, err)
	}
	if doc.Kind != "" && doc.Kind != "Deployment" {
		return model.Deployment{}, fmt.Errorf("configstore: %s: unsupported kind %q, expected Deployment", path, doc.Kind)
	}

	result := model.NewDeployment()
	for _, n := range doc.Nodes {
		id, err := uuid.Parse(n.UUID)
		if err != nil {
			return model.Deployment{}, fmt.Errorf("configstore: %s: node %q: invalid uuid: %w", path, n.Hostname, err)
		}
		apps := make(map[string]model.Application, len(n.Applications))
		for name, w := range n.Applications {
			apps[name] = model.Application{Name: name, Image: w.Image, Running: w.Running}
		}
		result = result.WithNode(model.Node{UUID: id, Hostname: n.Hostname, Applications: apps})
	}
	return result, nil
}

// marshalDeployment renders d back to the same YAML shape loadDeploymentFile
// reads, used by the `vessel config dump` debugging path.
func marshalDeployment(d model.Deployment) ([]byte, error) {
	doc := yamlDeployment{APIVersion: "vessel/v1", Kind: "Deployment"}
	for _, id := range d.SortedNodeUUIDs() {
		n := d.Nodes[id]
		apps := make(map[string]yamlWorkload, len(n.Applications))
		for name, app := range n.Applications {
			apps[name] = yamlWorkload{Image: app.Image, Running: app.Running}
		}
		doc.Nodes = append(doc.Nodes, yamlNode{UUID: n.UUID.String(), Hostname: n.Hostname, Applications: apps})
	}
	return yaml.Marshal(doc)
}
