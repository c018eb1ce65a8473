// internal/common/camunda/process.go
package camunda

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ProcessDefinition is what the worker manager needs to know about one BPMN file.
type ProcessDefinition struct {
	File      string
	ProcessID string
	TaskTypes []string
}

type bpmnDefinitions struct {
	Processes []bpmnProcess `xml:"process"`
}

type bpmnProcess struct {
	ID    string            `xml:"id,attr"`
	Tasks []bpmnServiceTask `xml:"serviceTask"`
}

type bpmnServiceTask struct {
	ID             string `xml:"id,attr"`
	TaskDefinition struct {
		Type string `xml:"type,attr"`
	} `xml:"extensionElements>taskDefinition"`
}

// LoadProcessDefinitions parses every .bpmn file in dir, in file name order.
func LoadProcessDefinitions(dir string) ([]ProcessDefinition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read process directory: %w", err)
	}

	var defs []ProcessDefinition
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".bpmn") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		parsed, err := parseProcessFile(path)
		if err != nil {
			return nil, err
		}
		defs = append(defs, parsed...)
	}
	sort.SliceStable(defs, func(i, j int) bool { return defs[i].File < defs[j].File })
	return defs, nil
}

func parseProcessFile(path string) ([]ProcessDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc bpmnDefinitions
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(doc.Processes) == 0 {
		return nil, fmt.Errorf("%s defines no process", path)
	}

	out := make([]ProcessDefinition, 0, len(doc.Processes))
	for _, p := range doc.Processes {
		def := ProcessDefinition{File: path, ProcessID: p.ID}
		for _, t := range p.Tasks {
			if t.TaskDefinition.Type == "" {
				return nil, fmt.Errorf("%s: service task %s has no task type", path, t.ID)
			}
			def.TaskTypes = append(def.TaskTypes, t.TaskDefinition.Type)
		}
		out = append(out, def)
	}
	return out, nil
}

// UnhandledTaskTypes lists task types used by defs that no registered worker serves.
func UnhandledTaskTypes(defs []ProcessDefinition, registered []string) []string {
	known := make(map[string]struct{}, len(registered))
	for _, t := range registered {
		known[t] = struct{}{}
	}
	seen := map[string]struct{}{}
	var missing []string
	for _, d := range defs {
		for _, t := range d.TaskTypes {
			if _, ok := known[t]; ok {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			missing = append(missing, t)
		}
	}
	sort.Strings(missing)
	return missing
}

// DeployProcesses deploys each file once, retrying transient gateway failures.
func (c *Client) DeployProcesses(ctx context.Context, defs []ProcessDefinition) error {
	deployed := map[string]bool{}
	for _, d := range defs {
		if deployed[d.File] {
			continue
		}
		file := d.File
		err := c.ExecuteWithRetry(ctx, func(ctx context.Context) error {
			_, err := c.client.NewDeployResourceCommand().AddResourceFile(file).Send(ctx)
			return err
		}, "deploy "+filepath.Base(file))
		if err != nil {
			return err
		}
		deployed[file] = true
	}
	return nil
}

// StartProcess creates an instance of the latest version of processID and returns its key.
// A retried create can start a second instance; ingest-upload merges idempotently.
func (c *Client) StartProcess(ctx context.Context, processID string, variables interface{}) (int64, error) {
	var key int64
	err := c.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		cmd, err := c.client.NewCreateInstanceCommand().BPMNProcessId(processID).LatestVersion().VariablesFromObject(variables)
		if err != nil {
			return err
		}
		resp, err := cmd.Send(ctx)
		if err != nil {
			return err
		}
		key = resp.GetProcessInstanceKey()
		return nil
	}, "start "+processID)
	return key, err
}
