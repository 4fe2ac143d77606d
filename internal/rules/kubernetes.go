package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/catherinevee/driftscan/internal/models"
)

var (
	latestImageRe = regexp.MustCompile(`(?i)image:\s*["']?([^"'\s:]+):latest["']?`)
	privilegedRe  = regexp.MustCompile(`(?i)privileged:\s*true`)
	replicasRe    = regexp.MustCompile(`replicas:\s*(\d+)`)
	kindLineRe    = regexp.MustCompile(`kind:\s*([A-Za-z]+)`)
	nameLineRe    = regexp.MustCompile(`name:\s*([A-Za-z0-9-]+)`)
)

// workloadKinds are the kinds whose pod spec lives under
// spec.template.spec.
var workloadKinds = map[string]bool{
	"Deployment":  true,
	"StatefulSet": true,
	"DaemonSet":   true,
	"ReplicaSet":  true,
}

func (e *Engine) detectKubernetes(content string) []Issue {
	issues := []Issue{}
	issues = append(issues, checkLatestImageTag(content)...)
	issues = append(issues, checkPrivilegedContainer(content)...)
	issues = append(issues, checkReplicaMismatch(content)...)

	// Structured checks decode the manifests; undecodable documents are
	// skipped, never fatal.
	docs := decodeManifests(content)
	issues = append(issues, checkMissingResourceLimits(docs)...)
	issues = append(issues, checkHostPathVolumes(docs)...)
	return issues
}

// decodeManifests parses a (possibly multi-document) YAML stream into
// generic maps, dropping documents that fail to decode.
func decodeManifests(content string) []map[string]interface{} {
	var docs []map[string]interface{}
	decoder := yaml.NewDecoder(strings.NewReader(content))
	for {
		var doc map[string]interface{}
		if err := decoder.Decode(&doc); err != nil {
			break
		}
		if doc != nil {
			docs = append(docs, doc)
		}
	}
	return docs
}

// nearestResource walks back from a matched line looking for the owning
// kind and name.
func nearestResource(lines []string, matchLine, lookback int) (kind, name string) {
	for i := max(0, matchLine-lookback); i < matchLine && i < len(lines); i++ {
		if m := kindLineRe.FindStringSubmatch(lines[i]); m != nil {
			kind = m[1]
		}
		if m := nameLineRe.FindStringSubmatch(lines[i]); m != nil {
			name = m[1]
		}
	}
	return kind, name
}

// checkLatestImageTag flags containers pinned to :latest, which makes
// version tracking impossible.
func checkLatestImageTag(content string) []Issue {
	var issues []Issue
	lines := strings.Split(content, "\n")

	for _, m := range findPattern(content, latestImageRe) {
		image := latestImageRe.FindStringSubmatch(m.match)[1]
		kind, name := nearestResource(lines, m.lineNum, 30)
		if kind == "" {
			kind = "Container"
		}
		if name == "" {
			name = image
		}

		issues = append(issues, Issue{
			RuleID:          "k8s-latest-image",
			Title:           "Container Using :latest Image Tag",
			Description:     fmt.Sprintf("Container image %s:latest is using the :latest tag at line %d. This makes version tracking impossible and can lead to unexpected updates and drift.", image, m.lineNum),
			Severity:        models.SeverityMedium,
			Resource:        kind + "/" + name,
			RawDetectedData: map[string]interface{}{
				"image":         image + ":latest",
				"line_number":   m.lineNum,
				"resource_type": kind,
			},
		})
	}
	return issues
}

// checkPrivilegedContainer flags privileged security contexts.
func checkPrivilegedContainer(content string) []Issue {
	var issues []Issue
	lines := strings.Split(content, "\n")

	for _, m := range findPattern(content, privilegedRe) {
		kind, name := nearestResource(lines, m.lineNum, 40)
		if kind == "" {
			kind = "Pod"
		}
		if name == "" {
			name = "unknown"
		}

		issues = append(issues, Issue{
			RuleID:          "k8s-privileged-container",
			Title:           "Privileged Container Detected",
			Description:     fmt.Sprintf("Container in %s/%s runs in privileged mode (line %d). Privileged containers have extensive host access and pose significant security risks.", kind, name, m.lineNum),
			Severity:        models.SeverityCritical,
			Resource:        kind + "/" + name,
			RawDetectedData: map[string]interface{}{
				"line_number":   m.lineNum,
				"resource_type": kind,
				"resource_name": name,
			},
		})
	}
	return issues
}

// checkReplicaMismatch flags replica counts that suggest drift: zero
// (scaled down) or unusually high values.
func checkReplicaMismatch(content string) []Issue {
	var issues []Issue
	lines := strings.Split(content, "\n")

	for _, m := range findPattern(content, replicasRe) {
		count, err := strconv.Atoi(replicasRe.FindStringSubmatch(m.match)[1])
		if err != nil {
			continue
		}
		kind, name := nearestResource(lines, m.lineNum, 20)
		if kind == "" {
			kind = "Deployment"
		}
		if name == "" {
			name = "unknown"
		}
		resource := kind + "/" + name

		switch {
		case count == 0:
			issues = append(issues, Issue{
				RuleID:          "k8s-replica-zero",
				Title:           "Replicas Set to Zero",
				Description:     fmt.Sprintf("%s has replicas set to 0. This might indicate the resource has been scaled down or drifted from desired state.", resource),
				Severity:        models.SeverityLow,
				Resource:        resource,
				RawDetectedData: map[string]interface{}{
					"replicas":    count,
					"line_number": m.lineNum,
				},
			})
		case count > 50:
			issues = append(issues, Issue{
				RuleID:          "k8s-replica-high",
				Title:           "Unusually High Replica Count",
				Description:     fmt.Sprintf("%s has %d replicas configured. This unusually high value might indicate configuration drift or a misconfiguration.", resource, count),
				Severity:        models.SeverityMedium,
				Resource:        resource,
				RawDetectedData: map[string]interface{}{
					"replicas":    count,
					"line_number": m.lineNum,
				},
			})
		}
	}
	return issues
}

// checkMissingResourceLimits flags containers without resource
// requests/limits.
func checkMissingResourceLimits(docs []map[string]interface{}) []Issue {
	var issues []Issue
	for _, doc := range docs {
		kind, _ := doc["kind"].(string)
		name := metadataName(doc)

		for _, container := range podContainers(doc, kind) {
			containerName, _ := container["name"].(string)
			if containerName == "" {
				containerName = "unknown"
			}
			resources, _ := container["resources"].(map[string]interface{})
			hasRequests := nonEmptyMap(resources["requests"])
			hasLimits := nonEmptyMap(resources["limits"])
			resource := kind + "/" + name

			switch {
			case !hasRequests && !hasLimits:
				issues = append(issues, Issue{
					RuleID:          "k8s-missing-resources",
					Title:           "Missing Resource Requests and Limits",
					Description:     fmt.Sprintf("Container %s in %s has no resource requests or limits defined. This can cause unpredictable resource allocation and scheduling issues.", containerName, resource),
					Severity:        models.SeverityHigh,
					Resource:        resource,
					RawDetectedData: map[string]interface{}{
						"container_name": containerName,
						"kind":           kind,
						"resource_name":  name,
					},
				})
			case !hasRequests:
				issues = append(issues, Issue{
					RuleID:          "k8s-missing-requests",
					Title:           "Missing Resource Requests",
					Description:     fmt.Sprintf("Container %s in %s has limits but no requests. Requests help with proper pod scheduling and resource allocation.", containerName, resource),
					Severity:        models.SeverityMedium,
					Resource:        resource,
					RawDetectedData: map[string]interface{}{
						"container_name": containerName,
						"kind":           kind,
						"resource_name":  name,
					},
				})
			}
		}
	}
	return issues
}

// checkHostPathVolumes flags volumes mounting the host filesystem.
func checkHostPathVolumes(docs []map[string]interface{}) []Issue {
	var issues []Issue
	for _, doc := range docs {
		kind, _ := doc["kind"].(string)
		name := metadataName(doc)

		for _, volume := range podVolumes(doc, kind) {
			hostPath, ok := volume["hostPath"].(map[string]interface{})
			if !ok {
				continue
			}
			volumeName, _ := volume["name"].(string)
			path, _ := hostPath["path"].(string)
			resource := kind + "/" + name

			issues = append(issues, Issue{
				RuleID:          "k8s-hostpath-volume",
				Title:           "HostPath Volume Detected",
				Description:     fmt.Sprintf("Volume %s in %s uses HostPath (path: %s). HostPath volumes mount host filesystem and can cause security issues and pod scheduling constraints, leading to potential drift.", volumeName, resource, path),
				Severity:        models.SeverityHigh,
				Resource:        resource,
				RawDetectedData: map[string]interface{}{
					"volume_name":   volumeName,
					"host_path":     path,
					"kind":          kind,
					"resource_name": name,
				},
			})
		}
	}
	return issues
}

func metadataName(doc map[string]interface{}) string {
	if metadata, ok := doc["metadata"].(map[string]interface{}); ok {
		if name, ok := metadata["name"].(string); ok {
			return name
		}
	}
	return "unknown"
}

// podSpec returns the pod spec for a document: spec for Pods,
// spec.template.spec for workload kinds.
func podSpec(doc map[string]interface{}, kind string) map[string]interface{} {
	spec, _ := doc["spec"].(map[string]interface{})
	if spec == nil {
		return nil
	}
	if kind == "Pod" {
		return spec
	}
	if !workloadKinds[kind] {
		return nil
	}
	template, _ := spec["template"].(map[string]interface{})
	if template == nil {
		return nil
	}
	podSpec, _ := template["spec"].(map[string]interface{})
	return podSpec
}

func podContainers(doc map[string]interface{}, kind string) []map[string]interface{} {
	return mapSlice(podSpec(doc, kind), "containers")
}

func podVolumes(doc map[string]interface{}, kind string) []map[string]interface{} {
	return mapSlice(podSpec(doc, kind), "volumes")
}

func mapSlice(m map[string]interface{}, key string) []map[string]interface{} {
	if m == nil {
		return nil
	}
	items, _ := m[key].([]interface{})
	var out []map[string]interface{}
	for _, item := range items {
		if entry, ok := item.(map[string]interface{}); ok {
			out = append(out, entry)
		}
	}
	return out
}

func nonEmptyMap(v interface{}) bool {
	m, ok := v.(map[string]interface{})
	return ok && len(m) > 0
}
