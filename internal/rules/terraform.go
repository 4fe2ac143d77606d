package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/catherinevee/driftscan/internal/models"
)

var (
	openCIDRRe     = regexp.MustCompile(`(?i)cidr_blocks\s*=\s*\[?\s*["']?0\.0\.0\.0/0["']?`)
	sgResourceRe   = regexp.MustCompile(`resource\s+["']aws_security_group["']\s+["']([^"']+)["']`)
	amiIDRe        = regexp.MustCompile(`(?i)ami-[a-f0-9]{8,17}`)
)

// secretPatterns pair a detection regex with the credential kind it
// indicates.
var secretPatterns = []struct {
	re   *regexp.Regexp
	kind string
}{
	{regexp.MustCompile(`AKIA[0-9A-Z]{16}`), "AWS Access Key ID"},
	{regexp.MustCompile(`(?i)aws_secret_access_key\s*=\s*["'][^"']+["']`), "AWS Secret Access Key"},
	{regexp.MustCompile(`(?i)api[_-]?key\s*[:=]\s*["']?[a-zA-Z0-9]{20,}["']?`), "API Key"},
	{regexp.MustCompile(`(?i)password\s*[:=]\s*["'][^"']{8,}["']`), "Password"},
	{regexp.MustCompile(`(?i)secret[_-]?key\s*[:=]\s*["'][^"']{10,}["']`), "Secret Key"},
}

// taggableResources are the AWS resource types expected to carry a tags
// attribute.
var taggableResources = map[string]bool{
	"aws_instance":       true,
	"aws_security_group": true,
	"aws_s3_bucket":      true,
	"aws_lb":             true,
	"aws_ecs_service":    true,
}

func (e *Engine) detectTerraform(content string) []Issue {
	issues := []Issue{}
	issues = append(issues, checkUnrestrictedSecurityGroup(content)...)
	issues = append(issues, checkHardcodedSecrets(content)...)
	issues = append(issues, checkOutdatedAMI(content)...)

	// Block-structured checks go through the HCL parser. A file that does
	// not parse simply skips them; the line-based rules above already ran.
	if body := parseHCLBody(content); body != nil {
		issues = append(issues, checkMissingTags(body)...)
		issues = append(issues, checkInstanceCountDrift(body)...)
	}
	return issues
}

func parseHCLBody(content string) *hclsyntax.Body {
	file, diags := hclsyntax.ParseConfig([]byte(content), "main.tf", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() || file == nil {
		return nil
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil
	}
	return body
}

// checkUnrestrictedSecurityGroup flags security group rules open to the
// entire internet.
func checkUnrestrictedSecurityGroup(content string) []Issue {
	var issues []Issue
	lines := strings.Split(content, "\n")

	for _, m := range findPattern(content, openCIDRRe) {
		// Walk back up to 20 lines to attribute the finding to its
		// security group block.
		resource := "aws_security_group.unknown"
		for i := max(0, m.lineNum-20); i < m.lineNum && i < len(lines); i++ {
			if sg := sgResourceRe.FindStringSubmatch(lines[i]); sg != nil {
				resource = "aws_security_group." + sg[1]
			}
		}

		issues = append(issues, Issue{
			RuleID:          "tf-unrestricted-sg",
			Title:           "Unrestricted Security Group Rule",
			Description:     fmt.Sprintf("Security group allows ingress from 0.0.0.0/0 (entire internet) at line %d. This exposes resources to potential attacks.", m.lineNum),
			Severity:        models.SeverityHigh,
			Resource:        resource,
			RawDetectedData: map[string]interface{}{
				"line":        m.line,
				"line_number": m.lineNum,
				"pattern":     "0.0.0.0/0",
			},
		})
	}
	return issues
}

// checkHardcodedSecrets flags credential material committed to the
// configuration. The matched secret is masked in the reported data.
func checkHardcodedSecrets(content string) []Issue {
	var issues []Issue
	for _, sp := range secretPatterns {
		for _, m := range findPattern(content, sp.re) {
			masked := "***"
			if len(m.match) > 8 {
				masked = m.match[:8] + "..."
			}

			issues = append(issues, Issue{
				RuleID:          "tf-hardcoded-secret",
				Title:           fmt.Sprintf("Hardcoded %s Detected", sp.kind),
				Description:     fmt.Sprintf("Potential hardcoded %s found at line %d. Secrets should be stored in environment variables, secrets managers, or Terraform variables, never in code.", strings.ToLower(sp.kind), m.lineNum),
				Severity:        models.SeverityCritical,
				Resource:        "terraform_config",
				RawDetectedData: map[string]interface{}{
					"secret_type": sp.kind,
					"line_number": m.lineNum,
					"line":        strings.Replace(m.line, m.match, masked, 1),
				},
			})
		}
	}
	return issues
}

// checkOutdatedAMI flags hardcoded AMI IDs. Data-source and variable
// references are fine; only a literal ID is a drift risk. Flagged at most
// once per file.
func checkOutdatedAMI(content string) []Issue {
	amiID := amiIDRe.FindString(content)
	if amiID == "" {
		return nil
	}

	for lineNum, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, amiID) {
			continue
		}
		if strings.Contains(line, "data.aws_ami") || strings.Contains(line, "var.") {
			continue
		}
		return []Issue{{
			RuleID:          "tf-outdated-ami",
			Title:           "Hardcoded AMI ID Detected",
			Description:     fmt.Sprintf("AMI %s is hardcoded at line %d. Hardcoded AMI IDs can become outdated and pose security risks. Consider using data sources or variables to fetch the latest AMI dynamically.", amiID, lineNum+1),
			Severity:        models.SeverityMedium,
			Resource:        "aws_instance.with_ami",
			RawDetectedData: map[string]interface{}{
				"ami_id":      amiID,
				"line_number": lineNum + 1,
			},
		}}
	}
	return nil
}

// checkMissingTags flags taggable resources without a tags attribute.
func checkMissingTags(body *hclsyntax.Body) []Issue {
	var issues []Issue
	for _, block := range body.Blocks {
		if block.Type != "resource" || len(block.Labels) < 2 {
			continue
		}
		resourceType := block.Labels[0]
		if !taggableResources[resourceType] {
			continue
		}
		if hasAttributeOrBlock(block.Body, "tags") {
			continue
		}

		resource := resourceType + "." + block.Labels[1]
		issues = append(issues, Issue{
			RuleID:          "tf-missing-tags",
			Title:           "Resource Missing Tags",
			Description:     fmt.Sprintf("Resource %s has no tags block. Tags are essential for cost tracking, ownership and drift auditing.", resource),
			Severity:        models.SeverityMedium,
			Resource:        resource,
			RawDetectedData: map[string]interface{}{
				"resource_type": resourceType,
				"resource_name": block.Labels[1],
			},
		})
	}
	return issues
}

// checkInstanceCountDrift flags autoscaling groups whose desired capacity
// sits at a scaling boundary, a common sign the real fleet has drifted.
func checkInstanceCountDrift(body *hclsyntax.Body) []Issue {
	var issues []Issue
	for _, block := range body.Blocks {
		if block.Type != "resource" || len(block.Labels) < 2 || block.Labels[0] != "aws_autoscaling_group" {
			continue
		}

		minSize, okMin := intAttribute(block.Body, "min_size")
		maxSize, okMax := intAttribute(block.Body, "max_size")
		desired, okDes := intAttribute(block.Body, "desired_capacity")
		if !okMin || !okMax || !okDes {
			continue
		}
		if desired != minSize && desired != maxSize {
			continue
		}

		resource := "aws_autoscaling_group." + block.Labels[1]
		issues = append(issues, Issue{
			RuleID:          "tf-instance-count-drift",
			Title:           "Potential Autoscaling Drift Risk",
			Description:     fmt.Sprintf("ASG %s has desired_capacity (%d) at boundary (min: %d, max: %d). This might indicate actual instances have drifted from desired state.", block.Labels[1], desired, minSize, maxSize),
			Severity:        models.SeverityLow,
			Resource:        resource,
			RawDetectedData: map[string]interface{}{
				"min_size":         minSize,
				"max_size":         maxSize,
				"desired_capacity": desired,
			},
		})
	}
	return issues
}

func hasAttributeOrBlock(body *hclsyntax.Body, name string) bool {
	if _, ok := body.Attributes[name]; ok {
		return true
	}
	for _, b := range body.Blocks {
		if b.Type == name {
			return true
		}
	}
	return false
}

// intAttribute evaluates a literal numeric attribute. Attributes that
// reference variables or expressions are treated as absent.
func intAttribute(body *hclsyntax.Body, name string) (int, bool) {
	attr, ok := body.Attributes[name]
	if !ok {
		return 0, false
	}
	val, diags := attr.Expr.Value(nil)
	if diags.HasErrors() || val.Type() != cty.Number {
		return 0, false
	}
	n, _ := val.AsBigFloat().Int64()
	return int(n), true
}
