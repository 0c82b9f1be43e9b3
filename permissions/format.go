package permissions

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// IAMPolicyDocument represents an AWS IAM policy document.
type IAMPolicyDocument struct {
	Version   string         `json:"Version"`
	Statement []IAMStatement `json:"Statement"`
}

// IAMStatement represents a single statement in an IAM policy.
type IAMStatement struct {
	Sid       string                       `json:"Sid,omitempty"`
	Effect    string                       `json:"Effect"`
	Principal map[string]string            `json:"Principal,omitempty"`
	Action    []string                     `json:"Action"`
	Resource  []string                     `json:"Resource,omitempty"`
	Condition map[string]map[string]string `json:"Condition,omitempty"`
}

// groupByResource merges the actions of permissions sharing a resource
// pattern, keeping first-seen resource order.
func groupByResource(perms []FeaturePermissions) []Permission {
	byResource := make(map[string]*Permission)
	var order []string

	for _, fp := range perms {
		for _, p := range fp.Permissions {
			if existing, ok := byResource[p.Resource]; ok {
				existing.Actions = append(existing.Actions, p.Actions...)
				continue
			}
			byResource[p.Resource] = &Permission{
				Service:  p.Service,
				Actions:  append([]string{}, p.Actions...),
				Resource: p.Resource,
			}
			order = append(order, p.Resource)
		}
	}

	result := make([]Permission, 0, len(order))
	for _, resource := range order {
		p := byResource[resource]
		p.Actions = dedupeAndSort(p.Actions)
		result = append(result, *p)
	}
	return result
}

func dedupeAndSort(strs []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(strs))
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	sort.Strings(result)
	return result
}

// FormatHuman lists permissions grouped by principal.
func FormatHuman(perms []FeaturePermissions) string {
	if len(perms) == 0 {
		return "No permissions to display.\n"
	}

	var sb strings.Builder
	sb.WriteString("embedrelay IAM permissions\n")
	sb.WriteString("==========================\n")

	for _, principal := range []Principal{PrincipalEmbedRole, PrincipalRelay} {
		header := false
		for _, fp := range perms {
			if fp.Principal != principal {
				continue
			}
			if !header {
				fmt.Fprintf(&sb, "\n[%s]\n", principal)
				header = true
			}
			optional := ""
			if fp.Optional {
				optional = " [optional]"
			}
			fmt.Fprintf(&sb, "\n  Feature: %s%s\n", fp.Feature, optional)
			for _, p := range fp.Permissions {
				fmt.Fprintf(&sb, "    %s\n", strings.Join(p.Actions, ", "))
				fmt.Fprintf(&sb, "    Resource: %s\n", p.Resource)
			}
		}
	}
	return sb.String()
}

// FormatJSON returns an identity policy granting the permissions, one
// statement per resource pattern.
func FormatJSON(perms []FeaturePermissions) (string, error) {
	statements := []IAMStatement{}
	for i, p := range groupByResource(perms) {
		statements = append(statements, IAMStatement{
			Sid:      fmt.Sprintf("EmbedRelay%d", i+1),
			Effect:   "Allow",
			Action:   p.Actions,
			Resource: []string{p.Resource},
		})
	}
	return marshalPolicy(IAMPolicyDocument{Version: "2012-10-17", Statement: statements})
}

// FormatTrustPolicy returns a trust policy letting tokens issued by the
// Cognito user pool provider for clientID assume the embed role. provider is
// the IAM OIDC provider ARN, e.g.
// arn:aws:iam::123456789012:oidc-provider/cognito-idp.us-east-1.amazonaws.com/us-east-1_abc.
func FormatTrustPolicy(provider, clientID string) (string, error) {
	host := provider
	if i := strings.Index(provider, "oidc-provider/"); i >= 0 {
		host = provider[i+len("oidc-provider/"):]
	}
	st := IAMStatement{
		Effect:    "Allow",
		Principal: map[string]string{"Federated": provider},
		Action:    []string{TrustAction},
	}
	if clientID != "" {
		st.Condition = map[string]map[string]string{
			"StringEquals": {host + ":aud": clientID},
		}
	}
	return marshalPolicy(IAMPolicyDocument{Version: "2012-10-17", Statement: []IAMStatement{st}})
}

func marshalPolicy(doc IAMPolicyDocument) (string, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
