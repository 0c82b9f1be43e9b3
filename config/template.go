package config

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// TemplateID identifies a pre-built configuration template.
type TemplateID string

const (
	// TemplateBasic holds only what the resolver needs.
	TemplateBasic TemplateID = "basic"
	// TemplateServer adds TLS, CORS and rate limiting for the HTTPS server.
	TemplateServer TemplateID = "server"
	// TemplateFull adds audit forwarding, notifications, metrics and a
	// shared DynamoDB rate limit.
	TemplateFull TemplateID = "full"
)

// IsValid returns true if the TemplateID is a known value.
func (t TemplateID) IsValid() bool {
	switch t {
	case TemplateBasic, TemplateServer, TemplateFull:
		return true
	}
	return false
}

// String returns the string representation of the TemplateID.
func (t TemplateID) String() string {
	return string(t)
}

// AllTemplateIDs returns all valid template ID values.
func AllTemplateIDs() []TemplateID {
	return []TemplateID{TemplateBasic, TemplateServer, TemplateFull}
}

// Template describes a pre-built configuration template.
type Template struct {
	ID          TemplateID
	Name        string
	Description string
}

var templateRegistry = map[TemplateID]Template{
	TemplateBasic: {
		ID:          TemplateBasic,
		Name:        "Basic",
		Description: "Account, role, QuickSight and Cognito settings only",
	},
	TemplateServer: {
		ID:          TemplateServer,
		Name:        "HTTPS Server",
		Description: "Basic plus TLS files, CORS origins and per-IP rate limiting",
	},
	TemplateFull: {
		ID:          TemplateFull,
		Name:        "Full",
		Description: "Server plus CloudWatch audit logs, SNS notifications, metrics and DynamoDB rate limiting",
	},
}

// GetTemplate returns the template metadata for the given ID.
func GetTemplate(id TemplateID) (Template, bool) {
	t, ok := templateRegistry[id]
	return t, ok
}

// AllTemplates returns metadata for all available templates.
func AllTemplates() []Template {
	templates := make([]Template, 0, len(templateRegistry))
	for _, id := range AllTemplateIDs() {
		templates = append(templates, templateRegistry[id])
	}
	return templates
}

// TemplateInput carries the values a template is filled with. Empty
// values become placeholders.
type TemplateInput struct {
	AccountID   string
	RoleARN     string
	Region      string
	AppName     string
	ClientID    string
	RedirectURI string
}

func (in TemplateInput) withPlaceholders() TemplateInput {
	placeholder := func(v, p string) string {
		if v == "" {
			return p
		}
		return v
	}
	in.AccountID = placeholder(in.AccountID, "123456789012")
	in.RoleARN = placeholder(in.RoleARN, "arn:aws:iam::"+in.AccountID+":role/QuickSightEmbedRole")
	in.Region = placeholder(in.Region, Defaults().AWS.Region)
	in.AppName = placeholder(in.AppName, "my-app")
	in.ClientID = placeholder(in.ClientID, "your-app-client-id")
	in.RedirectURI = placeholder(in.RedirectURI, "https://app.example.com")
	return in
}

// GenerateTemplate returns a YAML config file for the template.
func GenerateTemplate(id TemplateID, in TemplateInput) ([]byte, error) {
	t, ok := GetTemplate(id)
	if !ok {
		return nil, fmt.Errorf("invalid template ID: %s", id)
	}
	in = in.withPlaceholders()

	c := Defaults()
	c.AWS.AccountID = in.AccountID
	c.AWS.RoleARN = in.RoleARN
	c.AWS.Region = in.Region
	c.Cognito.AppName = in.AppName
	c.Cognito.ClientID = in.ClientID
	c.Cognito.RedirectURI = in.RedirectURI

	if id == TemplateServer || id == TemplateFull {
		c.Server.TLSCertFile = "server.cert"
		c.Server.TLSKeyFile = "server.key"
		c.Server.AllowedOrigins = []string{"http://localhost:3000"}
	}
	if id == TemplateFull {
		c.QuickSight.SessionLifetimeMinutes = 600
		c.RateLimit.Table = "embedrelay-ratelimit"
		c.Audit.CloudWatchLogGroup = "/embedrelay/audit"
		c.Audit.SigningKeyID = "audit-key-1"
		c.Notifications.SNSTopicARN = "arn:aws:sns:" + in.Region + ":" + in.AccountID + ":embedrelay-registrations"
		c.Metrics.Enabled = true
	}

	return marshalWithHeader(c, t)
}

// marshalWithHeader encodes c as YAML preceded by a descriptive comment.
func marshalWithHeader(c *Config, t Template) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(c); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	node.HeadComment = strings.Join([]string{
		fmt.Sprintf("embedrelay configuration (%s template)", t.ID),
		t.Description,
		"",
		"Every key can be overridden with an EMBEDRELAY_<KEY> environment variable,",
		"e.g. EMBEDRELAY_ACCOUNT_ID or EMBEDRELAY_RATE_LIMIT_REQUESTS.",
	}, "\n")
	if t.ID == TemplateFull {
		annotate(&node, "audit", "Set the HMAC key with EMBEDRELAY_LOG_SIGNING_KEY (openssl rand -hex 32).")
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// annotate sets a head comment on the top-level key.
func annotate(doc *yaml.Node, key, comment string) {
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value == key {
			doc.Content[i].HeadComment = comment
			return
		}
	}
}
