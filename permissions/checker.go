package permissions

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/byteness/embedrelay/embed"
	relayerrors "github.com/byteness/embedrelay/errors"
)

// CheckStatus represents the result of a permission check.
type CheckStatus string

const (
	StatusAllowed    CheckStatus = "allowed"
	StatusDenied     CheckStatus = "denied"
	StatusError      CheckStatus = "error"
	StatusNotChecked CheckStatus = "not_checked"
)

// TrustAction is the action the embed role's trust policy must allow.
const TrustAction = "sts:AssumeRoleWithWebIdentity"

// CheckResult represents the result of checking a single permission.
type CheckResult struct {
	Feature   Feature
	Principal string // ARN the action was evaluated for
	Action    string
	Resource  string
	Status    CheckStatus
	Message   string
	Optional  bool
}

// CheckSummary contains the aggregated results of permission checks.
type CheckSummary struct {
	Results    []CheckResult
	PassCount  int
	FailCount  int // denied required actions
	WarnCount  int // denied optional actions
	ErrorCount int
}

// Add appends a result and updates the counts.
func (s *CheckSummary) Add(r CheckResult) {
	s.Results = append(s.Results, r)
	switch {
	case r.Status == StatusAllowed:
		s.PassCount++
	case r.Status == StatusError:
		s.ErrorCount++
	case r.Status == StatusDenied && r.Optional:
		s.WarnCount++
	case r.Status == StatusDenied:
		s.FailCount++
	}
}

// OK reports whether every required permission is allowed.
func (s *CheckSummary) OK() bool {
	return s.FailCount == 0 && s.ErrorCount == 0
}

// iamCheckerAPI defines the IAM operations used by Checker.
type iamCheckerAPI interface {
	GetRole(ctx context.Context, params *iam.GetRoleInput, optFns ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	SimulatePrincipalPolicy(ctx context.Context, params *iam.SimulatePrincipalPolicyInput, optFns ...func(*iam.Options)) (*iam.SimulatePrincipalPolicyOutput, error)
}

// stsCheckerAPI defines the STS operations used by Checker.
type stsCheckerAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Checker validates IAM permissions with SimulatePrincipalPolicy. It is not
// safe for concurrent use.
type Checker struct {
	sts       stsCheckerAPI
	iam       iamCheckerAPI
	roleARN   string
	callerARN string // cached relay principal
}

// NewChecker creates a Checker for the embed role using the provided AWS
// configuration.
func NewChecker(cfg aws.Config, roleARN string) *Checker {
	return newCheckerWithClients(sts.NewFromConfig(cfg), iam.NewFromConfig(cfg), roleARN)
}

func newCheckerWithClients(stsClient stsCheckerAPI, iamClient iamCheckerAPI, roleARN string) *Checker {
	return &Checker{sts: stsClient, iam: iamClient, roleARN: roleARN}
}

// Check evaluates every action of the given features. Embed role features
// are simulated for the embed role; relay features for the caller's own
// identity. Individual failures are reported in the summary; the error is
// only set when the caller identity cannot be determined.
func (c *Checker) Check(ctx context.Context, features []Feature) (*CheckSummary, error) {
	summary := &CheckSummary{Results: []CheckResult{}}

	for _, fp := range GetPermissions(features) {
		principal := c.roleARN
		if fp.Principal == PrincipalRelay {
			arn, err := c.relayPrincipal(ctx)
			if err != nil {
				return nil, err
			}
			principal = arn
		}

		for _, perm := range fp.Permissions {
			for _, action := range perm.Actions {
				result := c.checkPermission(ctx, principal, action, perm.Resource)
				result.Feature = fp.Feature
				result.Optional = fp.Optional
				summary.Add(result)
			}
		}
	}
	return summary, nil
}

func (c *Checker) relayPrincipal(ctx context.Context) (string, error) {
	if c.callerARN != "" {
		return c.callerARN, nil
	}
	identity, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", relayerrors.WrapAWSError(err, relayerrors.KindUpstreamService, "GetCallerIdentity")
	}
	c.callerARN = SimulationARN(aws.ToString(identity.Arn))
	return c.callerARN, nil
}

func (c *Checker) checkPermission(ctx context.Context, principal, action, resource string) CheckResult {
	result := CheckResult{
		Principal: principal,
		Action:    action,
		Resource:  resource,
	}

	output, err := c.iam.SimulatePrincipalPolicy(ctx, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: aws.String(principal),
		ActionNames:     []string{action},
		ResourceArns:    []string{resource},
	})
	if err != nil {
		result.Status = StatusError
		if code := relayerrors.APIErrorCode(err); code == relayerrors.AWSCodeSTSAccessDenied || code == relayerrors.AWSCodeAccessDenied {
			result.Message = "not allowed to call iam:SimulatePrincipalPolicy"
		} else {
			result.Message = relayerrors.APIErrorMessage(err)
		}
		return result
	}

	if len(output.EvaluationResults) == 0 {
		result.Status = StatusError
		result.Message = "no evaluation results returned"
		return result
	}

	switch decision := output.EvaluationResults[0].EvalDecision; decision {
	case iamtypes.PolicyEvaluationDecisionTypeAllowed:
		result.Status = StatusAllowed
		result.Message = "allowed"
	case iamtypes.PolicyEvaluationDecisionTypeExplicitDeny:
		result.Status = StatusDenied
		result.Message = "explicitly denied"
	case iamtypes.PolicyEvaluationDecisionTypeImplicitDeny:
		result.Status = StatusDenied
		result.Message = "implicitly denied (no matching allow)"
	default:
		result.Status = StatusDenied
		result.Message = string(decision)
	}
	return result
}

// SimulationARN converts an STS assumed-role ARN into the IAM role ARN
// SimulatePrincipalPolicy accepts. Other ARNs are returned unchanged.
// Role paths are not recoverable from an assumed-role ARN.
func SimulationARN(arn string) string {
	parts := strings.SplitN(arn, ":", 6)
	if len(parts) != 6 || parts[2] != "sts" || !strings.HasPrefix(parts[5], "assumed-role/") {
		return arn
	}
	role := strings.SplitN(strings.TrimPrefix(parts[5], "assumed-role/"), "/", 2)[0]
	return fmt.Sprintf("arn:%s:iam::%s:role/%s", parts[1], parts[4], role)
}

// CheckTrust reads the embed role's trust policy and reports whether it
// allows AssumeRoleWithWebIdentity from a Cognito federated principal.
func (c *Checker) CheckTrust(ctx context.Context) CheckResult {
	result := CheckResult{
		Principal: c.roleARN,
		Action:    TrustAction,
		Resource:  c.roleARN,
	}

	_, roleName, err := embed.ParseRoleARN(c.roleARN)
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}

	out, err := c.iam.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(roleName)})
	if err != nil {
		result.Status = StatusError
		result.Message = relayerrors.APIErrorMessage(err)
		return result
	}
	if out.Role == nil {
		result.Status = StatusError
		result.Message = "role not returned"
		return result
	}

	doc, err := parseTrustPolicy(aws.ToString(out.Role.AssumeRolePolicyDocument))
	if err != nil {
		result.Status = StatusError
		result.Message = err.Error()
		return result
	}

	if provider, ok := doc.allowsWebIdentity(); ok {
		result.Status = StatusAllowed
		result.Message = "trusted federated principal " + provider
	} else {
		result.Status = StatusDenied
		result.Message = "trust policy does not allow " + TrustAction + " from a Cognito principal"
	}
	return result
}

// stringList decodes IAM policy fields that may be a string or a list.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = stringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*s = list
	return nil
}

type trustPrincipal struct {
	Federated stringList `json:"Federated"`
}

type trustStatement struct {
	Effect    string          `json:"Effect"`
	Action    stringList      `json:"Action"`
	Principal json.RawMessage `json:"Principal"`
}

type trustPolicy struct {
	Statement []trustStatement `json:"Statement"`
}

// parseTrustPolicy decodes the URL-encoded policy document GetRole returns.
func parseTrustPolicy(encoded string) (*trustPolicy, error) {
	raw, err := url.QueryUnescape(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode trust policy: %w", err)
	}
	var doc trustPolicy
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("parse trust policy: %w", err)
	}
	return &doc, nil
}

// allowsWebIdentity returns the first Cognito federated principal allowed
// to call AssumeRoleWithWebIdentity.
func (p *trustPolicy) allowsWebIdentity() (string, bool) {
	for _, st := range p.Statement {
		if st.Effect != "Allow" || !actionMatches(st.Action) {
			continue
		}
		var principal trustPrincipal
		if err := json.Unmarshal(st.Principal, &principal); err != nil {
			continue
		}
		for _, provider := range principal.Federated {
			if strings.Contains(provider, "cognito-identity.amazonaws.com") || strings.Contains(provider, "cognito-idp.") {
				return provider, true
			}
		}
	}
	return "", false
}

func actionMatches(actions stringList) bool {
	for _, a := range actions {
		if a == TrustAction || a == "sts:*" || a == "*" {
			return true
		}
	}
	return false
}
