package embed

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/quicksight"
	"github.com/aws/aws-sdk-go-v2/service/quicksight/types"
	"github.com/google/go-cmp/cmp"

	relayerrors "github.com/byteness/embedrelay/errors"
	"github.com/byteness/embedrelay/testutil"
)

func summary(id, name string) types.DashboardSummary {
	return types.DashboardSummary{
		DashboardId: aws.String(id),
		Name:        aws.String(name),
		Arn:         aws.String("arn:aws:quicksight:us-east-1:123456789012:dashboard/" + id),
	}
}

func TestParseRoleARN(t *testing.T) {
	tests := []struct {
		name          string
		arn           string
		wantPartition string
		wantRole      string
		wantErr       bool
	}{
		{"simple role", "arn:aws:iam::123456789012:role/EmbedRole", "aws", "EmbedRole", false},
		{"role with path", "arn:aws:iam::123456789012:role/service/EmbedRole", "aws", "service", false},
		{"china partition", "arn:aws-cn:iam::123456789012:role/EmbedRole", "aws-cn", "EmbedRole", false},
		{"not an arn", "EmbedRole", "", "", true},
		{"user not role", "arn:aws:iam::123456789012:user/alice", "", "", true},
		{"wrong service", "arn:aws:sts::123456789012:role/EmbedRole", "", "", true},
		{"empty name", "arn:aws:iam::123456789012:role/", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			partition, role, err := ParseRoleARN(tt.arn)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRoleARN) {
					t.Fatalf("error = %v, want ErrInvalidRoleARN", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if partition != tt.wantPartition || role != tt.wantRole {
				t.Errorf("ParseRoleARN() = (%q, %q), want (%q, %q)", partition, role, tt.wantPartition, tt.wantRole)
			}
		})
	}
}

func TestUserARN(t *testing.T) {
	got := UserARN("aws", "ap-southeast-1", "123456789012", "default", "EmbedRole/alice")
	want := "arn:aws:quicksight:ap-southeast-1:123456789012:user/default/EmbedRole/alice"
	if got != want {
		t.Errorf("UserARN() = %q, want %q", got, want)
	}
}

func TestSelectDashboard(t *testing.T) {
	summaries := []types.DashboardSummary{
		summary("d1", "Sales"),
		summary("d2", "Ops"),
		summary("d3", "Ops"),
	}

	tests := []struct {
		name   string
		find   string
		wantID string
		wantOK bool
	}{
		{"exact match", "Ops", "d2", true},
		{"first match wins", "Sales", "d1", true},
		{"case sensitive", "ops", "", false},
		{"missing", "Missing", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectDashboard(summaries, tt.find)
			if ok != tt.wantOK || got.ID != tt.wantID {
				t.Errorf("SelectDashboard(%q) = (%q, %v), want (%q, %v)", tt.find, got.ID, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestFindDashboard(t *testing.T) {
	pages := map[string]*quicksight.SearchDashboardsOutput{
		"": {
			DashboardSummaryList: []types.DashboardSummary{summary("d1", "Sales")},
			NextToken:            aws.String("page-2"),
		},
		"page-2": {
			DashboardSummaryList: []types.DashboardSummary{summary("d2", "Ops")},
		},
	}

	tests := []struct {
		name      string
		dashboard string
		searchErr error
		want      DashboardSummary
		wantKind  relayerrors.Kind
		wantPages int
	}{
		{
			name:      "match on second page",
			dashboard: "Ops",
			want:      DashboardSummary{ID: "d2", Name: "Ops", ARN: "arn:aws:quicksight:us-east-1:123456789012:dashboard/d2"},
			wantPages: 2,
		},
		{
			name:      "match on first page stops paging",
			dashboard: "Sales",
			want:      DashboardSummary{ID: "d1", Name: "Sales", ARN: "arn:aws:quicksight:us-east-1:123456789012:dashboard/d1"},
			wantPages: 1,
		},
		{
			name:      "no match",
			dashboard: "Missing",
			wantKind:  relayerrors.KindDashboardNotFound,
			wantPages: 2,
		},
		{
			name:      "user not found",
			dashboard: "Ops",
			searchErr: testutil.APIError("ResourceNotFoundException", "user does not exist"),
			wantKind:  relayerrors.KindUserNotRegistered,
			wantPages: 1,
		},
		{
			name:      "throttled",
			dashboard: "Ops",
			searchErr: testutil.APIError("ThrottlingException", "slow down"),
			wantKind:  relayerrors.KindRateLimited,
			wantPages: 1,
		},
		{
			name:      "other failure",
			dashboard: "Ops",
			searchErr: testutil.APIError("InternalFailureException", "boom"),
			wantKind:  relayerrors.KindUpstreamService,
			wantPages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := &testutil.MockQuickSightClient{
				SearchDashboardsFunc: func(_ context.Context, _ string, params *quicksight.SearchDashboardsInput) (*quicksight.SearchDashboardsOutput, error) {
					if tt.searchErr != nil {
						return nil, tt.searchErr
					}
					return pages[aws.ToString(params.NextToken)], nil
				},
			}
			r := &Resolver{quicksight: func(_ Credentials, region string) QuickSightAPI { return qs.ForRegion(region) }}
			rc := testRequestContext()
			rc.DashboardName = tt.dashboard

			got, err := r.findDashboard(context.Background(), rc)
			if tt.wantKind != relayerrors.KindUnknown {
				if !relayerrors.IsKind(err, tt.wantKind) {
					t.Fatalf("error kind = %v, want %v (err: %v)", relayerrors.KindOf(err), tt.wantKind, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if diff := cmp.Diff(tt.want, got); diff != "" {
					t.Errorf("findDashboard() mismatch (-want +got):\n%s", diff)
				}
			}
			if n := qs.CallCount("SearchDashboards"); n != tt.wantPages {
				t.Errorf("SearchDashboards calls = %d, want %d", n, tt.wantPages)
			}
		})
	}
}

func TestFindDashboard_PageLimit(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	qs := &testutil.MockQuickSightClient{
		SearchDashboardsFunc: func(context.Context, string, *quicksight.SearchDashboardsInput) (*quicksight.SearchDashboardsOutput, error) {
			return &quicksight.SearchDashboardsOutput{
				DashboardSummaryList: []types.DashboardSummary{summary("d1", "Sales")},
				NextToken:            aws.String("more"),
			}, nil
		},
	}
	r := &Resolver{quicksight: func(_ Credentials, region string) QuickSightAPI { return qs.ForRegion(region) }}
	rc := testRequestContext()
	rc.DashboardName = "Ops"

	_, err := r.findDashboard(context.Background(), rc)
	if !relayerrors.IsKind(err, relayerrors.KindDashboardNotFound) {
		t.Fatalf("error kind = %v, want DashboardNotFound (err: %v)", relayerrors.KindOf(err), err)
	}
	if n := qs.CallCount("SearchDashboards"); n != maxSearchPages {
		t.Errorf("SearchDashboards calls = %d, want %d", n, maxSearchPages)
	}
	if !strings.Contains(logs.String(), "WARNING: dashboard search stopped after 50 pages") {
		t.Errorf("missing page limit warning, logs: %q", logs.String())
	}
}

func TestFindDashboard_NoWarningWhenExhausted(t *testing.T) {
	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	qs := &testutil.MockQuickSightClient{
		SearchDashboardsFunc: func(context.Context, string, *quicksight.SearchDashboardsInput) (*quicksight.SearchDashboardsOutput, error) {
			return &quicksight.SearchDashboardsOutput{DashboardSummaryList: []types.DashboardSummary{summary("d1", "Sales")}}, nil
		},
	}
	r := &Resolver{quicksight: func(_ Credentials, region string) QuickSightAPI { return qs.ForRegion(region) }}
	rc := testRequestContext()
	rc.DashboardName = "Ops"

	if _, err := r.findDashboard(context.Background(), rc); !relayerrors.IsKind(err, relayerrors.KindDashboardNotFound) {
		t.Fatalf("error = %v, want DashboardNotFound", err)
	}
	if strings.Contains(logs.String(), "stopped after") {
		t.Errorf("unexpected page limit warning: %q", logs.String())
	}
}

func TestFindDashboard_Filter(t *testing.T) {
	qs := &testutil.MockQuickSightClient{}
	r := &Resolver{quicksight: func(_ Credentials, region string) QuickSightAPI { return qs.ForRegion(region) }}
	rc := testRequestContext()
	rc.DashboardName = "Ops"

	_, _ = r.findDashboard(context.Background(), rc)

	if len(qs.SearchCalls) != 1 {
		t.Fatalf("SearchDashboards calls = %d, want 1", len(qs.SearchCalls))
	}
	in := qs.SearchCalls[0]
	want := []types.DashboardSearchFilter{{
		Operator: types.FilterOperatorStringEquals,
		Name:     types.DashboardFilterAttributeQuicksightUser,
		Value:    aws.String("arn:aws:quicksight:ap-southeast-1:123456789012:user/default/EmbedRole/alice"),
	}}
	if diff := cmp.Diff(want, in.Filters, cmp.AllowUnexported(types.DashboardSearchFilter{})); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
	if aws.ToString(in.AwsAccountId) != "123456789012" {
		t.Errorf("AwsAccountId = %q", aws.ToString(in.AwsAccountId))
	}
	if qs.Calls[0].Region != "us-east-1" {
		t.Errorf("search region = %q, want default region us-east-1", qs.Calls[0].Region)
	}
}

func TestEmbedURL(t *testing.T) {
	tests := []struct {
		name     string
		out      *quicksight.GetDashboardEmbedUrlOutput
		err      error
		want     string
		wantKind relayerrors.Kind
	}{
		{
			name: "success",
			out:  &quicksight.GetDashboardEmbedUrlOutput{EmbedUrl: aws.String("https://embed.example/d2")},
			want: "https://embed.example/d2",
		},
		{
			name:     "user not found",
			err:      testutil.APIError("QuickSightUserNotFoundException", "no user"),
			wantKind: relayerrors.KindUserNotRegistered,
		},
		{
			name:     "resource not found",
			err:      testutil.APIError("ResourceNotFoundException", "no user"),
			wantKind: relayerrors.KindUserNotRegistered,
		},
		{
			name:     "unsupported edition",
			err:      testutil.APIError("UnsupportedUserEditionException", "standard edition"),
			wantKind: relayerrors.KindEmbedURL,
		},
		{
			name:     "empty url",
			out:      &quicksight.GetDashboardEmbedUrlOutput{},
			wantKind: relayerrors.KindEmbedURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qs := &testutil.MockQuickSightClient{
				GetDashboardEmbedUrlFunc: func(context.Context, string, *quicksight.GetDashboardEmbedUrlInput) (*quicksight.GetDashboardEmbedUrlOutput, error) {
					return tt.out, tt.err
				},
			}
			r := &Resolver{
				config:     Config{Embed: EmbedOptions{SessionLifetimeMinutes: 60, UndoRedoDisabled: true}},
				quicksight: func(_ Credentials, region string) QuickSightAPI { return qs.ForRegion(region) },
			}

			got, err := r.embedURL(context.Background(), testRequestContext(), "d2")
			if tt.wantKind != relayerrors.KindUnknown {
				if !relayerrors.IsKind(err, tt.wantKind) {
					t.Fatalf("error kind = %v, want %v (err: %v)", relayerrors.KindOf(err), tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("embedURL() = %q, want %q", got, tt.want)
			}

			in := qs.EmbedCalls[0]
			if in.IdentityType != types.EmbeddingIdentityTypeIam {
				t.Errorf("IdentityType = %v, want IAM", in.IdentityType)
			}
			if aws.ToInt64(in.SessionLifetimeInMinutes) != 60 || !in.UndoRedoDisabled || in.ResetDisabled {
				t.Errorf("embed options not passed through: %+v", in)
			}
			if qs.Calls[0].Region != "ap-southeast-1" {
				t.Errorf("embed region = %q, want identity region", qs.Calls[0].Region)
			}
		})
	}
}

func testRequestContext() *RequestContext {
	return &RequestContext{
		RequestID:      "abcd1234",
		AccountID:      testutil.TestAccountID,
		RoleARN:        testutil.TestRoleARN,
		Partition:      "aws",
		RoleName:       "EmbedRole",
		Namespace:      DefaultNamespace,
		Region:         "us-east-1",
		IdentityRegion: "ap-southeast-1",
		Username:       "alice",
	}
}
