package permissions

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFeaturesFor(t *testing.T) {
	want := []Feature{FeatureIdentityRegion, FeatureDashboardSearch, FeatureEmbedURL, FeatureUserRegistration}
	if diff := cmp.Diff(want, EmbedFeatures()); diff != "" {
		t.Errorf("EmbedFeatures() mismatch (-want +got):\n%s", diff)
	}

	relay := FeaturesFor(PrincipalRelay)
	if len(relay)+len(want) != len(AllFeatures()) {
		t.Errorf("relay features = %v, every feature should belong to one principal", relay)
	}
}

func TestFeature_IsValid(t *testing.T) {
	for _, f := range AllFeatures() {
		if !f.IsValid() {
			t.Errorf("%s.IsValid() = false", f)
		}
	}
	if Feature("policy_load").IsValid() {
		t.Error("unknown feature should be invalid")
	}
}

func TestRegistry_Complete(t *testing.T) {
	for _, f := range AllFeatures() {
		fp, ok := GetFeaturePermissions(f)
		if !ok {
			t.Fatalf("%s missing from registry", f)
		}
		if fp.Feature != f {
			t.Errorf("registry[%s].Feature = %s", f, fp.Feature)
		}
		if len(fp.Permissions) == 0 {
			t.Errorf("%s has no permissions", f)
		}
		for _, p := range fp.Permissions {
			for _, action := range p.Actions {
				if service, _, _ := strings.Cut(action, ":"); service != p.Service {
					t.Errorf("%s: action %s does not belong to service %s", f, action, p.Service)
				}
			}
		}
	}
}

func TestRegistry_Optional(t *testing.T) {
	required := map[Feature]bool{
		FeatureIdentityRegion:  true,
		FeatureDashboardSearch: true,
		FeatureEmbedURL:        true,
	}
	for _, f := range AllFeatures() {
		fp, _ := GetFeaturePermissions(f)
		if fp.Optional == required[f] {
			t.Errorf("%s: Optional = %v", f, fp.Optional)
		}
	}
}

func TestGetPermissions_SkipsUnknown(t *testing.T) {
	got := GetPermissions([]Feature{FeatureEmbedURL, "bogus", FeatureMetrics})
	if len(got) != 2 || got[0].Feature != FeatureEmbedURL || got[1].Feature != FeatureMetrics {
		t.Errorf("GetPermissions() = %+v", got)
	}
}
