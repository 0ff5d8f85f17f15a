package policy

import "testing"

func TestExpandGroupsResolvesCoreGroup(t *testing.T) {
	tools := ExpandGroups([]string{"group:core"})
	want := map[string]bool{"read": true, "write": true, "edit": true, "apply_patch": true, "bash": true, "process": true, "repomap": true}
	if len(tools) != len(want) {
		t.Fatalf("expected %d tools, got %v", len(want), tools)
	}
	for _, tool := range tools {
		if !want[tool] {
			t.Fatalf("unexpected tool %q in group:core", tool)
		}
	}
}

func TestExpandGroupsPassesThroughUnknownNames(t *testing.T) {
	tools := ExpandGroups([]string{"group:fs", "custom_tool"})
	found := map[string]bool{}
	for _, tool := range tools {
		found[tool] = true
	}
	if !found["custom_tool"] {
		t.Fatalf("expected an unrecognized name to pass through unchanged, got %v", tools)
	}
	if !found["read"] || !found["edit"] {
		t.Fatalf("expected group:fs to expand into its tools, got %v", tools)
	}
}

func TestResolverDecideCodingProfileAllowsFilesAndShell(t *testing.T) {
	r := NewResolver()
	p := NewPolicy(ProfileCoding)

	for _, tool := range []string{"read", "write", "bash", "process", "repomap"} {
		if !r.IsAllowed(p, tool) {
			t.Fatalf("expected coding profile to allow %q", tool)
		}
	}
}

func TestResolverDecideMinimalProfileOnlyAllowsRepomap(t *testing.T) {
	r := NewResolver()
	p := NewPolicy(ProfileMinimal)

	if !r.IsAllowed(p, "repomap") {
		t.Fatalf("expected minimal profile to allow repomap")
	}
	if r.IsAllowed(p, "bash") {
		t.Fatalf("expected minimal profile to deny bash")
	}
}

func TestResolverDenyOverridesAllow(t *testing.T) {
	r := NewResolver()
	p := &Policy{Allow: []string{"group:fs"}, Deny: []string{"write"}}

	if !r.IsAllowed(p, "read") {
		t.Fatalf("expected read to remain allowed")
	}
	if r.IsAllowed(p, "write") {
		t.Fatalf("expected write to be denied despite group:fs allowing it")
	}
}

func TestResolverAliasResolvesToCanonicalName(t *testing.T) {
	r := NewResolver()
	r.RegisterAlias("shell", "bash")
	p := NewPolicy(ProfileCoding)

	if !r.IsAllowed(p, "shell") {
		t.Fatalf("expected the \"shell\" alias to resolve to the allowed \"bash\" tool")
	}
}

func TestResolverMCPWildcardExpandsRegisteredTools(t *testing.T) {
	r := NewResolver()
	r.RegisterMCPServer("github", []string{"create_issue", "list_prs"})
	p := &Policy{Allow: []string{"mcp:github.*"}}

	if !r.IsAllowed(p, "mcp:github.create_issue") {
		t.Fatalf("expected an mcp wildcard allow to cover a registered server tool")
	}
	if r.IsAllowed(p, "mcp:other.create_issue") {
		t.Fatalf("expected an mcp wildcard scoped to one server not to cover another")
	}
}

func TestFullProfileAllowsEverythingNotDenied(t *testing.T) {
	r := NewResolver()
	p := &Policy{Profile: ProfileFull, Deny: []string{"bash"}}

	if !r.IsAllowed(p, "repomap") {
		t.Fatalf("expected full profile to allow an arbitrary tool")
	}
	if r.IsAllowed(p, "bash") {
		t.Fatalf("expected an explicit deny to override the full profile")
	}
}
