package resolver

import "testing"

func TestResolve_ValidSpecs(t *testing.T) {
	resolved, failed := Resolve([]string{"127.0.0.1:7530", "localhost:7531"})
	if len(failed) != 0 {
		t.Fatalf("failed = %v, want none", failed)
	}
	if len(resolved) != 2 {
		t.Fatalf("resolved = %d entries, want 2", len(resolved))
	}
}

func TestResolve_UnresolvableSpecDoesNotFailWholeRebuild(t *testing.T) {
	resolved, failed := Resolve([]string{"127.0.0.1:7530", "this.name.does.not.exist.invalid:7531"})
	if len(resolved) != 1 {
		t.Fatalf("resolved = %d entries, want 1 (the one good spec)", len(resolved))
	}
	if len(failed) != 1 {
		t.Fatalf("failed = %v, want one entry", failed)
	}
}

func TestFirstActiveInterfaceIPv4_ReturnsOrErrors(t *testing.T) {
	ip, err := FirstActiveInterfaceIPv4()
	if err != nil {
		// Sandboxed/minimal network namespaces may have no active
		// non-loopback interface; that's a legitimate outcome, not a bug.
		t.Skipf("no active interface available in this environment: %v", err)
	}
	if ip.To4() == nil {
		t.Fatalf("FirstActiveInterfaceIPv4() = %v, want an IPv4 address", ip)
	}
}
