package credentials

import "testing"

func TestEntryKey(t *testing.T) {
	got := entryKey("aws-skill", "prod", "aws_access_key_id")
	want := "aws-skill/prod/aws_access_key_id"
	if got != want {
		t.Fatalf("entryKey() = %q, want %q", got, want)
	}
}

func TestNewStore_Defaults(t *testing.T) {
	s := NewStore()
	if s.serviceName != ServiceName {
		t.Fatalf("serviceName = %q, want %q", s.serviceName, ServiceName)
	}
	if s.audit != nil {
		t.Fatal("expected no audit logger by default")
	}
}

func TestNewStore_WithServiceName(t *testing.T) {
	s := NewStore(WithServiceName("custom-service"))
	if s.serviceName != "custom-service" {
		t.Fatalf("serviceName = %q, want %q", s.serviceName, "custom-service")
	}
}

// Actual Store/Get/Delete/Has calls need a keyring backend; they are
// exercised in manager_test.go against keyring.MockInit's in-memory mock
// rather than here.
