package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	encoded, err := Hash("segredo123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=65536,t=1,p=4$") {
		t.Fatalf("unexpected encoding %q", encoded)
	}
	if !Verify("segredo123", encoded) {
		t.Fatalf("expected password to verify")
	}
	if Verify("outrasenha", encoded) {
		t.Fatalf("expected wrong password to fail")
	}
}

func TestHashUsesRandomSalt(t *testing.T) {
	a, _ := Hash("segredo123")
	b, _ := Hash("segredo123")
	if a == b {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestIsHash(t *testing.T) {
	encoded, _ := Hash("segredo123")
	if !IsHash(encoded) {
		t.Fatalf("expected encoded value to be recognised")
	}
	for _, value := range []string{"", "segredo123", "$argon2id$v=19$garbage", "$argon2i$v=19$m=1,t=1,p=1$YQ$YQ"} {
		if IsHash(value) {
			t.Fatalf("expected %q not to be a hash", value)
		}
	}
}
