package routeros

import (
	"strings"
	"testing"
)

func TestGenerateUsername(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		name, err := GenerateUsername("hs")
		if err != nil {
			t.Fatalf("GenerateUsername: %v", err)
		}
		if !strings.HasPrefix(name, "hs-") {
			t.Fatalf("username %q missing prefix", name)
		}
		suffix := strings.TrimPrefix(name, "hs-")
		if len(suffix) != usernameLength {
			t.Fatalf("suffix length = %d, want %d", len(suffix), usernameLength)
		}
		for _, c := range suffix {
			if !strings.ContainsRune(usernameAlphabet, c) {
				t.Fatalf("username %q contains %q outside alphabet", name, c)
			}
		}
		if seen[name] {
			t.Fatalf("duplicate username %q in 100 draws", name)
		}
		seen[name] = true
	}
}

func TestGenerateUsernameNoPrefix(t *testing.T) {
	name, err := GenerateUsername("")
	if err != nil {
		t.Fatalf("GenerateUsername: %v", err)
	}
	if strings.Contains(name, "-") {
		t.Errorf("unprefixed username %q contains separator", name)
	}
}

func TestGeneratePassword(t *testing.T) {
	pw, err := GeneratePassword()
	if err != nil {
		t.Fatalf("GeneratePassword: %v", err)
	}
	if len(pw) != passwordLength {
		t.Fatalf("password length = %d, want %d", len(pw), passwordLength)
	}
	for _, c := range pw {
		if c < '0' || c > '9' {
			t.Errorf("password %q contains non-digit %q", pw, c)
		}
	}
}
