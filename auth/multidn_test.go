package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestMultiDNSerializeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		entries []LabeledDn
	}{
		{
			name:    "empty",
			entries: nil,
		},
		{
			name: "single entry",
			entries: []LabeledDn{
				{Label: "corp", Dn: "uid=jdoe,ou=people,dc=corp,dc=example,dc=org"},
			},
		},
		{
			name: "multiple entries",
			entries: []LabeledDn{
				{Label: "corp", Dn: "uid=jdoe,ou=people,dc=corp,dc=example,dc=org"},
				{Label: "partners", Dn: "cn=John Doe,ou=ext,dc=partners,dc=example,dc=org"},
				{Label: "legacy", Dn: "uid=jdoe,o=legacy"},
			},
		},
		{
			name: "separator characters in label and dn",
			entries: []LabeledDn{
				{Label: "eu:west", Dn: "cn=a\\:b,dc=example"},
				{Label: "with space", Dn: "cn=Doe\\, John,dc=example"},
			},
		},
		{
			name: "unicode",
			entries: []LabeledDn{
				{Label: "münchen", Dn: "cn=Jürgen Müller,dc=example"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mdn := &MultiDN{}
			for _, e := range tt.entries {
				mdn.Add(e.Label, e.Dn)
			}

			token := mdn.Serialize()
			if !strings.HasPrefix(token, TokenPrefix) {
				t.Fatalf("token %q lacks prefix %q", token, TokenPrefix)
			}

			parsed, err := DeserializeMultiDN(token)
			if err != nil {
				t.Fatalf("DeserializeMultiDN(%q) error: %v", token, err)
			}

			if parsed.Len() != len(tt.entries) {
				t.Fatalf("Len() = %d, want %d", parsed.Len(), len(tt.entries))
			}
			for i, got := range parsed.Entries() {
				if got != tt.entries[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got, tt.entries[i])
				}
			}
		})
	}
}

func TestMultiDNAdd(t *testing.T) {
	mdn := NewMultiDN("corp", "uid=a,dc=example")
	mdn.Add("partners", "uid=b,dc=example")

	// Re-adding a label replaces the DN without reordering.
	mdn.Add("corp", "uid=c,dc=example")
	// Empty DNs are no-ops.
	mdn.Add("ignored", "")

	want := []LabeledDn{
		{Label: "corp", Dn: "uid=c,dc=example"},
		{Label: "partners", Dn: "uid=b,dc=example"},
	}

	if mdn.Len() != len(want) {
		t.Fatalf("Len() = %d, want %d", mdn.Len(), len(want))
	}
	for i, got := range mdn.Entries() {
		if got != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got, want[i])
		}
	}

	first, ok := mdn.First()
	if !ok || first.Label != "corp" {
		t.Errorf("First() = %+v, %v, want corp entry", first, ok)
	}
}

func TestMultiDNEmpty(t *testing.T) {
	mdn := &MultiDN{}

	if !mdn.IsEmpty() {
		t.Error("IsEmpty() = false for zero value")
	}
	if _, ok := mdn.First(); ok {
		t.Error("First() reported an entry on an empty MultiDN")
	}
	if got := mdn.Serialize(); got != TokenPrefix {
		t.Errorf("Serialize() = %q, want bare prefix %q", got, TokenPrefix)
	}

	parsed, err := DeserializeMultiDN(TokenPrefix)
	if err != nil {
		t.Fatalf("DeserializeMultiDN(prefix) error: %v", err)
	}
	if !parsed.IsEmpty() {
		t.Error("deserialized bare prefix is not empty")
	}
}

func TestDeserializeMultiDNMalformed(t *testing.T) {
	valid := NewMultiDN("corp", "uid=a,dc=example").Serialize()

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "bare dn",
			token: "uid=a,dc=example",
		},
		{
			name:  "empty string",
			token: "",
		},
		{
			name:  "wrong prefix",
			token: "multidns:" + strings.TrimPrefix(valid, TokenPrefix),
		},
		{
			name:  "odd field count",
			token: valid + ":Y29ycA",
		},
		{
			name:  "invalid base64 label",
			token: TokenPrefix + "!!!:dWlkPWE",
		},
		{
			name:  "invalid base64 dn",
			token: TokenPrefix + "Y29ycA:???",
		},
		{
			name:  "empty dn field",
			token: TokenPrefix + "Y29ycA:",
		},
		{
			name:  "duplicate label",
			token: TokenPrefix + "Y29ycA:dWlkPWE:Y29ycA:dWlkPWI",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mdn, err := DeserializeMultiDN(tt.token)
			if err == nil {
				t.Fatalf("DeserializeMultiDN(%q) succeeded, want error", tt.token)
			}
			if mdn != nil {
				t.Errorf("partial result %v returned alongside error", mdn)
			}
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("error %v does not match ErrMalformedToken", err)
			}
			var te *TokenError
			if !errors.As(err, &te) {
				t.Errorf("error %v is not a *TokenError", err)
			}
		})
	}
}
