package auth

import (
	"encoding/base64"
	"strings"
)

// TokenPrefix introduces every serialized MultiDN token. A bare DN can
// never start with it (a DN begins with an attribute type followed by '='),
// so a single-entry token remains distinguishable from a plain DN wherever
// the two share a field.
const TokenPrefix = "multidn:"

// tokenEncoding encodes labels and DNs inside a token. Unpadded base64url
// keeps the field separator out of the encoded values for any label or DN.
var tokenEncoding = base64.RawURLEncoding

// LabeledDn is one (label, DN) pair inside a MultiDN.
type LabeledDn struct {
	Label string
	Dn    string
}

// MultiDN is an ordered collection of labeled DNs produced by aggregate DN
// resolution. Labels are unique within one instance; order is insertion
// order and is preserved by serialization. The zero value is an empty,
// usable MultiDN. MultiDN is not safe for concurrent mutation; the pipeline
// creates one per resolution and never shares it across calls.
type MultiDN struct {
	entries []LabeledDn
	index   map[string]int
}

// NewMultiDN creates a MultiDN holding a single entry.
func NewMultiDN(label, dn string) *MultiDN {
	mdn := &MultiDN{}
	mdn.Add(label, dn)
	return mdn
}

// Add appends (label, dn) preserving insertion order. Adding an existing
// label replaces its DN in place; a backend contributes at most one entry.
// Empty DNs are ignored.
func (m *MultiDN) Add(label, dn string) {
	if dn == "" {
		return
	}
	if m.index == nil {
		m.index = make(map[string]int)
	}
	if i, ok := m.index[label]; ok {
		m.entries[i].Dn = dn
		return
	}
	m.index[label] = len(m.entries)
	m.entries = append(m.entries, LabeledDn{Label: label, Dn: dn})
}

// Entries returns the labeled DNs in insertion order. The returned slice
// is shared with the MultiDN and must not be modified.
func (m *MultiDN) Entries() []LabeledDn {
	return m.entries
}

// First returns the first entry. It reports false when the MultiDN is
// empty.
func (m *MultiDN) First() (LabeledDn, bool) {
	if len(m.entries) == 0 {
		return LabeledDn{}, false
	}
	return m.entries[0], true
}

// Len returns the number of entries.
func (m *MultiDN) Len() int {
	return len(m.entries)
}

// IsEmpty reports whether no backend contributed a DN.
func (m *MultiDN) IsEmpty() bool {
	return len(m.entries) == 0
}

// Serialize encodes the MultiDN into its token form:
//
//	multidn:<b64(label)>:<b64(dn)>[:<b64(label)>:<b64(dn)>...]
//
// An empty MultiDN serializes to the bare prefix. Serialization round-trips
// exactly through DeserializeMultiDN for arbitrary labels and DNs.
func (m *MultiDN) Serialize() string {
	var sb strings.Builder
	sb.WriteString(TokenPrefix)
	for i, e := range m.entries {
		if i > 0 {
			sb.WriteByte(':')
		}
		sb.WriteString(tokenEncoding.EncodeToString([]byte(e.Label)))
		sb.WriteByte(':')
		sb.WriteString(tokenEncoding.EncodeToString([]byte(e.Dn)))
	}
	return sb.String()
}

func (m *MultiDN) String() string {
	return m.Serialize()
}

// DeserializeMultiDN parses a serialized token back into a MultiDN. Any
// defect (missing prefix, odd field count, invalid base64, duplicate label,
// empty DN) fails with a *TokenError; a partial result is never returned.
func DeserializeMultiDN(token string) (*MultiDN, error) {
	body, ok := strings.CutPrefix(token, TokenPrefix)
	if !ok {
		return nil, &TokenError{Reason: "missing token prefix"}
	}

	mdn := &MultiDN{}
	if body == "" {
		return mdn, nil
	}

	fields := strings.Split(body, ":")
	if len(fields)%2 != 0 {
		return nil, &TokenError{Reason: "odd number of fields"}
	}

	for i := 0; i < len(fields); i += 2 {
		label, err := tokenEncoding.DecodeString(fields[i])
		if err != nil {
			return nil, &TokenError{Reason: "invalid label encoding", Cause: err}
		}
		dn, err := tokenEncoding.DecodeString(fields[i+1])
		if err != nil {
			return nil, &TokenError{Reason: "invalid dn encoding", Cause: err}
		}
		if len(dn) == 0 {
			return nil, &TokenError{Reason: "empty dn for label " + string(label)}
		}
		if _, dup := mdn.index[string(label)]; dup {
			return nil, &TokenError{Reason: "duplicate label " + string(label)}
		}
		mdn.Add(string(label), string(dn))
	}

	return mdn, nil
}
