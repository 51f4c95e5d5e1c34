package ldap

import (
	"fmt"

	"github.com/bwmarrin/go-objectsid"
	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
)

// Attribute names for binary AD identifiers and their decoded forms.
const (
	attrObjectGUID = "objectGUID"
	attrObjectSid  = "objectSid"

	// AttrObjectGUIDString and AttrObjectSidString are the synthetic
	// attributes SearchEntryResolver adds with the decoded values.
	AttrObjectGUIDString = "objectGUIDString"
	AttrObjectSidString  = "objectSidString"
)

// guidBytesLength is the fixed size of a binary GUID.
const guidBytesLength = 16

// GUIDFromBytes converts an Active Directory binary objectGUID to its
// canonical string form. AD stores the first three GUID fields
// little-endian, so the bytes are reordered before formatting.
func GUIDFromBytes(raw []byte) (string, error) {
	if len(raw) != guidBytesLength {
		return "", fmt.Errorf("objectGUID must be %d bytes, got %d", guidBytesLength, len(raw))
	}

	ordered := make([]byte, guidBytesLength)
	// Data1 (4 bytes), Data2 (2), Data3 (2): little-endian to big-endian.
	ordered[0], ordered[1], ordered[2], ordered[3] = raw[3], raw[2], raw[1], raw[0]
	ordered[4], ordered[5] = raw[5], raw[4]
	ordered[6], ordered[7] = raw[7], raw[6]
	// Data4 (8 bytes) is stored big-endian already.
	copy(ordered[8:], raw[8:])

	id, err := uuid.FromBytes(ordered)
	if err != nil {
		return "", fmt.Errorf("invalid objectGUID: %w", err)
	}

	return id.String(), nil
}

// SIDFromBytes converts an Active Directory binary objectSid to its
// S-1-5-21-... string form.
func SIDFromBytes(raw []byte) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("objectSid cannot be empty")
	}

	return decodeSID(raw)
}

// decodeSID decodes raw SID bytes. objectsid.Decode panics on truncated
// input, so the recover turns that into an error.
func decodeSID(raw []byte) (sid string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("invalid objectSid: %v", r)
		}
	}()
	return objectsid.Decode(raw).String(), nil
}

// DecodeEntryIdentifiers adds decoded GUID and SID attributes to an entry
// that carries binary objectGUID/objectSid values. Entries without those
// attributes are returned unchanged.
func DecodeEntryIdentifiers(entry *ldap.Entry) *ldap.Entry {
	if entry == nil {
		return nil
	}

	if raw := entry.GetRawAttributeValue(attrObjectGUID); len(raw) > 0 {
		if guid, err := GUIDFromBytes(raw); err == nil {
			entry.Attributes = append(entry.Attributes,
				ldap.NewEntryAttribute(AttrObjectGUIDString, []string{guid}))
		}
	}

	if raw := entry.GetRawAttributeValue(attrObjectSid); len(raw) > 0 {
		if sid, err := decodeSID(raw); err == nil {
			entry.Attributes = append(entry.Attributes,
				ldap.NewEntryAttribute(AttrObjectSidString, []string{sid}))
		}
	}

	return entry
}
