package auth

import (
	"context"
	"errors"
	"testing"
)

// scriptedHandler answers with a fixed response, recording the DNs it saw.
type scriptedHandler struct {
	response *AuthenticationHandlerResponse
	err      error
	seenDNs  []string
}

func (h *scriptedHandler) Authenticate(_ context.Context, criteria *AuthenticationCriteria) (*AuthenticationHandlerResponse, error) {
	h.seenDNs = append(h.seenDNs, criteria.DN)
	if h.err != nil {
		return nil, h.err
	}
	return h.response, nil
}

func accept() *scriptedHandler {
	return &scriptedHandler{response: &AuthenticationHandlerResponse{Success: true}}
}

func reject() *scriptedHandler {
	return &scriptedHandler{response: &AuthenticationHandlerResponse{Success: false, ResultCode: 49, Message: "invalid credentials"}}
}

func newAggregateHandler(t *testing.T, handlers map[string]AuthenticationHandler) *AggregateAuthenticationHandler {
	t.Helper()
	h, err := NewAggregateAuthenticationHandler(&AggregateAuthenticationHandlerConfig{Handlers: handlers})
	if err != nil {
		t.Fatalf("NewAggregateAuthenticationHandler() error: %v", err)
	}
	return h
}

func criteriaFor(entries ...LabeledDn) *AuthenticationCriteria {
	mdn := &MultiDN{}
	for _, e := range entries {
		mdn.Add(e.Label, e.Dn)
	}
	return &AuthenticationCriteria{
		DN:      mdn.Serialize(),
		Request: &AuthenticationRequest{User: &User{Identifier: "jdoe"}, Credential: Credential("hunter2")},
	}
}

func TestAggregateAuthenticationHandlerFirstRejectedSecondAccepted(t *testing.T) {
	corp := reject()
	partners := accept()

	h := newAggregateHandler(t, map[string]AuthenticationHandler{
		"corp":     corp,
		"partners": partners,
	})

	criteria := criteriaFor(
		LabeledDn{Label: "corp", Dn: "uid=jdoe,dc=corp"},
		LabeledDn{Label: "partners", Dn: "uid=jdoe,dc=partners"},
	)

	response, err := h.Authenticate(context.Background(), criteria)
	if err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if !response.Success {
		t.Fatal("Authenticate() reported failure, want success")
	}

	if len(corp.seenDNs) != 1 || corp.seenDNs[0] != "uid=jdoe,dc=corp" {
		t.Errorf("corp handler saw %v, want the unwrapped corp DN", corp.seenDNs)
	}
	if len(partners.seenDNs) != 1 || partners.seenDNs[0] != "uid=jdoe,dc=partners" {
		t.Errorf("partners handler saw %v, want the unwrapped partners DN", partners.seenDNs)
	}

	// The criteria collapse to the winning backend only.
	mdn, err := DeserializeMultiDN(criteria.DN)
	if err != nil {
		t.Fatalf("collapsed DN did not parse: %v", err)
	}
	if mdn.Len() != 1 {
		t.Fatalf("collapsed token holds %d entries, want 1", mdn.Len())
	}
	first, _ := mdn.First()
	if first.Label != "partners" || first.Dn != "uid=jdoe,dc=partners" {
		t.Errorf("collapsed entry = %+v, want the partners entry", first)
	}
}

func TestAggregateAuthenticationHandlerStopsAfterSuccess(t *testing.T) {
	corp := accept()
	partners := reject()

	h := newAggregateHandler(t, map[string]AuthenticationHandler{
		"corp":     corp,
		"partners": partners,
	})

	criteria := criteriaFor(
		LabeledDn{Label: "corp", Dn: "uid=jdoe,dc=corp"},
		LabeledDn{Label: "partners", Dn: "uid=jdoe,dc=partners"},
	)

	response, err := h.Authenticate(context.Background(), criteria)
	if err != nil || !response.Success {
		t.Fatalf("Authenticate() = %+v, %v, want success", response, err)
	}
	if len(partners.seenDNs) != 0 {
		t.Errorf("partners handler was tried after corp succeeded: %v", partners.seenDNs)
	}
}

func TestAggregateAuthenticationHandlerSingleEntryKeepsToken(t *testing.T) {
	h := newAggregateHandler(t, map[string]AuthenticationHandler{"corp": accept()})

	criteria := criteriaFor(LabeledDn{Label: "corp", Dn: "uid=jdoe,dc=corp"})
	original := criteria.DN

	if _, err := h.Authenticate(context.Background(), criteria); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
	if criteria.DN != original {
		t.Errorf("single-entry token was rewritten from %q to %q", original, criteria.DN)
	}
}

func TestAggregateAuthenticationHandlerAllRejected(t *testing.T) {
	h := newAggregateHandler(t, map[string]AuthenticationHandler{
		"corp":     reject(),
		"partners": reject(),
	})

	criteria := criteriaFor(
		LabeledDn{Label: "corp", Dn: "uid=jdoe,dc=corp"},
		LabeledDn{Label: "partners", Dn: "uid=jdoe,dc=partners"},
	)

	response, err := h.Authenticate(context.Background(), criteria)
	if err != nil {
		t.Fatalf("rejected credentials produced error: %v", err)
	}
	if response.Success {
		t.Error("Success = true, want false")
	}
	if response.ResultCode != 49 {
		t.Errorf("ResultCode = %d, want 49", response.ResultCode)
	}
}

func TestAggregateAuthenticationHandlerMissingLabel(t *testing.T) {
	h := newAggregateHandler(t, map[string]AuthenticationHandler{"corp": accept()})

	criteria := criteriaFor(LabeledDn{Label: "unknown", Dn: "uid=jdoe,dc=x"})

	_, err := h.Authenticate(context.Background(), criteria)
	if !errors.Is(err, ErrMissingLabel) {
		t.Fatalf("Authenticate() error = %v, want ErrMissingLabel", err)
	}

	var mle *MissingLabelError
	if !errors.As(err, &mle) || mle.Label != "unknown" {
		t.Errorf("error %v does not carry the unbound label", err)
	}
}

func TestAggregateAuthenticationHandlerHandlerErrorAborts(t *testing.T) {
	boom := errors.New("backend unreachable")
	corp := &scriptedHandler{err: boom}
	partners := accept()

	h := newAggregateHandler(t, map[string]AuthenticationHandler{
		"corp":     corp,
		"partners": partners,
	})

	criteria := criteriaFor(
		LabeledDn{Label: "corp", Dn: "uid=jdoe,dc=corp"},
		LabeledDn{Label: "partners", Dn: "uid=jdoe,dc=partners"},
	)

	_, err := h.Authenticate(context.Background(), criteria)
	if !errors.Is(err, boom) {
		t.Fatalf("Authenticate() error = %v, want the handler's error", err)
	}
	if len(partners.seenDNs) != 0 {
		t.Error("later handler was tried after an aborting error")
	}
}

func TestAggregateAuthenticationHandlerBadToken(t *testing.T) {
	h := newAggregateHandler(t, map[string]AuthenticationHandler{"corp": accept()})

	tests := []struct {
		name string
		dn   string
	}{
		{name: "bare dn", dn: "uid=jdoe,dc=corp"},
		{name: "empty token", dn: TokenPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Authenticate(context.Background(), &AuthenticationCriteria{
				DN:      tt.dn,
				Request: &AuthenticationRequest{User: &User{Identifier: "jdoe"}},
			})
			if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("Authenticate() error = %v, want ErrMalformedToken", err)
			}
		})
	}
}
