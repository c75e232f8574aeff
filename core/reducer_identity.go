package core

import "fmt"

const resourceIdentity = "identity"

type identityCreatePayload struct {
	DID string `json:"did"`
}

type identityCapabilityRegisterPayload struct {
	DID        string `json:"did"`
	Credential string `json:"credential"`
}

// applyIdentity handles identity.create, identity.updated and
// identity.capability.register. Capability registration appends to the
// identity's credential list without otherwise changing its state, matching
// the "created -> updated*; capability registrations append without state"
// lifecycle.
func applyIdentity(s *State, env *Envelope) ([]HeadUpdate, error) {
	switch env.Type {
	case "identity.create":
		var p identityCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		if p.DID == "" {
			p.DID = env.Issuer
		}
		if p.DID != env.Issuer {
			return nil, fmt.Errorf("%w: only the subject DID may create its own identity", ErrUnauthorizedIssuer)
		}
		head, ok, err := resourceHeadPrecondition(s, resourceIdentity, p.DID, env, true)
		if err != nil {
			return nil, err
		}
		_ = head
		if ok {
			return nil, fmt.Errorf("%w: identity %s already exists", ErrResourcePrevConflict, p.DID)
		}
		s.Identities[p.DID] = &Identity{DID: p.DID, CreatedAt: env.TS, UpdatedAt: env.TS}
		return []HeadUpdate{{Kind: resourceIdentity, ID: p.DID, NewHead: env.Hash, ExpectedPrev: ""}}, nil

	case "identity.updated":
		var p identityCreatePayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		id, ok := s.Identities[p.DID]
		if !ok {
			return nil, fmt.Errorf("%w: identity %s", ErrResourceNotFound, p.DID)
		}
		if env.Issuer != p.DID {
			return nil, fmt.Errorf("%w: only the subject DID may update its identity", ErrUnauthorizedIssuer)
		}
		if _, _, err := resourceHeadPrecondition(s, resourceIdentity, p.DID, env, false); err != nil {
			return nil, err
		}
		id.UpdatedAt = env.TS
		return []HeadUpdate{{Kind: resourceIdentity, ID: p.DID, NewHead: env.Hash, ExpectedPrev: env.ResourcePrev}}, nil

	case "identity.capability.register":
		var p identityCapabilityRegisterPayload
		if err := decodePayload(env, &p); err != nil {
			return nil, err
		}
		id, ok := s.Identities[p.DID]
		if !ok {
			return nil, fmt.Errorf("%w: identity %s", ErrResourceNotFound, p.DID)
		}
		if env.Issuer != p.DID {
			return nil, fmt.Errorf("%w: only the subject DID may register its own capability", ErrUnauthorizedIssuer)
		}
		if !verifyCapabilityCredential(p.Credential) {
			return nil, fmt.Errorf("%w: capability credential failed verification", ErrPeerMessageInvalid)
		}
		id.Capabilities = append(id.Capabilities, p.Credential)
		return nil, nil

	default:
		return nil, nil
	}
}

// verifyCapabilityCredential is the opaque verification hook the spec
// leaves undefined beyond its boolean contract; the credential schema is a
// domain concern outside the event envelope.
func verifyCapabilityCredential(cred string) bool {
	return cred != ""
}

// resourceHeadPrecondition checks the universal resourcePrev precondition
// for a resource: the recorded head for (kind, id) must equal
// envelope.resourcePrev. A missing head is only valid when requireCreate is
// true (the event is the resource's *.create event) and resourcePrev is
// empty. It returns the current head and whether one exists.
func resourceHeadPrecondition(s *State, kind, id string, env *Envelope, requireCreate bool) (string, bool, error) {
	head, ok := resourceHeadFromState(s, kind, id)
	if !ok {
		if requireCreate && env.ResourcePrev == "" {
			return "", false, nil
		}
		if !requireCreate {
			return "", false, fmt.Errorf("%w: %s/%s", ErrResourceNotFound, kind, id)
		}
		return "", false, fmt.Errorf("%w: %s/%s has no head but resourcePrev is set", ErrResourcePrevConflict, kind, id)
	}
	if head != env.ResourcePrev {
		return head, true, fmt.Errorf("%w: %s/%s head is %s, got resourcePrev %s", ErrResourcePrevConflict, kind, id, head, env.ResourcePrev)
	}
	return head, true, nil
}

// resourceHeadFromState reads the mirrored resource-chain head for
// (kind, id).
func resourceHeadFromState(s *State, kind, id string) (string, bool) {
	h, ok := s.resourceHeads[kind+"/"+id]
	return h, ok
}

// setResourceHead records the new head for (kind, id) in the in-memory
// mirror. Called only after the corresponding HeadUpdate has been returned
// to the caller, so State and the Event Store's head table stay in lock
// step under the single-writer model.
func setResourceHead(s *State, kind, id, hash string) {
	s.resourceHeads[kind+"/"+id] = hash
}
