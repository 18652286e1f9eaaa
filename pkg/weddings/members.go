package weddings

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/lovenda/veil/pkg/authz"
)

// DefaultInvitationTTL is used when no explicit TTL is given.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// AddMember places a principal in the list for the given role, removing it
// from any other list first so nobody appears twice. Guarded by
// manageAssistants.
func (s *PostgresService) AddMember(ctx context.Context, actorID, weddingID, principalID string, role authz.Role) (*Wedding, error) {
	if principalID == "" {
		return nil, fmt.Errorf("principal ID is required")
	}
	if !authz.IsCanonical(role) {
		return nil, fmt.Errorf("unknown role %q", role)
	}

	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(actorID, w.Membership(), authz.CapManageAssistants) {
		return nil, ErrPermissionDenied
	}

	removeFromLists(w, principalID)
	switch role {
	case authz.RoleOwner:
		w.OwnerIDs = append(w.OwnerIDs, principalID)
	case authz.RolePlanner:
		w.PlannerIDs = append(w.PlannerIDs, principalID)
	case authz.RoleAssistant:
		w.AssistantIDs = append(w.AssistantIDs, principalID)
	}

	if err := s.saveMembership(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// RemoveMember drops a principal from every membership list. Guarded by
// manageAssistants. Removing the last owner is allowed; the wedding then
// resolves every owner-only capability to deny until an owner is restored
// through data repair.
func (s *PostgresService) RemoveMember(ctx context.Context, actorID, weddingID, principalID string) (*Wedding, error) {
	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(actorID, w.Membership(), authz.CapManageAssistants) {
		return nil, ErrPermissionDenied
	}

	if !authz.IsMember(principalID, w.Membership()) {
		return w, nil
	}
	removeFromLists(w, principalID)

	if err := s.saveMembership(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// ListMembers returns every principal with their effective role, owners
// first.
func (s *PostgresService) ListMembers(ctx context.Context, weddingID string) ([]Member, error) {
	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}

	members := make([]Member, 0, len(w.OwnerIDs)+len(w.PlannerIDs)+len(w.AssistantIDs))
	seen := make(map[string]bool)
	appendRole := func(ids []string, role authz.Role) {
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			members = append(members, Member{PrincipalID: id, Role: role})
		}
	}
	appendRole(w.OwnerIDs, authz.RoleOwner)
	appendRole(w.PlannerIDs, authz.RolePlanner)
	appendRole(w.AssistantIDs, authz.RoleAssistant)
	return members, nil
}

// CreateInvitation issues an invitation code granting a role on redemption.
// The raw role is normalized here, so stored invitations always carry a
// canonical role. Guarded by inviteCollaborators.
func (s *PostgresService) CreateInvitation(ctx context.Context, actorID, weddingID, rawRole string, ttl time.Duration) (*Invitation, error) {
	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(actorID, w.Membership(), authz.CapInviteCollaborators) {
		return nil, ErrPermissionDenied
	}

	role := authz.NormalizeRole(rawRole, authz.RoleAssistant)
	if !authz.IsCanonical(role) {
		// Legacy data sometimes carries free-form role strings; surface
		// them as integrity warnings and fall back rather than fail.
		s.reportIntegrityWarning(ctx, weddingID, rawRole, "Unrecognized invitation role, defaulting to assistant")
		role = authz.RoleAssistant
	}
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}

	inv := &Invitation{
		Code:      generateInvitationCode(),
		WeddingID: weddingID,
		Role:      role,
		InvitedBy: actorID,
		ExpiresAt: time.Now().UTC().Add(ttl),
		CreatedAt: time.Now().UTC(),
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO wedding_invitations (code, wedding_id, role, invited_by, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		inv.Code, inv.WeddingID, string(inv.Role), inv.InvitedBy, inv.ExpiresAt, inv.CreatedAt,
	).Scan(&inv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}
	return inv, nil
}

// AcceptInvitation redeems a code for the accepting principal, placing them
// in the membership list named by the invitation role. A code can be
// redeemed once.
func (s *PostgresService) AcceptInvitation(ctx context.Context, code, principalID string) (*Wedding, error) {
	if principalID == "" {
		return nil, ErrPermissionDenied
	}

	var (
		id        int64
		weddingID string
		roleStr   string
		expiresAt time.Time
		accepted  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, wedding_id, role, expires_at, accepted_at
		FROM wedding_invitations WHERE code = $1`, code,
	).Scan(&id, &weddingID, &roleStr, &expiresAt, &accepted)
	if err == sql.ErrNoRows {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}
	if accepted.Valid {
		return nil, ErrInvitationNotFound
	}
	if time.Now().After(expiresAt) {
		return nil, ErrInvitationExpired
	}

	// Stored rows may predate role normalization
	role := authz.NormalizeRole(roleStr, authz.RoleAssistant)
	if !authz.IsCanonical(role) {
		s.reportIntegrityWarning(ctx, weddingID, roleStr, "Unrecognized stored invitation role, defaulting to assistant")
		role = authz.RoleAssistant
	}

	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}

	if !authz.IsMember(principalID, w.Membership()) {
		switch role {
		case authz.RoleOwner:
			w.OwnerIDs = append(w.OwnerIDs, principalID)
		case authz.RolePlanner:
			w.PlannerIDs = append(w.PlannerIDs, principalID)
		default:
			w.AssistantIDs = append(w.AssistantIDs, principalID)
		}
		if err := s.saveMembership(ctx, w); err != nil {
			return nil, err
		}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE wedding_invitations SET accepted_at = $1, accepted_by = $2 WHERE id = $3`,
		time.Now().UTC(), principalID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invitation accepted: %w", err)
	}
	return w, nil
}

// PurgeExpiredInvitations deletes unaccepted invitations past their expiry.
// Returns the number of rows removed.
func (s *PostgresService) PurgeExpiredInvitations(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM wedding_invitations
		WHERE accepted_at IS NULL AND expires_at < $1`,
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge invitations: %w", err)
	}
	return res.RowsAffected()
}

// saveMembership persists the three membership lists and drops any cached
// permission snapshots for the wedding.
func (s *PostgresService) saveMembership(ctx context.Context, w *Wedding) error {
	owners, err := marshalIDs(w.OwnerIDs)
	if err != nil {
		return err
	}
	planners, err := marshalIDs(w.PlannerIDs)
	if err != nil {
		return err
	}
	assistants, err := marshalIDs(w.AssistantIDs)
	if err != nil {
		return err
	}

	w.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE weddings SET owner_ids = $1, planner_ids = $2, assistant_ids = $3, updated_at = $4
		WHERE id = $5`,
		owners, planners, assistants, w.UpdatedAt, w.ID)
	if err != nil {
		return fmt.Errorf("failed to save membership: %w", err)
	}

	s.invalidateCache(ctx, w.ID)
	return nil
}

func removeFromLists(w *Wedding, principalID string) {
	w.OwnerIDs = removeID(w.OwnerIDs, principalID)
	w.PlannerIDs = removeID(w.PlannerIDs, principalID)
	w.AssistantIDs = removeID(w.AssistantIDs, principalID)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// generateInvitationCode returns a 16-byte random hex code.
func generateInvitationCode() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failures are unrecoverable
		panic(fmt.Sprintf("failed to generate invitation code: %v", err))
	}
	return hex.EncodeToString(b)
}
