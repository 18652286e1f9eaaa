package weddings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lovenda/veil/pkg/audit"
	"github.com/lovenda/veil/pkg/authz"
	"github.com/lovenda/veil/pkg/observability"
)

// Service is the wedding resource layer. Mutations that change who can do
// what (membership, invitations, archive, settings) are guarded by the
// authorization engine at this boundary; reads are gated by the HTTP layer.
type Service interface {
	CreateWedding(ctx context.Context, actorID string, w *Wedding) error
	GetWedding(ctx context.Context, id string) (*Wedding, error)
	ListWeddingsForPrincipal(ctx context.Context, principalID string) ([]*Wedding, error)
	UpdateWedding(ctx context.Context, actorID, id string, updates WeddingUpdate) (*Wedding, error)
	ArchiveWedding(ctx context.Context, actorID, id string) error

	AddMember(ctx context.Context, actorID, weddingID, principalID string, role authz.Role) (*Wedding, error)
	RemoveMember(ctx context.Context, actorID, weddingID, principalID string) (*Wedding, error)
	ListMembers(ctx context.Context, weddingID string) ([]Member, error)

	CreateInvitation(ctx context.Context, actorID, weddingID, rawRole string, ttl time.Duration) (*Invitation, error)
	AcceptInvitation(ctx context.Context, code, principalID string) (*Wedding, error)
	PurgeExpiredInvitations(ctx context.Context) (int64, error)

	PermissionsFor(ctx context.Context, weddingID, principalID string) (authz.Role, authz.PermissionSet, error)

	ListItems(ctx context.Context, weddingID string, collection authz.Collection) ([]*Item, error)
	CreateItem(ctx context.Context, actorID, weddingID string, collection authz.Collection, data map[string]any) (*Item, error)
	GetItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string) (*Item, error)
	UpdateItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string, data map[string]any) (*Item, error)
	DeleteItem(ctx context.Context, weddingID string, collection authz.Collection, itemID string) error
}

// WeddingUpdate carries the mutable business fields. Nil pointers leave the
// stored value untouched.
type WeddingUpdate struct {
	Name        *string         `json:"name,omitempty"`
	WeddingDate *time.Time      `json:"wedding_date,omitempty"`
	Location    *string         `json:"location,omitempty"`
	Settings    *map[string]any `json:"settings,omitempty"`
}

// Member pairs a principal with their effective role on a wedding.
type Member struct {
	PrincipalID string     `json:"principal_id"`
	Role        authz.Role `json:"role"`
}

// PostgresService implements Service using database/sql.
type PostgresService struct {
	db       *sql.DB
	logger   *observability.Logger
	cache    *PermissionCache
	auditLog audit.Logger
}

// NewPostgresService creates a new PostgresService. The cache may be nil.
func NewPostgresService(db *sql.DB, logger *observability.Logger, cache *PermissionCache) *PostgresService {
	return &PostgresService{db: db, logger: logger, cache: cache}
}

// SetAuditLogger attaches an audit sink for data-integrity warnings.
func (s *PostgresService) SetAuditLogger(l audit.Logger) {
	s.auditLog = l
}

// reportIntegrityWarning records a stored role string the registry does not
// recognize.
func (s *PostgresService) reportIntegrityWarning(ctx context.Context, weddingID, rawRole, message string) {
	if s.logger != nil {
		s.logger.WithField("role", rawRole).WithField("wedding_id", weddingID).Warn(message)
	}
	if s.auditLog != nil {
		_ = s.auditLog.Log(ctx, &audit.Event{
			Timestamp: time.Now().UTC(),
			EventType: audit.EventTypeDataIntegrityWarning,
			WeddingID: weddingID,
			Details:   map[string]any{"role": rawRole, "message": message},
		})
	}
}

// CreateWedding inserts a wedding. The acting principal always ends up in
// the owner list, whatever the caller supplied.
func (s *PostgresService) CreateWedding(ctx context.Context, actorID string, w *Wedding) error {
	if actorID == "" {
		return ErrPermissionDenied
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if !contains(w.OwnerIDs, actorID) {
		w.OwnerIDs = append(w.OwnerIDs, actorID)
	}
	now := time.Now().UTC()
	w.CreatedAt = now
	w.UpdatedAt = now
	w.Archived = false

	owners, planners, assistants, settings, err := marshalWeddingJSON(w)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO weddings (id, name, wedding_date, location, settings, owner_ids, planner_ids, assistant_ids, archived, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		w.ID, w.Name, w.WeddingDate, w.Location, settings,
		owners, planners, assistants, w.Archived, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create wedding: %w", err)
	}
	return nil
}

// PermissionsFor resolves a principal's role and permission set on a
// wedding, consulting the snapshot cache before the database. Unknown
// weddings and non-members resolve to the empty role with the all-false set;
// the decision engine turns both into deny.
func (s *PostgresService) PermissionsFor(ctx context.Context, weddingID, principalID string) (authz.Role, authz.PermissionSet, error) {
	if s.cache != nil {
		if role, perms, ok := s.cache.Get(ctx, weddingID, principalID); ok {
			return role, perms, nil
		}
	}

	w, err := s.GetWedding(ctx, weddingID)
	if err != nil {
		if errors.Is(err, ErrWeddingNotFound) {
			return "", authz.PermissionsForRole(""), nil
		}
		return "", nil, err
	}

	role := authz.RoleOf(principalID, w.Membership())
	if s.cache != nil && role != "" {
		s.cache.Put(ctx, weddingID, principalID, role)
	}
	return role, authz.PermissionsForRole(role), nil
}

// Stats reports the aggregate counts behind the business gauges.
type Stats struct {
	ActiveWeddings     int64
	PendingInvitations int64
}

// Stats counts active weddings and invitations still awaiting acceptance.
func (s *PostgresService) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM weddings WHERE archived = false`).Scan(&st.ActiveWeddings)
	if err != nil {
		return nil, fmt.Errorf("failed to count weddings: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM wedding_invitations
		WHERE accepted_at IS NULL AND expires_at > $1`,
		time.Now().UTC()).Scan(&st.PendingInvitations)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending invitations: %w", err)
	}
	return &st, nil
}

// GetWedding retrieves a wedding by ID.
func (s *PostgresService) GetWedding(ctx context.Context, id string) (*Wedding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, wedding_date, location, settings, owner_ids, planner_ids, assistant_ids, archived, created_at, updated_at
		FROM weddings WHERE id = $1`, id)
	return s.scanWedding(row)
}

// ListWeddingsForPrincipal lists weddings whose membership lists contain
// the principal. Lists are JSON arrays, so membership is resolved in Go
// after a cheap LIKE prefilter.
func (s *PostgresService) ListWeddingsForPrincipal(ctx context.Context, principalID string) ([]*Wedding, error) {
	if principalID == "" {
		return nil, nil
	}
	pattern := `%"` + principalID + `"%`
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, wedding_date, location, settings, owner_ids, planner_ids, assistant_ids, archived, created_at, updated_at
		FROM weddings
		WHERE archived = false
		  AND (owner_ids LIKE $1 OR planner_ids LIKE $1 OR assistant_ids LIKE $1)
		ORDER BY created_at DESC`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to list weddings: %w", err)
	}
	defer rows.Close()

	var out []*Wedding
	for rows.Next() {
		w, err := s.scanWedding(rows)
		if err != nil {
			return nil, err
		}
		// LIKE can match substrings of longer IDs; confirm real membership
		if authz.IsMember(principalID, w.Membership()) {
			out = append(out, w)
		}
	}
	return out, rows.Err()
}

// UpdateWedding applies business-field updates. Guarded by manageSettings.
func (s *PostgresService) UpdateWedding(ctx context.Context, actorID, id string, updates WeddingUpdate) (*Wedding, error) {
	w, err := s.GetWedding(ctx, id)
	if err != nil {
		return nil, err
	}
	if !authz.Authorize(actorID, w.Membership(), authz.CapManageSettings) {
		return nil, ErrPermissionDenied
	}

	if updates.Name != nil {
		w.Name = *updates.Name
	}
	if updates.WeddingDate != nil {
		w.WeddingDate = updates.WeddingDate
	}
	if updates.Location != nil {
		w.Location = *updates.Location
	}
	if updates.Settings != nil {
		w.Settings = *updates.Settings
	}
	w.UpdatedAt = time.Now().UTC()

	settings, err := json.Marshal(w.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE weddings SET name = $1, wedding_date = $2, location = $3, settings = $4, updated_at = $5
		WHERE id = $6`,
		w.Name, w.WeddingDate, w.Location, settings, w.UpdatedAt, w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update wedding: %w", err)
	}
	return w, nil
}

// ArchiveWedding soft-deletes a wedding. Guarded by archiveWedding.
func (s *PostgresService) ArchiveWedding(ctx context.Context, actorID, id string) error {
	w, err := s.GetWedding(ctx, id)
	if err != nil {
		return err
	}
	if !authz.Authorize(actorID, w.Membership(), authz.CapArchiveWedding) {
		return ErrPermissionDenied
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE weddings SET archived = true, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to archive wedding: %w", err)
	}
	s.invalidateCache(ctx, id)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresService) scanWedding(row rowScanner) (*Wedding, error) {
	w := &Wedding{}
	var (
		weddingDate sql.NullTime
		location    sql.NullString
		settings    []byte
		owners      []byte
		planners    []byte
		assistants  []byte
	)
	err := row.Scan(&w.ID, &w.Name, &weddingDate, &location, &settings,
		&owners, &planners, &assistants, &w.Archived, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrWeddingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wedding: %w", err)
	}

	if weddingDate.Valid {
		w.WeddingDate = &weddingDate.Time
	}
	if location.Valid {
		w.Location = location.String
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &w.Settings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
		}
	}
	if err := unmarshalIDs(owners, &w.OwnerIDs); err != nil {
		return nil, err
	}
	if err := unmarshalIDs(planners, &w.PlannerIDs); err != nil {
		return nil, err
	}
	if err := unmarshalIDs(assistants, &w.AssistantIDs); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *PostgresService) invalidateCache(ctx context.Context, weddingID string) {
	if s.cache != nil {
		s.cache.InvalidateWedding(ctx, weddingID)
	}
}

func marshalWeddingJSON(w *Wedding) (owners, planners, assistants, settings []byte, err error) {
	if owners, err = marshalIDs(w.OwnerIDs); err != nil {
		return
	}
	if planners, err = marshalIDs(w.PlannerIDs); err != nil {
		return
	}
	if assistants, err = marshalIDs(w.AssistantIDs); err != nil {
		return
	}
	settings, err = json.Marshal(w.Settings)
	return
}

// marshalIDs renders a membership list as a JSON array, never null.
func marshalIDs(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal membership list: %w", err)
	}
	return data, nil
}

func unmarshalIDs(data []byte, out *[]string) error {
	if len(data) == 0 {
		*out = []string{}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to unmarshal membership list: %w", err)
	}
	return nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
