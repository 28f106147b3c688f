package memory

import (
	"context"

	"consigna/internal/domain/audit"
)

// AuditRepo implements audit.Recorder.
type AuditRepo struct{ s *Store }

var _ audit.Recorder = (*AuditRepo)(nil)

func (r *AuditRepo) Record(ctx context.Context, entry audit.Entry) error {
	return r.s.write(ctx, func(st *state) error {
		st.audit = append(st.audit, entry)
		return nil
	})
}

// History returns newest first.
func (r *AuditRepo) History(ctx context.Context, entityType, entityID string, limit int) ([]audit.Entry, error) {
	var out []audit.Entry
	r.s.read(ctx, func(st *state) {
		for i := len(st.audit) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
			e := st.audit[i]
			if e.EntityType == entityType && e.EntityID == entityID {
				out = append(out, e)
			}
		}
	})
	return out, nil
}
