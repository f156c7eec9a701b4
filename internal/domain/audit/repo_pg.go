package audit

import (
	"context"
	"fmt"

	"github.com/pulse/pulse/internal/platform/db"
)

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

const entryCols = `log_id, request_id, agent_type, timestamp, latency_ms, model,
	input_tokens, output_tokens, total_tokens, estimated_cost_usd,
	status, error_message, appointment_id, patient_id`

func (r *repoPG) Insert(ctx context.Context, e *Entry) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO agent_audit_logs (`+entryCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		e.LogID, e.RequestID, e.AgentType, e.Timestamp, e.LatencyMs, e.Model,
		e.InputTokens, e.OutputTokens, e.TotalTokens, e.EstimatedCostUSD,
		e.Status, e.ErrorMessage, e.AppointmentID, e.PatientID)
	return err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Entry, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.AgentType != "" {
		where += fmt.Sprintf(` AND agent_type = $%d`, idx)
		args = append(args, f.AgentType)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM agent_audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + entryCols + ` FROM agent_audit_logs` + where +
		fmt.Sprintf(` ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.LogID, &e.RequestID, &e.AgentType, &e.Timestamp, &e.LatencyMs, &e.Model,
			&e.InputTokens, &e.OutputTokens, &e.TotalTokens, &e.EstimatedCostUSD,
			&e.Status, &e.ErrorMessage, &e.AppointmentID, &e.PatientID); err != nil {
			return nil, 0, err
		}
		items = append(items, &e)
	}
	return items, total, rows.Err()
}
