package risk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pulse/pulse/internal/platform/db"
)

const pgForeignKeyViolation = "23503"

type repoPG struct{ q db.Querier }

func NewRepoPG(q db.Querier) Repository { return &repoPG{q: q} }

func (r *repoPG) conn(ctx context.Context) db.Querier { return db.Conn(ctx, r.q) }

const assessmentCols = `assessment_id, appointment_id, risk_score, risk_badge,
	primary_risk_factor, secondary_risk_factor, contributing_factors,
	predicted_show_probability, weather_condition, weather_impact_score,
	virtual_eligible, virtual_reason, virtual_confidence, model_version, generated_at`

func (r *repoPG) Get(ctx context.Context, appointmentID string) (*Assessment, error) {
	var a Assessment
	var factors []byte
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+assessmentCols+` FROM ai_risk_assessments WHERE appointment_id = $1`, appointmentID).
		Scan(&a.AssessmentID, &a.AppointmentID, &a.RiskScore, &a.RiskBadge,
			&a.PrimaryRiskFactor, &a.SecondaryRiskFactor, &factors,
			&a.PredictedShowProbability, &a.WeatherCondition, &a.WeatherImpactScore,
			&a.VirtualEligible, &a.VirtualReason, &a.VirtualConfidence, &a.ModelVersion, &a.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("risk assessment for %s: %w", appointmentID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(factors) > 0 {
		if err := json.Unmarshal(factors, &a.ContributingFactors); err != nil {
			return nil, fmt.Errorf("decode contributing_factors: %w", err)
		}
	}
	return &a, nil
}

func (r *repoPG) Upsert(ctx context.Context, a *Assessment) error {
	factors, err := json.Marshal(a.ContributingFactors)
	if err != nil {
		return fmt.Errorf("encode contributing_factors: %w", err)
	}

	err = r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ai_risk_assessments (`+assessmentCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now())
		ON CONFLICT (appointment_id) DO UPDATE SET
			assessment_id = EXCLUDED.assessment_id,
			risk_score = EXCLUDED.risk_score,
			risk_badge = EXCLUDED.risk_badge,
			primary_risk_factor = EXCLUDED.primary_risk_factor,
			secondary_risk_factor = EXCLUDED.secondary_risk_factor,
			contributing_factors = EXCLUDED.contributing_factors,
			predicted_show_probability = EXCLUDED.predicted_show_probability,
			weather_condition = EXCLUDED.weather_condition,
			weather_impact_score = EXCLUDED.weather_impact_score,
			virtual_eligible = EXCLUDED.virtual_eligible,
			virtual_reason = EXCLUDED.virtual_reason,
			virtual_confidence = EXCLUDED.virtual_confidence,
			model_version = EXCLUDED.model_version,
			generated_at = EXCLUDED.generated_at
		RETURNING generated_at`,
		a.AssessmentID, a.AppointmentID, a.RiskScore, a.RiskBadge,
		a.PrimaryRiskFactor, a.SecondaryRiskFactor, factors,
		a.PredictedShowProbability, a.WeatherCondition, a.WeatherImpactScore,
		a.VirtualEligible, a.VirtualReason, a.VirtualConfidence, a.ModelVersion,
	).Scan(&a.GeneratedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
		return fmt.Errorf("appointment %s: %w", a.AppointmentID, ErrNotFound)
	}
	return err
}
