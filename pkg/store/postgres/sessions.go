package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/sonara-health/sonara/pkg/store"
)

// SaveSession implements [store.SessionStore]. Records are insert-only;
// a conflicting ID surfaces as [store.ErrDuplicate].
func (s *Store) SaveSession(ctx context.Context, rec store.SessionRecord) error {
	wordCloud, err := json.Marshal(rec.WordCloud)
	if err != nil {
		return fmt.Errorf("session store: marshal word cloud: %w", err)
	}
	speakingTime, err := json.Marshal(rec.SpeakingTime)
	if err != nil {
		return fmt.Errorf("session store: marshal speaking time: %w", err)
	}
	degraded, err := json.Marshal(rec.Degraded)
	if err != nil {
		return fmt.Errorf("session store: marshal degraded: %w", err)
	}

	const q = `
		INSERT INTO sessions
		    (id, patient_id, therapy_type, date, transcript, summary,
		     sentiment, word_cloud, speaking_time, degraded)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, q,
		rec.ID,
		rec.PatientID,
		rec.TherapyType,
		rec.Date,
		rec.Transcript,
		rec.Summary,
		rec.Sentiment,
		wordCloud,
		speakingTime,
		degraded,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return store.ErrDuplicate
		}
		return fmt.Errorf("session store: save session: %w", err)
	}
	return nil
}

const sessionColumns = `id, patient_id, therapy_type, date, transcript, summary,
		       sentiment, word_cloud, speaking_time, degraded`

// GetSession implements [store.SessionStore].
func (s *Store) GetSession(ctx context.Context, id string) (store.SessionRecord, error) {
	q := `
		SELECT ` + sessionColumns + `
		FROM   sessions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return store.SessionRecord{}, fmt.Errorf("session store: get session: %w", err)
	}
	recs, err := collectSessions(rows)
	if err != nil {
		return store.SessionRecord{}, fmt.Errorf("session store: get session: %w", err)
	}
	if len(recs) == 0 {
		return store.SessionRecord{}, store.ErrNotFound
	}
	return recs[0], nil
}

// ListSessionsByPatient implements [store.SessionStore]. Results are
// ordered most recent first.
func (s *Store) ListSessionsByPatient(ctx context.Context, patientID string) ([]store.SessionRecord, error) {
	q := `
		SELECT ` + sessionColumns + `
		FROM   sessions
		WHERE  patient_id = $1
		ORDER  BY date DESC`

	rows, err := s.pool.Query(ctx, q, patientID)
	if err != nil {
		return nil, fmt.Errorf("session store: list sessions: %w", err)
	}
	recs, err := collectSessions(rows)
	if err != nil {
		return nil, fmt.Errorf("session store: list sessions: %w", err)
	}
	return recs, nil
}

// IndexSessionEmbedding implements [store.SessionStore]. Re-indexing a
// session replaces its previous embedding.
func (s *Store) IndexSessionEmbedding(ctx context.Context, id string, embedding []float32) error {
	const q = `
		INSERT INTO session_embeddings (session_id, embedding)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET
		    embedding = EXCLUDED.embedding`

	_, err := s.pool.Exec(ctx, q, id, pgvector.NewVector(embedding))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return store.ErrNotFound
		}
		return fmt.Errorf("session store: index embedding: %w", err)
	}
	return nil
}

// SearchSessions implements [store.SessionStore]. Results are ordered
// by ascending cosine distance (most similar first).
func (s *Store) SearchSessions(ctx context.Context, embedding []float32, limit int) ([]store.SessionMatch, error) {
	q := `
		SELECT ` + sessionColumns + `,
		       e.embedding <=> $1 AS distance
		FROM   session_embeddings e
		JOIN   sessions ON sessions.id = e.session_id
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("session store: search sessions: %w", err)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SessionMatch, error) {
		var (
			m                                 store.SessionMatch
			wordCloud, speakingTime, degraded []byte
		)
		if err := row.Scan(
			&m.Session.ID,
			&m.Session.PatientID,
			&m.Session.TherapyType,
			&m.Session.Date,
			&m.Session.Transcript,
			&m.Session.Summary,
			&m.Session.Sentiment,
			&wordCloud,
			&speakingTime,
			&degraded,
			&m.Distance,
		); err != nil {
			return store.SessionMatch{}, err
		}
		if err := unmarshalInsights(&m.Session, wordCloud, speakingTime, degraded); err != nil {
			return store.SessionMatch{}, err
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session store: search sessions: %w", err)
	}
	return matches, nil
}

func collectSessions(rows pgx.Rows) ([]store.SessionRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SessionRecord, error) {
		var (
			rec                               store.SessionRecord
			wordCloud, speakingTime, degraded []byte
		)
		if err := row.Scan(
			&rec.ID,
			&rec.PatientID,
			&rec.TherapyType,
			&rec.Date,
			&rec.Transcript,
			&rec.Summary,
			&rec.Sentiment,
			&wordCloud,
			&speakingTime,
			&degraded,
		); err != nil {
			return store.SessionRecord{}, err
		}
		if err := unmarshalInsights(&rec, wordCloud, speakingTime, degraded); err != nil {
			return store.SessionRecord{}, err
		}
		return rec, nil
	})
}

func unmarshalInsights(rec *store.SessionRecord, wordCloud, speakingTime, degraded []byte) error {
	if err := json.Unmarshal(wordCloud, &rec.WordCloud); err != nil {
		return fmt.Errorf("unmarshal word cloud: %w", err)
	}
	if err := json.Unmarshal(speakingTime, &rec.SpeakingTime); err != nil {
		return fmt.Errorf("unmarshal speaking time: %w", err)
	}
	if err := json.Unmarshal(degraded, &rec.Degraded); err != nil {
		return fmt.Errorf("unmarshal degraded: %w", err)
	}
	return nil
}
