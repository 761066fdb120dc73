package history

import "context"

// ChapterStats aggregates exchanges routed to one chapter. Refused
// exchanges show up under chapter "None".
type ChapterStats struct {
	Chapter       string  `json:"chapter"`
	Questions     int64   `json:"questions"`
	MeanRelevance float64 `json:"mean_relevance"`
	Refusals      int64   `json:"refusals"`
}

// Stats summarizes recorded chat activity.
type Stats struct {
	Exchanges   int64          `json:"exchanges"`
	Sessions    int64          `json:"sessions"`
	Refusals    int64          `json:"refusals"`
	RefusalRate float64        `json:"refusal_rate"`
	Chapters    []ChapterStats `json:"chapters"`
	Recent      []*Exchange    `json:"recent"`
}

const recentExchanges = 5

// Stats computes aggregate analytics across all sessions.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(refused), 0) FROM exchanges`,
	).Scan(&stats.Exchanges, &stats.Refusals)
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&stats.Sessions); err != nil {
		return nil, err
	}
	if stats.Exchanges > 0 {
		stats.RefusalRate = float64(stats.Refusals) / float64(stats.Exchanges)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT chapter, COUNT(*), COALESCE(AVG(relevance), 0), COALESCE(SUM(refused), 0)
		 FROM exchanges GROUP BY chapter ORDER BY COUNT(*) DESC, chapter`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cs ChapterStats
		if err := rows.Scan(&cs.Chapter, &cs.Questions, &cs.MeanRelevance, &cs.Refusals); err != nil {
			return nil, err
		}
		stats.Chapters = append(stats.Chapters, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, question, answer, chapter, relevance, refused, asked_at
		 FROM exchanges ORDER BY id DESC LIMIT ?`, recentExchanges,
	)
	if err != nil {
		return nil, err
	}
	defer recent.Close()
	for recent.Next() {
		var ex Exchange
		if err := recent.Scan(&ex.ID, &ex.SessionID, &ex.Question, &ex.Answer, &ex.Chapter, &ex.Relevance, &ex.Refused, &ex.AskedAt); err != nil {
			return nil, err
		}
		stats.Recent = append(stats.Recent, &ex)
	}
	return stats, recent.Err()
}
