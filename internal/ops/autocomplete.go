package ops

import (
	"context"
	"time"
)

// SessionOutput describes the open autocomplete session.
type SessionOutput struct {
	Token     string    `json:"token"`
	StartedAt time.Time `json:"started_at"`
}

// BeginSession opens a new autocomplete billing session.
func (s *Service) BeginSession() *SessionOutput {
	s.search.BeginSession()
	sess, _ := s.search.Session()
	return &SessionOutput{Token: sess.Token, StartedAt: sess.StartedAt}
}

// PredictInput contains the query for Predict.
type PredictInput struct {
	Query string
}

// PredictOutput contains predictions for the open session.
type PredictOutput struct {
	Predictions []string `json:"predictions"`
	Session     string   `json:"session,omitempty"`
}

// Predict requests predictions within the open session.
func (s *Service) Predict(ctx context.Context, input PredictInput) *PredictOutput {
	preds := s.search.GetPredictions(ctx, input.Query)
	if preds == nil {
		preds = []string{}
	}
	out := &PredictOutput{Predictions: preds}
	if sess, ok := s.search.Session(); ok {
		out.Session = sess.Token
	}
	return out
}

// EndSessionOutput reports whether a session was open.
type EndSessionOutput struct {
	Ended bool `json:"ended"`
}

// EndSession closes the autocomplete session. Safe to repeat.
func (s *Service) EndSession() *EndSessionOutput {
	_, open := s.search.Session()
	s.search.EndSession()
	return &EndSessionOutput{Ended: open}
}
