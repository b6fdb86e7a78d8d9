package backend

import (
	"context"
	"fmt"
	"net/url"

	"docchat/internal/domain"
)

// Ask implements domain.Answerer (POST /api/qa/ask). The backend reports
// pipeline failures in-band with success=false and a placeholder answer;
// those become errors here.
func (c *Client) Ask(ctx context.Context, question, sessionID string) (*domain.Answer, error) {
	req := qaRequest{
		Question:   question,
		SessionID:  sessionID,
		MaxSources: c.maxSources,
	}
	if err := validateRequest("backend.ask", req); err != nil {
		return nil, err
	}

	var resp qaResponse
	if err := c.postJSON(ctx, "/api/qa/ask", req, &resp); err != nil {
		return nil, err
	}
	return resp.answer()
}

// Explain implements domain.Explainer (POST /api/qa/explain).
func (c *Client) Explain(ctx context.Context, turn domain.Turn) (*domain.Explanation, error) {
	q := explainQuery{Question: turn.Question, Answer: turn.Answer}
	if err := validateRequest("backend.explain", q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("question", q.Question)
	params.Set("answer", q.Answer)

	var resp explainResponse
	if err := c.postJSON(ctx, "/api/qa/explain?"+params.Encode(), sourcesBody(turn.Sources), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: explanation unavailable", domain.ErrBackend)
	}
	return &domain.Explanation{
		Text:            resp.Explanation,
		SourcesAnalyzed: resp.SourcesAnalyzed,
		ProcessingTime:  resp.ProcessingTime,
	}, nil
}

// FollowUp implements domain.Explainer (POST /api/qa/follow-up). The backend
// folds the previous turn into the question and answers without a session.
func (c *Client) FollowUp(ctx context.Context, question string, previous domain.Turn) (*domain.Answer, error) {
	q := followUpQuery{
		Question:         question,
		PreviousQuestion: previous.Question,
		PreviousAnswer:   previous.Answer,
	}
	if err := validateRequest("backend.follow_up", q); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("question", q.Question)
	params.Set("previous_question", q.PreviousQuestion)
	params.Set("previous_answer", q.PreviousAnswer)

	var resp qaResponse
	if err := c.postJSON(ctx, "/api/qa/follow-up?"+params.Encode(), sourcesBody(previous.Sources), &resp); err != nil {
		return nil, err
	}
	return resp.answer()
}

func (r qaResponse) answer() (*domain.Answer, error) {
	if r.Success != nil && !*r.Success {
		msg := r.Error
		if msg == "" {
			msg = "question could not be answered"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrBackend, msg)
	}
	return &domain.Answer{
		Text:           r.Answer,
		Sources:        toCitations(r.Sources),
		Confidence:     r.Confidence,
		ProcessingTime: r.ProcessingTime,
		SessionID:      r.SessionID,
	}, nil
}

// sourcesBody never encodes null: the backend requires a list.
func sourcesBody(sources []domain.CitationSource) []domain.CitationSource {
	if sources == nil {
		return []domain.CitationSource{}
	}
	return sources
}
