package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"
)

// LLMJudge is the LLM-as-judge cross-encoder variant: it scores one
// (query, passage) pair at a time to a scalar in [0,1].
type LLMJudge struct {
	llm         GenAIClient
	concurrency int
}

// NewLLMJudge creates an LLMJudge.
func NewLLMJudge(llm GenAIClient) *LLMJudge {
	return &LLMJudge{llm: llm, concurrency: 4}
}

const judgeSystemPrompt = `You rate how relevant a passage is to a query.
Respond with ONLY a decimal number between 0 and 1, where 1 means the
passage directly answers the query and 0 means it is unrelated.`

// Rerank implements CrossEncoder. Pairs are judged concurrently with a
// bounded fan-out; one malformed verdict fails the whole batch so the
// caller falls back to base scores.
func (j *LLMJudge) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	scores := make([]float64, len(passages))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for i, passage := range passages {
		i, passage := i, passage
		g.Go(func() error {
			prompt := fmt.Sprintf("Query: %s\n\nPassage:\n%s", query, passage)
			raw, err := j.llm.GenerateContent(gCtx, judgeSystemPrompt, prompt)
			if err != nil {
				return fmt.Errorf("judge pair %d: %w", i, err)
			}
			score, err := parseJudgeScore(raw)
			if err != nil {
				return fmt.Errorf("judge pair %d: %w", i, err)
			}
			scores[i] = score
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return scores, nil
}

// parseJudgeScore parses the verdict's first whitespace-separated token,
// with trailing punctuation trimmed, as a decimal in [0,1]. A verdict that
// does not start with a number (e.g. "Score: 0.7") is an error.
func parseJudgeScore(raw string) (float64, error) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty verdict")
	}
	token := strings.Trim(fields[0], ".,;:")
	score, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric verdict %q", raw)
	}
	if score < 0 || score > 1 {
		return 0, fmt.Errorf("verdict %v out of range", score)
	}
	return score, nil
}
