// Package policy decides whether a username violates the forbidden-word lists.
package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"namewatch/model"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrListsUnavailable means the word lists could not be loaded or are empty.
// It never means "clean": callers must not act as if the name passed.
var ErrListsUnavailable = errors.New("word lists unavailable")

// WordSource supplies the current forbidden words.
type WordSource interface {
	Words(ctx context.Context) ([]model.Word, error)
}

// Classifier matches usernames against a two-tier word list.
type Classifier struct {
	src WordSource
}

func NewClassifier(src WordSource) *Classifier {
	return &Classifier{src: src}
}

// fold normalises s for case-insensitive substring matching.
// A Caser is stateful, so each call gets its own.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

// Classify checks the escalate tier first, then the standard tier. The first match wins.
func (c *Classifier) Classify(ctx context.Context, username string) (model.Classification, error) {
	words, err := c.src.Words(ctx)
	if err != nil {
		classifyCount.WithLabelValues("unavailable").Inc()
		return model.Classification{}, fmt.Errorf("%w: %v", ErrListsUnavailable, err)
	}

	standard, escalate, err := splitTiers(words)
	if err != nil {
		classifyCount.WithLabelValues("unavailable").Inc()
		return model.Classification{}, err
	}

	name := fold(username)
	for _, w := range escalate {
		if strings.Contains(name, fold(w)) {
			classifyCount.WithLabelValues("escalate").Inc()
			return model.Classification{ShouldAct: true, Escalate: true, Word: w}, nil
		}
	}
	for _, w := range standard {
		if strings.Contains(name, fold(w)) {
			classifyCount.WithLabelValues("standard").Inc()
			return model.Classification{ShouldAct: true, Word: w}, nil
		}
	}
	classifyCount.WithLabelValues("clean").Inc()
	return model.Classification{}, nil
}

func splitTiers(words []model.Word) (standard, escalate []string, err error) {
	for _, w := range words {
		if w.Word == "" {
			continue
		}
		if w.Escalate {
			escalate = append(escalate, w.Word)
		} else {
			standard = append(standard, w.Word)
		}
	}
	if len(standard) == 0 || len(escalate) == 0 {
		return nil, nil, fmt.Errorf("%w: standard=%d escalate=%d", ErrListsUnavailable, len(standard), len(escalate))
	}
	return standard, escalate, nil
}

// CheckLists fails unless src currently serves both tiers.
func CheckLists(ctx context.Context, src WordSource) error {
	words, err := src.Words(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrListsUnavailable, err)
	}
	_, _, err = splitTiers(words)
	return err
}
