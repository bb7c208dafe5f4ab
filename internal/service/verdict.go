package service

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/prephub/contests/internal/domain"
)

// verdict is the aggregate outcome of one judge run
type verdict struct {
	Status    domain.SubmissionStatus
	Passed    int
	Total     int
	RuntimeMs int
	MemoryKb  int
	Message   string
}

// statusRank orders failure classes; a higher rank wins across test cases
var statusRank = map[domain.SubmissionStatus]int{
	domain.StatusAccepted:            0,
	domain.StatusWrongAnswer:         1,
	domain.StatusMemoryLimitExceeded: 2,
	domain.StatusTimeLimitExceeded:   3,
	domain.StatusRuntimeError:        4,
}

// outputMatches compares outputs exactly after dropping trailing whitespace
func outputMatches(actual, expected string) bool {
	return strings.TrimRightFunc(actual, unicode.IsSpace) == strings.TrimRightFunc(expected, unicode.IsSpace)
}

// classify returns the outcome of a single test case. Output is compared here,
// the sandbox's own pass flag is not trusted.
func classify(tc domain.TestCase, r domain.TestCaseResult, limits domain.ExecutionLimits) domain.SubmissionStatus {
	switch {
	case r.Fault != "":
		return domain.StatusRuntimeError
	case limits.TimeLimitMs > 0 && r.TimeMs > limits.TimeLimitMs:
		return domain.StatusTimeLimitExceeded
	case limits.MemoryLimitKb > 0 && r.MemoryKb > limits.MemoryLimitKb:
		return domain.StatusMemoryLimitExceeded
	case !outputMatches(r.Stdout, tc.ExpectedOutput):
		return domain.StatusWrongAnswer
	}
	return domain.StatusAccepted
}

// resolveVerdict folds per-test results into one status:
// runtime error, then time limit, then memory limit, then wrong answer, else accepted.
func resolveVerdict(cases []domain.TestCase, results []domain.TestCaseResult, limits domain.ExecutionLimits) (verdict, error) {
	if len(results) != len(cases) {
		return verdict{}, fmt.Errorf("%w: judge returned %d results for %d test cases",
			domain.ErrJudgeUnavailable, len(results), len(cases))
	}

	v := verdict{Status: domain.StatusAccepted, Total: len(cases)}
	firstFailure := -1

	for i, r := range results {
		if r.TimeMs > v.RuntimeMs {
			v.RuntimeMs = r.TimeMs
		}
		if r.MemoryKb > v.MemoryKb {
			v.MemoryKb = r.MemoryKb
		}

		status := classify(cases[i], r, limits)
		if status == domain.StatusAccepted {
			v.Passed++
			continue
		}
		if statusRank[status] > statusRank[v.Status] {
			v.Status = status
			firstFailure = i
		}
	}

	v.Message = describe(v, firstFailure, results, limits)
	return v, nil
}

func describe(v verdict, idx int, results []domain.TestCaseResult, limits domain.ExecutionLimits) string {
	if idx < 0 {
		return fmt.Sprintf("All %d test cases passed", v.Total)
	}
	test := idx + 1
	r := results[idx]
	switch v.Status {
	case domain.StatusRuntimeError:
		return fmt.Sprintf("Runtime error on test %d: %s", test, r.Fault)
	case domain.StatusTimeLimitExceeded:
		return fmt.Sprintf("Time limit exceeded on test %d (%d ms > %d ms)", test, r.TimeMs, limits.TimeLimitMs)
	case domain.StatusMemoryLimitExceeded:
		return fmt.Sprintf("Memory limit exceeded on test %d (%d KB > %d KB)", test, r.MemoryKb, limits.MemoryLimitKb)
	default:
		return fmt.Sprintf("Wrong answer on test %d", test)
	}
}

// scoreFor applies binary scoring
func scoreFor(status domain.SubmissionStatus, points int) int {
	if status == domain.StatusAccepted {
		return points
	}
	return 0
}
