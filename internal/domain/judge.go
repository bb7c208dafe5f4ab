package domain

import "context"

// ExecutionLimits is the per-test-case budget for a run
type ExecutionLimits struct {
	TimeLimitMs   int `json:"time_limit_ms"`
	MemoryLimitKb int `json:"memory_limit_kb"`
}

// JudgeTestCase is a test case as sent to the sandbox
type JudgeTestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
}

// JudgeRequest asks the sandbox to run code against every test case
type JudgeRequest struct {
	Code      string          `json:"code"`
	Language  Language        `json:"language"`
	TestCases []JudgeTestCase `json:"test_cases"`
	Limits    ExecutionLimits `json:"limits"`
}

// TestCaseResult is the sandbox report for one test case
type TestCaseResult struct {
	Passed   bool   `json:"passed"`
	Stdout   string `json:"stdout"`
	Fault    string `json:"fault,omitempty"`
	TimeMs   int    `json:"time_ms"`
	MemoryKb int    `json:"memory_kb"`
}

// JudgeClient executes code in the external sandbox. Results are returned
// in test case order.
type JudgeClient interface {
	Run(ctx context.Context, req JudgeRequest) ([]TestCaseResult, error)
}
