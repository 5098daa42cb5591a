package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Static errors for health package
var (
	ErrHealthCheckNotFound   = errors.New("health check not found")
	ErrHealthCheckRegistered = errors.New("health check already registered")
	ErrNilHealthCheck        = errors.New("health check cannot be nil")
)

// Aggregator runs registered checks and combines their results. The worst
// individual status becomes the overall status.
type Aggregator struct {
	mu          sync.RWMutex
	checkers    map[string]HealthChecker
	lastResults map[string]*CheckResult
	timeout     time.Duration
}

// NewAggregator creates an aggregator bounding each check by timeout.
func NewAggregator(timeout time.Duration) *Aggregator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Aggregator{
		checkers:    make(map[string]HealthChecker),
		lastResults: make(map[string]*CheckResult),
		timeout:     timeout,
	}
}

// RegisterCheck registers a health check with the aggregator
func (a *Aggregator) RegisterCheck(checker HealthChecker) error {
	if checker == nil {
		return ErrNilHealthCheck
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[checker.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrHealthCheckRegistered, checker.Name())
	}
	a.checkers[checker.Name()] = checker
	return nil
}

// UnregisterCheck removes a health check from the aggregator
func (a *Aggregator) UnregisterCheck(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrHealthCheckNotFound, name)
	}
	delete(a.checkers, name)
	delete(a.lastResults, name)
	return nil
}

// Names returns the registered check names in order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	names := make([]string, 0, len(a.checkers))
	for name := range a.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckAll runs all registered health checks in parallel
func (a *Aggregator) CheckAll(ctx context.Context) *AggregatedStatus {
	a.mu.RLock()
	checkers := make([]HealthChecker, 0, len(a.checkers))
	for _, c := range a.checkers {
		checkers = append(checkers, c)
	}
	a.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))
	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = a.run(ctx, c)
		}()
	}
	wg.Wait()

	a.mu.Lock()
	for _, r := range results {
		a.lastResults[r.Name] = r
	}
	a.mu.Unlock()

	return aggregate(results)
}

// CheckOne runs a specific health check by name
func (a *Aggregator) CheckOne(ctx context.Context, name string) (*CheckResult, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHealthCheckNotFound, name)
	}

	result := a.run(ctx, c)
	a.mu.Lock()
	a.lastResults[name] = result
	a.mu.Unlock()
	return result, nil
}

// GetStatus returns the last known results without running checks
func (a *Aggregator) GetStatus() *AggregatedStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	results := make([]*CheckResult, 0, len(a.lastResults))
	for _, r := range a.lastResults {
		results = append(results, r)
	}
	return aggregate(results)
}

// IsReady reports whether no check is critical
func (a *Aggregator) IsReady(ctx context.Context) bool {
	return a.CheckAll(ctx).OverallStatus != StatusCritical
}

// run executes one check, turning errors and panics into critical results.
func (a *Aggregator) run(ctx context.Context, c HealthChecker) (result *CheckResult) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			result = &CheckResult{
				Name:      c.Name(),
				Status:    StatusCritical,
				Error:     fmt.Sprintf("health check panicked: %v", r),
				Timestamp: start,
				Duration:  time.Since(start),
			}
		}
	}()

	result, err := c.Check(ctx)
	if err != nil || result == nil {
		result = &CheckResult{Status: StatusCritical, Timestamp: start}
		if err != nil {
			result.Error = err.Error()
		}
	}
	result.Name = c.Name()
	if result.Duration == 0 {
		result.Duration = time.Since(start)
	}
	return result
}

func aggregate(results []*CheckResult) *AggregatedStatus {
	status := &AggregatedStatus{
		OverallStatus: StatusHealthy,
		Timestamp:     time.Now(),
		CheckResults:  make(map[string]*CheckResult, len(results)),
	}
	if len(results) == 0 {
		status.OverallStatus = StatusUnknown
	}
	for _, r := range results {
		status.CheckResults[r.Name] = r
		status.Summary.TotalChecks++
		switch r.Status {
		case StatusHealthy:
			status.Summary.PassingChecks++
		case StatusWarning:
			status.Summary.WarningChecks++
		case StatusCritical:
			status.Summary.CriticalChecks++
		default:
			status.Summary.UnknownChecks++
		}
		if r.Status.severity() > status.OverallStatus.severity() {
			status.OverallStatus = r.Status
		}
	}
	return status
}

// BasicChecker adapts a function to a HealthChecker
type BasicChecker struct {
	name        string
	description string
	checkFunc   func(context.Context) error
}

// NewBasicChecker creates a new basic health checker
func NewBasicChecker(name, description string, checkFunc func(context.Context) error) *BasicChecker {
	return &BasicChecker{
		name:        name,
		description: description,
		checkFunc:   checkFunc,
	}
}

// Check performs a health check and returns the current status
func (c *BasicChecker) Check(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	result := &CheckResult{
		Name:      c.name,
		Timestamp: start,
		Status:    StatusHealthy,
	}

	if c.checkFunc != nil {
		if err := c.checkFunc(ctx); err != nil {
			result.Status = StatusCritical
			result.Error = err.Error()
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// Name returns the unique name of this health check
func (c *BasicChecker) Name() string {
	return c.name
}

// Description returns a human-readable description of what this check validates
func (c *BasicChecker) Description() string {
	return c.description
}
