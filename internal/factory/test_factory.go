package factory

import (
	"time"

	"github.com/Puci-G/rpsServer/internal/arena"
	"github.com/Puci-G/rpsServer/internal/dependencies/mocks"
	"github.com/Puci-G/rpsServer/internal/storage/memory"
	"github.com/Puci-G/rpsServer/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom

	// MemoryBank is the backing bank, exposed for ledger assertions
	MemoryBank *memory.Bank
}

// NewTestApp creates an App configured for testing with mocked
// dependencies. Gateway jobs run inline so settlement outcomes are
// observable as soon as the triggering call returns.
func NewTestApp() *TestApp {
	bank := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	inline := func(f func()) { f() }

	app := newWithDependencies(bank, mockClock, mockRandom, arena.DefaultConfig(), testutil.NopLogger(), inline)

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
		MemoryBank: bank,
	}
}
