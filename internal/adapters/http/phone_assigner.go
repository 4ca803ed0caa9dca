package http

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// MockPhoneNumberAssigner fabricates numbers in the +1<area><exchange><line> shape.
// It never talks to a carrier and must not be used in production.
type MockPhoneNumberAssigner struct {
	AreaCode string

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockPhoneNumberAssigner creates a mock assigner; seed 0 uses the current time
func NewMockPhoneNumberAssigner(areaCode string, seed int64) *MockPhoneNumberAssigner {
	if areaCode == "" {
		areaCode = "855"
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockPhoneNumberAssigner{
		AreaCode: areaCode,
		rnd:      rand.New(rand.NewSource(seed)),
	}
}

// AssignPhoneNumber returns a random number with a 3-digit exchange (100-999) and 4-digit line (1000-9999)
func (m *MockPhoneNumberAssigner) AssignPhoneNumber(ctx context.Context, workflowID, businessName string) (string, error) {
	m.mu.Lock()
	exchange := m.rnd.Intn(900) + 100
	line := m.rnd.Intn(9000) + 1000
	m.mu.Unlock()

	return fmt.Sprintf("+1%s%d%d", m.AreaCode, exchange, line), nil
}
