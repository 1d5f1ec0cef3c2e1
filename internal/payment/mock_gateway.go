package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockGateway is an in-memory Gateway for tests and local runs.
type MockGateway struct {
	mu sync.Mutex

	// CreateErr, CancelErr and RefundErr, when set, are returned by the
	// matching call.
	CreateErr error
	CancelErr error
	RefundErr error

	Intents  map[string]*IntentRequest
	Canceled []string
	Refunds  []RefundRequest
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{Intents: make(map[string]*IntentRequest)}
}

// Name returns the gateway name
func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) CreateIntent(_ context.Context, req *IntentRequest) (*Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CreateErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, g.CreateErr)
	}
	id := "pi_mock_" + uuid.NewString()[:8]
	g.Intents[id] = req
	return &Intent{ID: id, ClientSecret: id + "_secret", Status: "requires_payment_method"}, nil
}

func (g *MockGateway) CancelIntent(_ context.Context, intentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.CancelErr != nil {
		return fmt.Errorf("%w: %w", ErrGateway, g.CancelErr)
	}
	g.Canceled = append(g.Canceled, intentID)
	return nil
}

func (g *MockGateway) Refund(_ context.Context, req *RefundRequest) (*RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.RefundErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrGateway, g.RefundErr)
	}
	g.Refunds = append(g.Refunds, *req)
	return &RefundResult{ID: "re_mock_" + uuid.NewString()[:8], Status: "pending", AmountCents: req.AmountCents}, nil
}

// CanceledIntents returns a copy of the cancelled intent ids.
func (g *MockGateway) CanceledIntents() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.Canceled...)
}
