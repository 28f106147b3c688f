package receipt

import "context"

// MockRenderer is a test implementation of Renderer.
// Use in unit tests to avoid producing real spreadsheets.
type MockRenderer struct {
	RenderFunc func(ctx context.Context, doc *Document) (*Rendered, error)
}

// Render implements Renderer.
func (m *MockRenderer) Render(ctx context.Context, doc *Document) (*Rendered, error) {
	if m.RenderFunc != nil {
		return m.RenderFunc(ctx, doc)
	}
	// Default: a tiny predictable payload
	return &Rendered{
		Filename:    doc.Name + ".xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Bytes:       []byte("MOCK-" + doc.Name),
	}, nil
}

// Ensure compile-time interface compliance.
var _ Renderer = (*MockRenderer)(nil)
