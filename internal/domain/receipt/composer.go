package receipt

import (
	"context"
	"encoding/base64"
	"errors"

	"consigna/internal/core/apperror"
	"consigna/internal/core/types"
)

// Rendered is a document serialized for download.
type Rendered struct {
	Filename    string
	ContentType string
	Bytes       []byte
}

// Base64 returns the payload for inline transport.
func (r *Rendered) Base64() string {
	return base64.StdEncoding.EncodeToString(r.Bytes)
}

// Renderer serializes a composed document.
type Renderer interface {
	Render(ctx context.Context, doc *Document) (*Rendered, error)
}

// Outcome is the document half of a ledger result. The ledger operation has
// already committed when an Outcome exists; Warning reports a document that
// could not be produced.
type Outcome struct {
	Document *Document
	Rendered *Rendered
	Warning  error
}

// OK reports whether the document was produced.
func (o Outcome) OK() bool { return o.Warning == nil }

// Settings holds store-wide receipt configuration.
type Settings struct {
	PageSize     int
	StoreLines   []string
	TaxID        string
	DiscountRate types.Money
	TaxRate      types.Money
}

// Composer composes and renders receipts with store-wide settings.
type Composer struct {
	settings Settings
	renderer Renderer
}

// NewComposer creates a composer. A nil renderer yields composed but
// unrendered documents.
func NewComposer(settings Settings, renderer Renderer) *Composer {
	if settings.PageSize <= 0 {
		settings.PageSize = DefaultPageSize
	}
	return &Composer{settings: settings, renderer: renderer}
}

// Produce composes and renders in. Failures are returned in Outcome.Warning
// as DocumentCompositionError, never as an error of the caller's operation.
func (c *Composer) Produce(ctx context.Context, in Input) Outcome {
	if in.DiscountRate.IsZero() {
		in.DiscountRate = c.settings.DiscountRate
	}
	if in.TaxRate.IsZero() {
		in.TaxRate = c.settings.TaxRate
	}

	doc, err := Compose(in, WithPageSize(c.settings.PageSize), WithStore(c.settings.StoreLines, c.settings.TaxID))
	if err != nil {
		return Outcome{Warning: apperror.NewDocumentComposition(err)}
	}
	if c.renderer == nil {
		return Outcome{Document: doc}
	}

	rendered, err := c.renderer.Render(ctx, doc)
	if err != nil {
		return Outcome{Document: doc, Warning: apperror.NewDocumentComposition(err)}
	}
	if rendered == nil || len(rendered.Bytes) == 0 {
		return Outcome{Document: doc, Warning: apperror.NewDocumentComposition(errors.New("renderer produced no bytes"))}
	}
	return Outcome{Document: doc, Rendered: rendered}
}
