// Package auth issues and verifies session tokens and carries the
// authenticated viewer through request contexts.
package auth

import "context"

type viewerKey struct{}

// WithViewer returns a copy of ctx carrying viewerID.
func WithViewer(ctx context.Context, viewerID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, viewerID)
}

// ViewerFrom returns the viewer stored by WithViewer.
func ViewerFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(viewerKey{}).(string)
	return id, ok && id != ""
}

// ContextIdentity resolves the current viewer from the request context.
type ContextIdentity struct{}

func (ContextIdentity) CurrentViewer(ctx context.Context) (string, bool) {
	return ViewerFrom(ctx)
}
