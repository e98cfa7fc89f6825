package orchestrator

import (
	"context"

	"inferd/internal/provider"
)

// GenerateWithImage asks the vision providers in vision order, then the local
// fallback backend. It returns "" with a nil error when every one of them
// failed, and ErrNoProviderAvailable when none is configured at all. The
// history is not touched.
func (o *Orchestrator) GenerateWithImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	if len(o.vision) == 0 && o.visionFallback == nil {
		return "", noProviderError{capability: provider.CapVision.String()}
	}
	for _, id := range o.vision {
		vb := o.regs[id].backend.(provider.VisionBackend)
		out, err := o.invoke(ctx, id, prompt, false, func(ctx context.Context, in string) (string, error) {
			return vb.GenerateWithImage(ctx, in, image, mimeType)
		})
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	if o.visionFallback != nil {
		out, err := o.visionFallback.GenerateWithImage(ctx, prompt, image, mimeType)
		if err == nil {
			if out = clean(out); out != "" {
				return out, nil
			}
		}
		o.log.Warn().Err(err).Msg("local vision fallback failed")
	}
	o.log.Warn().Int("tried", len(o.vision)).Msg("no vision provider produced output")
	return "", nil
}
